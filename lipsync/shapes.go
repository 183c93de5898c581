package lipsync

// Shape is a mouth shape in the Rhubarb alphabet understood by the avatar front end.
type Shape string

const (
	ShapeA Shape = "A" // Closed mouth for p, b, m.
	ShapeB Shape = "B" // Slightly open, clenched teeth.
	ShapeC Shape = "C" // Open mouth for e, ae.
	ShapeD Shape = "D" // Wide open for aa.
	ShapeE Shape = "E" // Slightly rounded for ao, er.
	ShapeF Shape = "F" // Puckered for uw, ow, w.
	ShapeG Shape = "G" // Upper teeth on lower lip for f, v.
	ShapeH Shape = "H" // Tongue raised for long l.
	ShapeX Shape = "X" // Rest / silence.
)

// azureVisemeShapes maps Azure Speech viseme ids to mouth shapes.
// Do not mutate; use ShapeFor.
var azureVisemeShapes = map[int]Shape{
	0:  ShapeX,
	1:  ShapeA,
	2:  ShapeA,
	3:  ShapeB,
	4:  ShapeC,
	5:  ShapeC,
	6:  ShapeC,
	7:  ShapeD,
	8:  ShapeB,
	9:  ShapeB,
	10: ShapeB,
	11: ShapeA,
	12: ShapeH,
	13: ShapeD,
	14: ShapeE,
	15: ShapeH,
	16: ShapeF,
	17: ShapeH,
	18: ShapeH,
	19: ShapeF,
	20: ShapeH,
	21: ShapeB,
	22: ShapeG,
}

// ShapeFor returns the mouth shape for a viseme id. Unknown ids map to ShapeX.
func ShapeFor(visemeID int) Shape {
	if s, ok := azureVisemeShapes[visemeID]; ok {
		return s
	}
	return ShapeX
}

// Valid reports whether s is one of the nine shapes.
func (s Shape) Valid() bool {
	switch s {
	case ShapeA, ShapeB, ShapeC, ShapeD, ShapeE, ShapeF, ShapeG, ShapeH, ShapeX:
		return true
	}
	return false
}
