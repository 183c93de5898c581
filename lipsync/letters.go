package lipsync

import "strings"

// Some providers report character or word timings rather than visemes.
// Characters are mapped to the Azure viseme id of the phoneme class they
// usually spell, so the segmenter sees one vocabulary.

var digraphVisemes = map[string]int{
	"sh": 16,
	"ch": 16,
	"th": 19,
	"ph": 18,
}

var letterVisemes = map[rune]int{
	'a': 1, 'á': 1, 'à': 1, 'ä': 1,
	'e': 4, 'é': 4, 'è': 4,
	'i': 6, 'í': 6, 'y': 6,
	'o': 8, 'ó': 8, 'ö': 8,
	'u': 7, 'ú': 7, 'ü': 7, 'w': 7,
	'h': 12,
	'r': 13,
	'l': 14,
	's': 15, 'z': 15,
	'j': 16,
	'f': 18, 'v': 18,
	'd': 19, 't': 19, 'n': 19, 'ñ': 19,
	'k': 20, 'g': 20, 'c': 20, 'q': 20, 'x': 20,
	'p': 21, 'b': 21, 'm': 21,
}

// CharViseme returns the viseme id for chars[i] and how many characters it
// spans. Spaces, punctuation and digits map to silence (id 0).
func CharViseme(chars []string, i int) (id int, span int) {
	c := strings.ToLower(chars[i])
	if i+1 < len(chars) {
		if id, ok := digraphVisemes[c+strings.ToLower(chars[i+1])]; ok {
			return id, 2
		}
	}
	runes := []rune(c)
	if len(runes) != 1 {
		return 0, 1
	}
	if id, ok := letterVisemes[runes[0]]; ok {
		return id, 1
	}
	return 0, 1
}

// WordVisemes spreads the visemes spelled by word evenly over [start, end).
// Consecutive letters with the same viseme produce a single event.
func WordVisemes(word string, start, end float64) []VisemeEvent {
	chars := strings.Split(word, "")
	if len(chars) == 0 || !finite(start) || !finite(end) || end < start {
		return nil
	}

	type unit struct{ id, pos int }
	var units []unit
	for i := 0; i < len(chars); {
		id, span := CharViseme(chars, i)
		units = append(units, unit{id: id, pos: i})
		i += span
	}

	step := (end - start) / float64(len(chars))
	var events []VisemeEvent
	last := -1
	for _, u := range units {
		if u.id == last {
			continue
		}
		events = append(events, VisemeEvent{ID: u.id, Offset: start + step*float64(u.pos)})
		last = u.id
	}
	return events
}
