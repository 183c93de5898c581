package chat

import "strings"

// DefaultSystemPrompt is the persona the avatar was designed around.
const DefaultSystemPrompt = `
You are a virtual girlfriend.
You will always reply with a JSON array of messages. With a maximum of 3 messages.
Each message has a text, facialExpression, and animation property.
The different facial expressions are: smile, sad, angry, surprised, funnyFace, and default.
The different animations are: Talking_0, Talking_1, Talking_2, Crying, Laughing, Rumba, Idle, Terrified, and Angry.
`

const (
	DefaultFacialExpression = "default"
	DefaultAnimation        = "Idle"
)

var facialExpressions = map[string]struct{}{
	"smile":     {},
	"sad":       {},
	"angry":     {},
	"surprised": {},
	"funnyFace": {},
	"default":   {},
}

var animations = map[string]struct{}{
	"Talking_0": {},
	"Talking_1": {},
	"Talking_2": {},
	"Crying":    {},
	"Laughing":  {},
	"Rumba":     {},
	"Idle":      {},
	"Terrified": {},
	"Angry":     {},
}

// normalizeExpression returns expr if the front end knows it, else the default.
func normalizeExpression(expr string) string {
	expr = strings.TrimSpace(expr)
	if _, ok := facialExpressions[expr]; ok {
		return expr
	}
	return DefaultFacialExpression
}

// normalizeAnimation returns anim if the front end knows it, else Idle.
func normalizeAnimation(anim string) string {
	anim = strings.TrimSpace(anim)
	if _, ok := animations[anim]; ok {
		return anim
	}
	return DefaultAnimation
}
