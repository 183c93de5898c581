package chat

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"avatarkit/lipsync"
	"avatarkit/protocol"

	"github.com/bytedance/sonic"
)

type cannedReason string

const (
	reasonIntro   cannedReason = "intro"
	reasonAPIKeys cannedReason = "api_keys"
)

type cannedMessage struct {
	asset string
	llmMessage
}

var cannedReplies = map[cannedReason][]cannedMessage{
	reasonIntro: {
		{asset: "intro_0", llmMessage: llmMessage{
			Text:             "Hey dear... How was your day?",
			FacialExpression: "smile",
			Animation:        "Talking_1",
		}},
		{asset: "intro_1", llmMessage: llmMessage{
			Text:             "I missed you so much... Please don't go for so long!",
			FacialExpression: "sad",
			Animation:        "Crying",
		}},
	},
	reasonAPIKeys: {
		{asset: "api_0", llmMessage: llmMessage{
			Text:             "Please my dear, don't forget to add your API keys!",
			FacialExpression: "angry",
			Animation:        "Angry",
		}},
		{asset: "api_1", llmMessage: llmMessage{
			Text:             "You don't want to ruin Wawa Sensei with a crazy ChatGPT and Azure bill, right?",
			FacialExpression: "smile",
			Animation:        "Laughing",
		}},
	},
}

// loadCanned reads the prerecorded audio and lip-sync for reason from dir.
func loadCanned(dir string, reason cannedReason) ([]protocol.ChatMessage, error) {
	entries := cannedReplies[reason]
	out := make([]protocol.ChatMessage, 0, len(entries))
	for _, c := range entries {
		wav, err := os.ReadFile(filepath.Join(dir, c.asset+".wav"))
		if err != nil {
			return nil, fmt.Errorf("load canned audio %s: %w", c.asset, err)
		}
		raw, err := os.ReadFile(filepath.Join(dir, c.asset+".json"))
		if err != nil {
			return nil, fmt.Errorf("load canned lipsync %s: %w", c.asset, err)
		}
		var data lipsync.Data
		if err := sonic.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parse canned lipsync %s: %w", c.asset, err)
		}
		out = append(out, protocol.ChatMessage{
			Text:             c.Text,
			FacialExpression: c.FacialExpression,
			Animation:        c.Animation,
			Audio:            base64.StdEncoding.EncodeToString(wav),
			AudioMimeType:    "audio/wav",
			Lipsync:          &data,
		})
	}
	return out, nil
}
