package chat

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kaptinlin/jsonrepair"
)

// llmMessage is one entry of the model's JSON reply.
type llmMessage struct {
	Text             string `json:"text"`
	FacialExpression string `json:"facialExpression"`
	Animation        string `json:"animation"`
}

// ErrEmptyReply is returned when the model's reply holds no speakable message.
var ErrEmptyReply = errors.New("reply contains no messages")

// unmarshalJSON unmarshals data into v, repairing malformed JSON once before
// giving up.
func unmarshalJSON(data []byte, v any) error {
	err := sonic.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if sonic.Valid(data) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return fmt.Errorf("%w (repair failed: %v)", err, repairErr)
	}
	return sonic.Unmarshal([]byte(fixed), v)
}

// parseReply accepts a bare array, an object with a "messages" list, or a
// single message object. Messages without text are dropped, the rest are
// capped at maxMessages and their expression and animation are normalized.
func parseReply(raw string, maxMessages int) ([]llmMessage, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil, ErrEmptyReply
	}

	var messages []llmMessage
	if data[0] == '[' {
		if err := unmarshalJSON(data, &messages); err != nil {
			return nil, fmt.Errorf("parse reply: %w", err)
		}
	} else {
		var obj struct {
			Messages []llmMessage `json:"messages"`
			llmMessage
		}
		if err := unmarshalJSON(data, &obj); err != nil {
			return nil, fmt.Errorf("parse reply: %w", err)
		}
		switch {
		case obj.Messages != nil:
			messages = obj.Messages
		case obj.Text != "":
			messages = []llmMessage{obj.llmMessage}
		}
	}

	out := make([]llmMessage, 0, len(messages))
	for _, m := range messages {
		m.Text = strings.TrimSpace(m.Text)
		if m.Text == "" {
			continue
		}
		m.FacialExpression = normalizeExpression(m.FacialExpression)
		m.Animation = normalizeAnimation(m.Animation)
		out = append(out, m)
		if maxMessages > 0 && len(out) == maxMessages {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyReply
	}
	return out, nil
}
