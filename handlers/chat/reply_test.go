package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []llmMessage
	}{
		{
			name: "bare array",
			raw:  `[{"text":"Hi","facialExpression":"smile","animation":"Talking_0"}]`,
			want: []llmMessage{{Text: "Hi", FacialExpression: "smile", Animation: "Talking_0"}},
		},
		{
			name: "messages object",
			raw:  `{"messages":[{"text":"Hi","facialExpression":"sad","animation":"Crying"}]}`,
			want: []llmMessage{{Text: "Hi", FacialExpression: "sad", Animation: "Crying"}},
		},
		{
			name: "single message object",
			raw:  `{"text":"Hi","facialExpression":"angry","animation":"Angry"}`,
			want: []llmMessage{{Text: "Hi", FacialExpression: "angry", Animation: "Angry"}},
		},
		{
			name: "unknown expression and animation are normalized",
			raw:  `[{"text":"Hi","facialExpression":"wink","animation":"Backflip"}]`,
			want: []llmMessage{{Text: "Hi", FacialExpression: "default", Animation: "Idle"}},
		},
		{
			name: "empty texts are dropped",
			raw:  `[{"text":"  "},{"text":"Hi"}]`,
			want: []llmMessage{{Text: "Hi", FacialExpression: "default", Animation: "Idle"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReply(tt.raw, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReply_CapsMessages(t *testing.T) {
	raw := `[{"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"}]`
	got, err := parseReply(raw, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[2].Text)
}

func TestParseReply_RepairsMalformedJSON(t *testing.T) {
	raw := `{"messages":[{"text":"Hi","facialExpression":"smile","animation":"Talking_1",}]`
	got, err := parseReply(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, []llmMessage{{Text: "Hi", FacialExpression: "smile", Animation: "Talking_1"}}, got)
}

func TestParseReply_Empty(t *testing.T) {
	_, err := parseReply("", 3)
	assert.ErrorIs(t, err, ErrEmptyReply)

	_, err = parseReply(`{"messages":[]}`, 3)
	assert.ErrorIs(t, err, ErrEmptyReply)

	_, err = parseReply(`{"reply":"hello"}`, 3)
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestParseReply_WrongType(t *testing.T) {
	_, err := parseReply(`{"messages":"nope"}`, 3)
	assert.Error(t, err)
}
