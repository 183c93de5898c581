package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Envelope(t *testing.T) {
	data, err := Marshal(MsgError, "42", ErrorResponse{Error: "bad", Detail: "worse"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","id":"42","payload":{"error":"bad","detail":"worse"}}`, string(data))

	data, err = Marshal(MsgPong, "", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

func TestUnmarshal_ChatPayload(t *testing.T) {
	env, err := Unmarshal([]byte(`{"type":"chat","id":"a1","payload":{"message":"hola"}}`))
	require.NoError(t, err)
	assert.Equal(t, MsgChat, env.Type)
	assert.Equal(t, "a1", env.ID)

	req, err := UnmarshalPayload[ChatRequest](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "hola", req.Message)
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"payload":{}}`))
	assert.ErrorContains(t, err, "missing type")

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)

	_, err = UnmarshalPayload[ChatRequest](nil)
	assert.Error(t, err)

	_, err = UnmarshalPayload[ChatRequest]([]byte(`{"message":5}`))
	assert.Error(t, err)
}
