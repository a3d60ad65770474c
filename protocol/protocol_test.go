package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageSend(t *testing.T) {
	receiver := uuid.New()
	raw := []byte(`{"type":"message.send","request_id":"r1","data":{"receiver_id":"` + receiver.String() + `","text":"hi"}}`)

	env, ev, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeMessageSend, env.Type)
	assert.Equal(t, "r1", env.RequestID)

	send, ok := ev.(MessageSend)
	require.True(t, ok)
	require.NotNil(t, send.ReceiverID)
	assert.Equal(t, receiver, *send.ReceiverID)
	assert.Nil(t, send.ConversationID)
	assert.Equal(t, "hi", send.Text)
}

func TestDecodeMessageSendNeedsTarget(t *testing.T) {
	_, _, err := Decode([]byte(`{"type":"message.send","request_id":"r2","data":{"text":"hi"}}`))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, TypeMessageSend, de.Type)
	assert.Equal(t, "r2", de.RequestID)
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"type":`,
		"array":          `[1,2]`,
		"missing type":   `{"data":{}}`,
		"unknown type":   `{"type":"guild.explode","data":{}}`,
		"data not obj":   `{"type":"message.read","data":"x"}`,
		"bad uuid":       `{"type":"message.read","data":{"message_id":"nope"}}`,
		"zero uuid":      `{"type":"message.read","data":{}}`,
		"empty group":    `{"type":"conversation.create","data":{"title":"x","participant_ids":[]}}`,
		"alliance no op": `{"type":"alliance.action","data":{"alliance_id":"` + uuid.NewString() + `"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode([]byte(raw))
			var de *DecodeError
			assert.True(t, errors.As(err, &de), "expected DecodeError, got %v", err)
		})
	}
}

func TestDecodeMissingDataUsesEmptyObject(t *testing.T) {
	_, _, err := Decode([]byte(`{"type":"friend.accept"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requestid failed on required")
}

func TestDecodeAllianceActionKeepsPayload(t *testing.T) {
	alliance := uuid.New()
	raw := []byte(`{"type":"alliance.action","data":{"alliance_id":"` + alliance.String() + `","type":"rally","payload":{"x":1}}}`)

	_, ev, err := Decode(raw)
	require.NoError(t, err)
	act := ev.(AllianceAction)
	assert.Equal(t, alliance, act.AllianceID)
	assert.Equal(t, "rally", act.Type)
	assert.JSONEq(t, `{"x":1}`, string(act.Payload))
}

func TestDecodeAuth(t *testing.T) {
	token, err := DecodeAuth([]byte(`{"type":"auth","token":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	token, err = DecodeAuth([]byte(`{"type":"auth","data":{"token":"def"}}`))
	require.NoError(t, err)
	assert.Equal(t, "def", token)

	_, err = DecodeAuth([]byte(`{"type":"message.send","token":"abc"}`))
	assert.Error(t, err)

	_, err = DecodeAuth([]byte(`{"type":"auth"}`))
	assert.Error(t, err)
}

func TestEncodeWrapsEnvelope(t *testing.T) {
	user := uuid.New()
	raw, err := Encode("r9", UserOnline{UserID: user})
	require.NoError(t, err)

	var frame struct {
		Type      string          `json:"type"`
		RequestID string          `json:"request_id"`
		Data      json.RawMessage `json:"data"`
		SentAt    string          `json:"sent_at"`
	}
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, TypeUserOnline, frame.Type)
	assert.Equal(t, "r9", frame.RequestID)
	assert.JSONEq(t, `{"user_id":"`+user.String()+`"}`, string(frame.Data))
	assert.NotEmpty(t, frame.SentAt)
}

func TestEncodeOmitsEmptyRequestID(t *testing.T) {
	raw, err := Encode("", Error{Code: "validation_error", Message: "bad"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "request_id")
}
