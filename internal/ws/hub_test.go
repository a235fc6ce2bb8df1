package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEncode(t *testing.T) {
	msg, err := Encode("transfer_completed", map[string]string{"amount": "300.00"})
	require.NoError(t, err)

	var got struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "transfer_completed", got.Type)
	assert.Equal(t, "300.00", got.Data["amount"])
}

func TestPublishReachesBroadcast(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Publish("transaction_deleted", map[string]string{"id": "abc"})

	select {
	case msg := <-h.Broadcast:
		assert.Contains(t, string(msg), `"transaction_deleted"`)
	case <-time.After(time.Second):
		t.Fatal("event was not broadcast")
	}
	assert.Equal(t, 0, h.ClientCount())
}

func TestPublishDropsUnencodable(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Publish("bad", make(chan int))

	select {
	case <-h.Broadcast:
		t.Fatal("unencodable event must be dropped")
	case <-time.After(50 * time.Millisecond):
	}
}
