package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	data := map[string]any{"token": "abc", "status": "cart"}
	ev, err := NewEvent("ucp.checkout.created", "abc", "checkout_session", "ucp-bridge", data)
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "ucp.checkout.created", ev.EventType)
	assert.Equal(t, "abc", ev.AggregateID)
	assert.Equal(t, "checkout_session", ev.AggregateType)
	assert.Equal(t, 1, ev.Version)
	assert.Equal(t, "ucp-bridge", ev.Source)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("ucp.checkout.created", "abc", "checkout_session", "ucp-bridge", make(chan int))
	require.Error(t, err)
}

func TestEvent_UniqueIDs(t *testing.T) {
	a, err := NewEvent("t", "1", "s", "src", nil)
	require.NoError(t, err)
	b, err := NewEvent("t", "1", "s", "src", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestEvent_WithCorrelationID(t *testing.T) {
	ev, err := NewEvent("t", "1", "s", "src", nil)
	require.NoError(t, err)
	assert.Same(t, ev, ev.WithCorrelationID("req-7"))
	assert.Equal(t, "req-7", ev.CorrelationID)
}

func TestEvent_DataRoundTrip(t *testing.T) {
	type payload struct {
		Token string `json:"token"`
		Total int64  `json:"total"`
	}
	ev, err := NewEvent("ucp.checkout.updated", "abc", "checkout_session", "ucp-bridge", payload{Token: "abc", Total: 5500})
	require.NoError(t, err)

	raw, err := ev.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ucp.checkout.updated"`)

	var got payload
	require.NoError(t, ev.UnmarshalData(&got))
	assert.Equal(t, "abc", got.Token)
	assert.Equal(t, int64(5500), got.Total)
}
