package alpaca

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamStopWithoutStart(t *testing.T) {
	s := NewTradeUpdateStream("ws://127.0.0.1:1/stream", "key", "secret", nil, zerolog.Nop())

	assert.NotPanics(t, func() { s.Stop() })
}

func TestStreamStartThenStop(t *testing.T) {
	s := NewTradeUpdateStream("ws://127.0.0.1:1/stream", "key", "secret", nil, zerolog.Nop())

	s.Start()
	// Stop cancels the run context before the first reconnect delay elapses,
	// so the background goroutine exits instead of retrying.
	assert.NotPanics(t, func() { s.Stop() })
}

func TestStreamEventParsing(t *testing.T) {
	payload := []byte(`{"stream":"trade_updates","data":{"event":"fill","order":{"symbol":"VTI"}}}`)

	var event streamEvent
	require.NoError(t, json.Unmarshal(payload, &event))

	assert.Equal(t, "trade_updates", event.Stream)
	assert.Equal(t, "fill", event.Data.Event)
	assert.Equal(t, "VTI", event.Data.Order.Symbol)
}
