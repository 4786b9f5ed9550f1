package alpaca

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	streamDialTimeout = 30 * time.Second
	streamWriteWait   = 10 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// TradeUpdateStream listens for account trade updates over websocket.
// Fill events invalidate derived caches so the next return calculation sees
// post-fill account state. The stream is advisory: failures are logged and
// retried, never fatal.
type TradeUpdateStream struct {
	url       string
	apiKey    string
	apiSecret string

	conn       *websocket.Conn
	cancelFunc context.CancelFunc
	mu         sync.Mutex

	onFill func(symbol string)
	log    zerolog.Logger
}

// NewTradeUpdateStream creates a trade-update stream client.
// onFill is invoked for every fill or partial_fill event.
func NewTradeUpdateStream(url, apiKey, apiSecret string, onFill func(symbol string), log zerolog.Logger) *TradeUpdateStream {
	return &TradeUpdateStream{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		onFill:    onFill,
		log:       log.With().Str("client", "trade_stream").Logger(),
	}
}

// Start connects and listens in a background goroutine with exponential
// backoff reconnection.
func (s *TradeUpdateStream) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop closes the connection and stops reconnection attempts. Cancelling the
// run context is what halts the reconnect loop; Stop is safe to call on a
// stream that was never started.
func (s *TradeUpdateStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "shutdown")
	}
}

func (s *TradeUpdateStream) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.connectAndListen(ctx)
		if ctx.Err() != nil {
			return
		}

		attempt++
		if attempt > maxReconnectAttempts {
			s.log.Error().Int("attempts", attempt-1).Msg("Trade stream gave up reconnecting")
			return
		}

		delay := time.Duration(float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
		s.log.Warn().Err(err).Dur("retry_in", delay).Int("attempt", attempt).Msg("Trade stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// authMessage is the stream authentication payload
type authMessage struct {
	Action string `json:"action"`
	Data   struct {
		KeyID     string `json:"key_id"`
		SecretKey string `json:"secret_key"`
	} `json:"data"`
}

// listenMessage subscribes to the trade_updates channel
type listenMessage struct {
	Action string `json:"action"`
	Data   struct {
		Streams []string `json:"streams"`
	} `json:"data"`
}

// streamEvent is the envelope of incoming stream messages
type streamEvent struct {
	Stream string `json:"stream"`
	Data   struct {
		Event string `json:"event"`
		Order struct {
			Symbol string `json:"symbol"`
		} `json:"order"`
	} `json:"data"`
}

func (s *TradeUpdateStream) connectAndListen(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, streamDialTimeout)
	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	// Authenticate then subscribe
	auth := authMessage{Action: "authenticate"}
	auth.Data.KeyID = s.apiKey
	auth.Data.SecretKey = s.apiSecret
	if err := s.writeJSON(ctx, conn, auth); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "auth write failed")
		return err
	}

	listen := listenMessage{Action: "listen"}
	listen.Data.Streams = []string{"trade_updates"}
	if err := s.writeJSON(ctx, conn, listen); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "listen write failed")
		return err
	}

	s.log.Info().Str("url", s.url).Msg("Trade stream connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var event streamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			s.log.Debug().Err(err).Msg("Ignoring unparseable stream message")
			continue
		}

		if event.Stream != "trade_updates" {
			continue
		}

		switch event.Data.Event {
		case "fill", "partial_fill":
			s.log.Debug().
				Str("event", event.Data.Event).
				Str("symbol", event.Data.Order.Symbol).
				Msg("Trade fill received")
			if s.onFill != nil {
				s.onFill(event.Data.Order.Symbol)
			}
		}
	}
}

func (s *TradeUpdateStream) writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
