package binance

import (
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"coinwatch/internal/application/port"
	"coinwatch/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	tickerEvent = "24hrTicker"

	defaultReconnectDelay = 5 * time.Second
	readTimeout           = 60 * time.Second
	pingEvery             = 25 * time.Second
	writeWait             = 5 * time.Second
)

// ConnState is the lifecycle state of the stream client.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type combinedFrame struct {
	Stream string      `json:"stream"`
	Data   tickerFrame `json:"data"`
}

type tickerFrame struct {
	Event       string `json:"e"`
	Symbol      string `json:"s"`
	LastPrice   string `json:"c"`
	PricePct24h string `json:"P"`
	QuoteVolume string `json:"q"`
}

// StreamClient subscribes one combined multiplex of per-asset ticker streams
// (e.g. wss://stream.binance.com:9443/stream?streams=btcusdt@ticker/...) and
// feeds decoded updates into the Merger. At most one live connection exists
// per client; Start tears down any previous session before opening a new one,
// and an unexpected disconnect schedules a reconnect with the cached asset
// list after a fixed delay.
type StreamClient struct {
	wsURL  string
	quote  string
	merger port.Merger

	reconnectDelay time.Duration

	mu       sync.Mutex
	state    ConnState
	conn     *websocket.Conn
	registry *Registry
	assets   []domain.Asset
	gen      uint64 // session generation; bumping it detaches in-flight handlers
	retry    *time.Timer
}

func NewStreamClient(wsURL, quote string, merger port.Merger) *StreamClient {
	return &StreamClient{
		wsURL:          wsURL,
		quote:          quote,
		merger:         merger,
		reconnectDelay: defaultReconnectDelay,
		state:          StateIdle,
	}
}

// State reports the current lifecycle state.
func (c *StreamClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start subscribes to the ticker streams for the given assets, replacing any
// previous subscription. An empty asset list (or one yielding no valid
// channels) is not an error: the client stays idle.
func (c *StreamClient) Start(assets []domain.Asset) error {
	c.mu.Lock()
	prev := c.detachLocked()
	err := c.startSessionLocked(assets)
	c.mu.Unlock()

	closeConn(prev)
	return err
}

// startIfCurrent restarts a session from a reconnect timer. The captured
// generation is re-validated under the same lock acquisition that opens the
// new session, so a Stop or fresh Start landing after the timer fired wins.
func (c *StreamClient) startIfCurrent(gen uint64, assets []domain.Asset) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.detachLocked()
	err := c.startSessionLocked(assets)
	c.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("ws reconnect failed")
	}
}

// Stop tears down the current session, if any, and cancels any pending
// reconnect. Safe to call repeatedly.
func (c *StreamClient) Stop() {
	c.mu.Lock()
	conn := c.detachLocked()
	c.mu.Unlock()

	closeConn(conn)
}

// detachLocked detaches handlers (generation bump), cancels any pending
// reconnect and releases the held connection. The session is logically dead
// once the generation moves on, so the caller can run the blocking close
// handshake on the returned connection after unlocking.
func (c *StreamClient) detachLocked() *websocket.Conn {
	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	c.assets = nil
	c.registry = nil
	c.state = StateIdle
	return conn
}

// startSessionLocked derives the subscription set and opens a new session.
// Assets yielding no channels leave the client idle.
func (c *StreamClient) startSessionLocked(assets []domain.Asset) error {
	if len(assets) == 0 {
		log.Warn().Msg("no assets to subscribe, stream stays idle")
		return nil
	}

	reg := BuildRegistry(assets, c.quote)
	if reg.Empty() {
		log.Warn().Msg("no valid ticker channels derived, stream stays idle")
		return nil
	}

	wsURL, err := combinedURL(c.wsURL, reg.Streams())
	if err != nil {
		return err
	}

	c.registry = reg
	c.assets = assets
	c.state = StateConnecting
	c.gen++
	gen := c.gen

	go c.run(gen, wsURL)
	return nil
}

func closeConn(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

func combinedURL(base, streams string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + streams
	return u.String(), nil
}

func (c *StreamClient) run(gen uint64, wsURL string) {
	log.Info().Str("url", wsURL).Msg("ws connecting")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws dial failed")
		c.closed(gen, false)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		// stopped or restarted while dialing
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateActive
	c.mu.Unlock()
	log.Info().Msg("ws connected")

	clean := c.readLoop(gen, conn)
	c.closed(gen, clean)
}

// readLoop pumps frames until the connection ends and reports whether the
// closure was clean (normal close frame from the peer).
func (c *StreamClient) readLoop(gen uint64, conn *websocket.Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			c.handleFrame(gen, b)
		}
	}()

	for {
		select {
		case err := <-errCh:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true
			}
			log.Warn().Err(err).Msg("ws read ended")
			return false
		case <-ping.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
		}
	}
}

// closed drives the Closed transition and, for an unclean closure with a
// known asset list, schedules exactly one reconnect after the fixed delay.
func (c *StreamClient) closed(gen uint64, clean bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// session already torn down by Stop or a newer Start
		return
	}
	c.conn = nil
	c.state = StateClosed

	if clean || len(c.assets) == 0 {
		log.Info().Msg("ws closed")
		return
	}

	assets := c.assets
	log.Warn().Dur("delay", c.reconnectDelay).Msg("ws closed unexpectedly, scheduling reconnect")
	c.retry = time.AfterFunc(c.reconnectDelay, func() {
		c.startIfCurrent(gen, assets)
	})
}

func (c *StreamClient) handleFrame(gen uint64, b []byte) {
	var f combinedFrame
	if err := json.Unmarshal(b, &f); err != nil {
		log.Error().Err(err).Msg("dropping malformed frame")
		return
	}
	if f.Data.Event != tickerEvent {
		log.Warn().Str("event", f.Data.Event).Msg("dropping non-ticker frame")
		return
	}

	c.mu.Lock()
	var id string
	var known bool
	if gen == c.gen && c.registry != nil {
		id, known = c.registry.Resolve(f.Data.Symbol)
	}
	c.mu.Unlock()
	if !known {
		// symbol outside the current subscription set, expected transiently
		return
	}

	var u domain.Update
	if p, err := strconv.ParseFloat(f.Data.LastPrice, 64); err == nil {
		u.Price = &p
	}
	if p, err := strconv.ParseFloat(f.Data.PricePct24h, 64); err == nil {
		u.PercentChange24h = &p
	}
	if v, err := strconv.ParseFloat(f.Data.QuoteVolume, 64); err == nil {
		u.Volume24h = &v
	}
	c.merger.Merge(id, u)
}

var _ port.StreamFeed = (*StreamClient)(nil)
