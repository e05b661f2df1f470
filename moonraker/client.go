// Package moonraker implements the WebSocket JSON-RPC 2.0 client for a
// Moonraker server: request/response correlation against a pending table,
// per-request timeouts, notification routing, bounded-backoff reconnection
// and HTTP file transfer. Socket I/O runs on its own goroutines; every
// continuation and notification callback is re-posted to the UI loop.
package moonraker

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"helixscreen/metrics"
	"helixscreen/runloop"
)

// Default timeouts for the three request buckets.
const (
	TimeoutFast  = 5 * time.Second  // info/list queries
	TimeoutState = 10 * time.Second // object queries and subscriptions
	TimeoutGcode = 10 * time.Second // gcode script execution
)

const (
	reconnectInitial = 2 * time.Second
	reconnectMax     = 10 * time.Second
	sweepInterval    = time.Second
	maxRequestID     = 1<<31 - 1
)

// Callback receives the decoded result field of a successful reply.
type Callback func(result any)

// ErrCallback receives the translated failure.
type ErrCallback func(err *Error)

type rpcRequest struct {
	JsonRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcFrame is either a response (ID set) or a notification (Method set).
type rpcFrame struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type pendingRequest struct {
	id        int64
	method    string
	since     time.Time
	deadline  time.Time
	onSuccess Callback
	onError   ErrCallback
}

// Client is the Moonraker connection. Construct with NewClient, register
// hooks, then Connect. All callbacks fire on the UI loop.
type Client struct {
	wsURL    *url.URL
	httpBase *url.URL
	log      zerolog.Logger
	loop     runloop.Poster

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	gen       int // connection generation, detects stale pump exits
	nextID    int64
	pending   map[int64]*pendingRequest
	outgoing  chan []byte
	sweepStop chan struct{}

	reconnectDelay time.Duration
	autoReconnect  bool

	onConnect     func()
	onDisconnect  func()
	onKlippyReady func()

	statusCallbacks []func(params []any)
	gcodeCallbacks  []func(line string)

	inventory *Inventory
}

// NewClient parses the ws[s]:// URL and derives the HTTP base from it.
func NewClient(rawURL string, loop runloop.Poster, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("moonraker: bad url %q: %w", rawURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("moonraker: url %q must use ws or wss", rawURL)
	}
	httpScheme := "http"
	if u.Scheme == "wss" {
		httpScheme = "https"
	}
	return &Client{
		wsURL:          u,
		httpBase:       &url.URL{Scheme: httpScheme, Host: u.Host},
		log:            log,
		loop:           loop,
		pending:        make(map[int64]*pendingRequest),
		reconnectDelay: reconnectInitial,
		autoReconnect:  true,
	}, nil
}

// SetHTTPBase overrides the derived HTTP base URL for file transfers.
func (c *Client) SetHTTPBase(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("moonraker: bad http base %q: %w", rawURL, err)
	}
	c.httpBase = u
	return nil
}

// SetOnConnectFunc registers the hook fired after every successful open.
func (c *Client) SetOnConnectFunc(f func()) { c.onConnect = f }

// SetOnDisconnectFunc registers the hook fired after every close, once the
// pending table has been drained.
func (c *Client) SetOnDisconnectFunc(f func()) { c.onDisconnect = f }

// SetOnKlippyReadyFunc registers the hook fired on notify_klippy_ready.
func (c *Client) SetOnKlippyReadyFunc(f func()) { c.onKlippyReady = f }

// RegisterStatusUpdate subscribes to raw notify_status_update payloads.
// Safe to call while connected; the read pump snapshots the list under the
// same lock.
func (c *Client) RegisterStatusUpdate(fn func(params []any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCallbacks = append(c.statusCallbacks, fn)
}

// RegisterGcodeResponse subscribes to notify_gcode_response lines.
func (c *Client) RegisterGcodeResponse(fn func(line string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gcodeCallbacks = append(c.gcodeCallbacks, fn)
}

// Connected reports whether the socket is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Inventory returns the hardware discovered on the current connection, or
// nil before discovery. Read-only for callers.
func (c *Client) Inventory() *Inventory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inventory
}

// Connect dials the server. On success the connect hook is posted to the
// loop; on failure the disconnect hook is posted and, while auto-reconnect
// is on, a retry is scheduled with the capped backoff.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.wsURL.String(), nil)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return ErrClientClosed
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Str("url", c.wsURL.String()).Msg("dial failed")
		if c.onDisconnect != nil {
			c.loop.Post(c.onDisconnect)
		}
		c.scheduleReconnect()
		return err
	}

	c.conn = conn
	c.connected = true
	c.gen++
	gen := c.gen
	c.reconnectDelay = reconnectInitial
	c.outgoing = make(chan []byte, 64)
	c.sweepStop = make(chan struct{})
	outgoing := c.outgoing
	sweepStop := c.sweepStop
	c.mu.Unlock()

	c.log.Info().Str("url", c.wsURL.String()).Msg("connected")
	metrics.Connects.Inc()

	go c.readPump(conn, gen)
	go c.writePump(conn, outgoing, gen)
	go c.sweepLoop(sweepStop)

	if c.onConnect != nil {
		c.loop.Post(c.onConnect)
	}
	return nil
}

// ErrClientClosed is returned by Connect after Close.
var ErrClientClosed = newError(KindDisconnected, "", "client closed")

// Send enqueues one JSON-RPC request. It never blocks; both continuations
// fire later on the UI loop. A zero timeout means TimeoutState.
func (c *Client) Send(method string, params map[string]any, onSuccess Callback, onError ErrCallback, timeout time.Duration) {
	if timeout <= 0 {
		timeout = TimeoutState
	}
	if params == nil {
		params = map[string]any{}
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.postError(onError, newError(KindDisconnected, method, "not connected"))
		return
	}
	if c.nextID >= maxRequestID {
		c.mu.Unlock()
		c.postError(onError, newError(KindUnknown, method, "request id space exhausted"))
		return
	}
	c.nextID++
	id := c.nextID
	gen := c.gen
	now := time.Now()
	c.pending[id] = &pendingRequest{
		id:        id,
		method:    method,
		since:     now,
		deadline:  now.Add(timeout),
		onSuccess: onSuccess,
		onError:   onError,
	}
	c.mu.Unlock()

	data, err := json.Marshal(rpcRequest{JsonRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		c.failPending(id, newError(KindUnknown, method, err.Error()))
		return
	}
	metrics.RPCRequests.WithLabelValues(method).Inc()

	// Re-check under the lock: the connection may have died while
	// marshalling, in which case the drain already failed this request.
	c.mu.Lock()
	if !c.connected || gen != c.gen {
		c.mu.Unlock()
		return
	}
	select {
	case c.outgoing <- data:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		// Writer backlogged beyond the queue; treat as transport failure.
		c.failPending(id, newError(KindTransport, method, "outbound queue full"))
	}
}

// SendGcode is shorthand for printer.gcode.script.
func (c *Client) SendGcode(script string, onSuccess Callback, onError ErrCallback) {
	c.Send("printer.gcode.script", map[string]any{"script": script}, onSuccess, onError, TimeoutGcode)
}

// Disconnect closes the socket and drains every pending request with
// Disconnected. Auto-reconnect stays enabled.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close() // read pump notices and runs the teardown path
	}
}

// Close disconnects and disables reconnection for good.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.autoReconnect = false
	c.mu.Unlock()
	c.Disconnect()
}

func (c *Client) readPump(conn *websocket.Conn, gen int) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(gen, err)
			return
		}
		var frame rpcFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			c.log.Warn().Err(err).Msg("dropping unparseable frame")
			metrics.BadFrames.Inc()
			continue
		}
		switch {
		case frame.ID != nil:
			c.resolve(&frame)
		case frame.Method != "":
			c.dispatchNotification(&frame)
		}
	}
}

func (c *Client) writePump(conn *websocket.Conn, outgoing chan []byte, gen int) {
	for data := range outgoing {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.handleDisconnect(gen, err)
			return
		}
	}
}

// resolve matches a response to its pending request and posts exactly one
// continuation. Late replies after a timeout are dropped.
func (c *Client) resolve(frame *rpcFrame) {
	c.mu.Lock()
	req, ok := c.pending[*frame.ID]
	if ok {
		delete(c.pending, *frame.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Debug().Int64("id", *frame.ID).Msg("dropping late or unknown reply")
		return
	}

	if frame.Error != nil {
		err := errorFromReply(req.method, frame.Error.Code, frame.Error.Message)
		metrics.RPCErrors.WithLabelValues(err.Kind.String()).Inc()
		c.postError(req.onError, err)
		return
	}
	var result any
	if len(frame.Result) > 0 {
		if err := json.Unmarshal(frame.Result, &result); err != nil {
			c.postError(req.onError, newError(KindBadResponse, req.method, err.Error()))
			return
		}
	}
	if req.onSuccess != nil {
		c.loop.Post(func() {
			defer c.recoverCallback(req.method)
			req.onSuccess(result)
		})
	}
}

func (c *Client) dispatchNotification(frame *rpcFrame) {
	metrics.Notifications.WithLabelValues(frame.Method).Inc()
	switch frame.Method {
	case "notify_status_update":
		var params []any
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			metrics.BadFrames.Inc()
			return
		}
		callbacks := c.statusSubscribers()
		c.loop.Post(func() {
			for _, fn := range callbacks {
				func() {
					defer c.recoverCallback("notify_status_update")
					fn(params)
				}()
			}
		})
	case "notify_gcode_response":
		var params []string
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return
		}
		c.mu.Lock()
		callbacks := c.gcodeCallbacks
		c.mu.Unlock()
		c.loop.Post(func() {
			for _, fn := range callbacks {
				for _, line := range params {
					fn(line)
				}
			}
		})
	case "notify_klippy_ready":
		c.setKlippyReady(true)
		if c.onKlippyReady != nil {
			c.loop.Post(c.onKlippyReady)
		}
	case "notify_klippy_disconnected", "notify_klippy_shutdown":
		c.log.Warn().Str("event", frame.Method).Msg("klippy went down")
		c.setKlippyReady(false)
	}
}

// statusSubscribers snapshots the callback list for a dispatch.
func (c *Client) statusSubscribers() []func(params []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCallbacks
}

// setKlippyReady flips the readiness flag on the UI loop, where every
// inventory reader lives.
func (c *Client) setKlippyReady(ready bool) {
	c.loop.Post(func() {
		c.mu.Lock()
		inv := c.inventory
		c.mu.Unlock()
		if inv != nil {
			inv.KlippyReady = ready
		}
	})
}

// handleDisconnect runs the teardown path exactly once per connection
// generation: drain the pending table in request order, then fire the
// disconnect hook, then maybe schedule a reconnect.
func (c *Client) handleDisconnect(gen int, cause error) {
	c.mu.Lock()
	if gen != c.gen || !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.conn.Close()
	close(c.outgoing)
	close(c.sweepStop)
	c.inventory = nil

	drained := make([]*pendingRequest, 0, len(c.pending))
	for _, req := range c.pending {
		drained = append(drained, req)
	}
	c.pending = make(map[int64]*pendingRequest)
	c.mu.Unlock()

	sort.Slice(drained, func(i, j int) bool { return drained[i].id < drained[j].id })

	c.log.Warn().Err(cause).Int("drained", len(drained)).Msg("disconnected")
	metrics.Disconnects.Inc()

	for _, req := range drained {
		c.postError(req.onError, newError(KindDisconnected, req.method, "connection lost"))
	}
	if c.onDisconnect != nil {
		c.loop.Post(c.onDisconnect)
	}
	c.scheduleReconnect()
}

// scheduleReconnect retries with a delay doubling from 2s to a 10s cap.
// The delay resets on a successful open.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if !c.autoReconnect || c.closed {
		c.mu.Unlock()
		return
	}
	delay := c.reconnectDelay
	c.reconnectDelay *= 2
	if c.reconnectDelay > reconnectMax {
		c.reconnectDelay = reconnectMax
	}
	c.mu.Unlock()

	c.log.Info().Dur("delay", delay).Msg("reconnecting")
	metrics.Reconnects.Inc()
	time.AfterFunc(delay, func() {
		c.Connect()
	})
}

func (c *Client) sweepLoop(stop chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

// sweep fails every request older than its timeout. A reply arriving after
// this is dropped by resolve.
func (c *Client) sweep(now time.Time) {
	c.mu.Lock()
	var expired []*pendingRequest
	for id, req := range c.pending {
		if now.After(req.deadline) {
			expired = append(expired, req)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].id < expired[j].id })
	for _, req := range expired {
		c.log.Warn().Str("method", req.method).Int64("id", req.id).
			Dur("age", now.Sub(req.since)).Msg("request timed out")
		metrics.RPCTimeouts.Inc()
		c.postError(req.onError, newError(KindTimeout, req.method, "no reply within timeout"))
	}
}

func (c *Client) failPending(id int64, err *Error) {
	c.mu.Lock()
	req, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		c.postError(req.onError, err)
	}
}

func (c *Client) postError(onError ErrCallback, err *Error) {
	if onError == nil {
		c.log.Debug().Err(err).Msg("unhandled rpc error")
		return
	}
	c.loop.Post(func() {
		defer c.recoverCallback(err.Method)
		onError(err)
	})
}

// recoverCallback keeps a panicking continuation from unwinding the loop.
func (c *Client) recoverCallback(method string) {
	if r := recover(); r != nil {
		c.log.Error().Str("method", method).Interface("panic", r).Msg("callback panicked")
	}
}
