// Package rpc is the bridge between the gateway and a signal-cli daemon:
// one TCP connection carrying newline-delimited JSON-RPC 2.0. Concurrent
// calls are correlated to out-of-order responses by request id; frames with
// no id are notifications and are handed to the event bus.
package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/signalgw/gateway/events"
	"github.com/signalgw/gateway/metrics"
)

// ErrTimeout is the sentinel for a call that received no response within
// its deadline. The HTTP layer maps it to 504; every other call error maps
// to 400.
var ErrTimeout = errors.New("RPC_TIMEOUT")

// ErrClosed is returned for calls issued on, or in flight over, a torn-down
// daemon connection.
var ErrClosed = errors.New("signal-cli connection closed")

// RemoteError carries an error object reported by signal-cli itself,
// stringified verbatim.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

const (
	// DefaultCallTimeout bounds every call; signal-cli can block for a long
	// time on network-bound operations.
	DefaultCallTimeout = 30 * time.Second

	dialTimeout = 5 * time.Second

	// maxFrameSize bounds a single inbound line. Attachment payloads are
	// base64 inside the frame, so this is generous.
	maxFrameSize = 16 * 1024 * 1024
)

type result struct {
	value json.RawMessage
	err   error
}

// Client owns the daemon connection. Exactly one goroutine writes to it and
// exactly one reads from it; any number of goroutines may Call concurrently.
type Client struct {
	log     *zap.SugaredLogger
	conn    net.Conn
	bus     *events.Bus
	metrics *metrics.Metrics
	timeout time.Duration

	writeCh   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan result
}

type Option func(c *Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = l.Named("rpc").Sugar()
	}
}

// WithCallTimeout sets the default per-call deadline used by Call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Dial connects to a signal-cli daemon and starts the reader and writer
// goroutines. Notifications are published to bus; counters are recorded on
// m. The caller should Close the client when done.
func Dial(addr string, bus *events.Bus, m *metrics.Metrics, opts ...Option) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to signal-cli at %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		bus:     bus,
		metrics: m,
		timeout: DefaultCallTimeout,
		writeCh: make(chan []byte, 256),
		closed:  make(chan struct{}),
		pending: map[uint64]chan result{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		logger, err := zap.NewDevelopment()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("building logger: %w", err)
		}
		c.log = logger.Named("rpc").Sugar()
	}

	go c.writeLoop()
	go c.readLoop()

	return c, nil
}

// Close tears down the connection. All in-flight and future calls fail with
// ErrClosed and the event bus is closed. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()

		c.mu.Lock()
		pending := c.pending
		c.pending = nil
		c.mu.Unlock()

		for _, ch := range pending {
			ch <- result{err: ErrClosed}
		}
		c.bus.Close()
	})
}

// Call issues a JSON-RPC request with the client's default deadline.
func (c *Client) Call(method string, params json.RawMessage) (json.RawMessage, error) {
	return c.CallTimeout(method, params, c.timeout)
}

// CallTimeout issues a JSON-RPC request and blocks until the matching
// response arrives or the deadline elapses. The pending entry is cleaned up
// on every path; a response that loses the race against the deadline is
// discarded without effect.
func (c *Client) CallTimeout(method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	c.metrics.IncRPCCalls()
	value, err := c.call(method, params, timeout)
	if err != nil {
		c.metrics.IncRPCErrors()
	}
	return value, err
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      uint64          `json:"id"`
}

func (c *Client) call(method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	// Ids come from one ever-incrementing counter and are never reused;
	// reuse would allow a late response to resolve the wrong call.
	id := c.nextID.Add(1)

	line, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	line = append(line, '\n')

	ch := make(chan result, 1)
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	select {
	case c.writeCh <- line:
	case <-c.closed:
		c.dropPending(id)
		return nil, ErrClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-timer.C:
		c.dropPending(id)
		// The reader may have resolved the call in the same instant the
		// timer fired; prefer the response if it is already buffered.
		select {
		case res := <-ch:
			return res.value, res.err
		default:
		}
		return nil, ErrTimeout
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case line := <-c.writeCh:
			if _, err := c.conn.Write(line); err != nil {
				c.log.Errorf("writing to signal-cli: %s", err)
				c.Close()
				return
			}
		}
	}
}

type inboundFrame struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			c.log.Warnf("bad JSON from signal-cli: %s", err)
			continue
		}

		if frame.ID != nil {
			if ch := c.takePending(*frame.ID); ch != nil {
				ch <- frameResult(frame)
				continue
			}
			// No caller is waiting: either the call already timed out or
			// the daemon volunteered a correlated frame we never asked
			// for. Either way it goes to subscribers instead of the floor.
		}

		c.metrics.IncMessagesReceived()
		c.bus.Publish(append([]byte(nil), line...))
	}

	if err := scanner.Err(); err != nil {
		c.log.Errorf("reading from signal-cli: %s", err)
	} else {
		c.log.Error("signal-cli connection closed")
	}
	c.Close()
}

func frameResult(frame inboundFrame) result {
	if frame.Error != nil {
		return result{err: &RemoteError{Message: string(frame.Error)}}
	}
	value := frame.Result
	if value == nil {
		value = json.RawMessage("null")
	}
	return result{value: append(json.RawMessage(nil), value...)}
}

func (c *Client) takePending(id uint64) chan result {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return ch
}

func (c *Client) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
