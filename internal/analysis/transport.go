package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrShutdown is returned by calls made on, or pending when, the transport
// closes.
var ErrShutdown = errors.New("analysis service shut down")

// RPCError is a JSON-RPC error returned by the service.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

type notificationHandler func(params json.RawMessage)

// transport speaks JSON-RPC 2.0 framed by Content-Length headers.
type transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[int64]chan *response
	handlers map[string]notificationHandler

	nextID atomic.Int64
	closed atomic.Bool
	done   chan struct{}
}

func newTransport(r io.Reader, w io.Writer, c io.Closer) *transport {
	return &transport{
		reader:   bufio.NewReaderSize(r, 64*1024),
		writer:   w,
		closer:   c,
		pending:  make(map[int64]chan *response),
		handlers: make(map[string]notificationHandler),
		done:     make(chan struct{}),
	}
}

func (t *transport) start() {
	go t.readLoop()
}

func (t *transport) close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.done)

	t.mu.Lock()
	t.pending = make(map[int64]chan *response)
	t.mu.Unlock()

	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

func (t *transport) call(ctx context.Context, method string, params, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	id := t.nextID.Add(1)
	ch := make(chan *response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.send(&request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

func (t *transport) onNotification(method string, h notificationHandler) {
	t.mu.Lock()
	t.handlers[method] = h
	t.mu.Unlock()
}

func (t *transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := fmt.Fprintf(t.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func (t *transport) readLoop() {
	for {
		msg, err := t.readMessage()
		if err != nil {
			if t.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				_ = t.close()
				return
			}
			slog.Debug("analysis: dropping malformed message", "error", err)
			continue
		}
		t.dispatch(msg)
	}
}

func (t *transport) readMessage() ([]byte, error) {
	contentLength := -1
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				contentLength = n
			}
		}
	}
	if contentLength < 0 {
		return nil, errors.New("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// dispatch routes responses to their callers and notifications to their
// handler. Notifications run on the read loop so they are delivered in the
// order the service sent them.
func (t *transport) dispatch(data []byte) {
	var envelope struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		slog.Debug("analysis: undecodable message", "error", err)
		return
	}

	if envelope.Method == "" && envelope.ID != nil {
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		t.mu.Lock()
		ch, ok := t.pending[resp.ID]
		delete(t.pending, resp.ID)
		t.mu.Unlock()
		if ok {
			ch <- &resp
		}
		return
	}

	t.mu.Lock()
	h, ok := t.handlers[envelope.Method]
	t.mu.Unlock()
	if ok {
		h(envelope.Params)
	} else {
		slog.Debug("analysis: unhandled notification", "method", envelope.Method)
	}
}
