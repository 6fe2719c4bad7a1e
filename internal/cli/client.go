package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"forest/internal/coord"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// Client is a websocket session against a forest server. Direct replies are
// correlated by request id; everything else surfaces on Events.
type Client struct {
	conn    *websocket.Conn
	encoder *json.Encoder

	mu      sync.Mutex
	pending map[string]chan frame

	events chan Event
	closed chan struct{}
	once   sync.Once
}

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Event is a server push that is not a direct reply: room updates, snapshot
// refreshes, history pushes, new transactions.
type Event struct {
	Type    string
	Payload json.RawMessage
}

// Dial connects to the server's websocket endpoint. serverURL is the plain
// http(s) base URL.
func Dial(serverURL string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws"

	cfg, err := websocket.NewConfig(wsURL, base)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c := &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		pending: make(map[string]chan frame),
		events:  make(chan Event, 64),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	decoder := json.NewDecoder(c.conn)
	defer func() {
		_ = c.Close()
		// The read loop is the only sender, so the close is safe here.
		close(c.events)
	}()
	for {
		var f frame
		if err := decoder.Decode(&f); err != nil {
			return
		}
		if f.RequestID != "" {
			c.mu.Lock()
			ch, ok := c.pending[f.RequestID]
			if ok {
				delete(c.pending, f.RequestID)
			}
			c.mu.Unlock()
			if ok {
				ch <- f
				continue
			}
		}
		select {
		case c.events <- Event{Type: f.Type, Payload: f.Payload}:
		default:
			// Slow consumer; drop rather than stall the read loop.
		}
	}
}

// Events streams server pushes. The channel closes when the connection dies.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
		c.mu.Lock()
		for id, ch := range c.pending {
			delete(c.pending, id)
			close(ch)
		}
		c.mu.Unlock()
	})
	return err
}

func (c *Client) JoinRoom(ctx context.Context, roomID string) (coord.JoinRoomResult, error) {
	var result coord.JoinRoomResult
	err := c.request(ctx, "joinRoom", map[string]any{"room_id": roomID}, &result)
	return result, err
}

// LeaveRoom is fire-and-forget; the server replies only with broadcasts.
func (c *Client) LeaveRoom(roomID string) error {
	return c.send(frame{Type: "leaveRoom", Payload: mustJSON(map[string]any{"room_id": roomID})})
}

func (c *Client) TransferPoints(ctx context.Context, from, to string, amount int) (coord.TransferPointsResult, error) {
	var result coord.TransferPointsResult
	err := c.request(ctx, "transferPoints", map[string]any{
		"from":   from,
		"to":     to,
		"amount": amount,
	}, &result)
	return result, err
}

func (c *Client) UpdateRoomPoints(ctx context.Context, roomID string, points int) (coord.PointsUpdated, error) {
	var result coord.PointsUpdated
	err := c.request(ctx, "updateRoomPoints", map[string]any{
		"room_id": roomID,
		"points":  points,
	}, &result)
	return result, err
}

func (c *Client) History(ctx context.Context, roomID string) (coord.TransactionHistory, error) {
	var result coord.TransactionHistory
	err := c.request(ctx, "getTransactionHistory", map[string]any{"room_id": roomID}, &result)
	return result, err
}

func (c *Client) request(ctx context.Context, msgType string, payload any, reply any) error {
	reqID := uuid.NewString()
	ch := make(chan frame, 1)
	c.mu.Lock()
	c.pending[reqID] = ch
	c.mu.Unlock()

	err := c.send(frame{Type: msgType, RequestID: reqID, Payload: mustJSON(payload)})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		return errors.New("connection closed")
	case f, ok := <-ch:
		if !ok {
			return errors.New("connection closed")
		}
		if f.Type == coord.TypeError {
			var e coord.ErrorPayload
			if err := json.Unmarshal(f.Payload, &e); err != nil {
				return fmt.Errorf("server error (unreadable payload): %w", err)
			}
			return fmt.Errorf("%s", e.Message)
		}
		if reply == nil {
			return nil
		}
		return json.Unmarshal(f.Payload, reply)
	}
}

func (c *Client) send(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	return c.encoder.Encode(f)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
