package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

// Frame types on the realtime channel
const (
	FrameBroadcast    = "broadcast"
	FrameTrack        = "track"
	FrameUntrack      = "untrack"
	FramePresenceSync = "presence_sync"
)

const maxReconnectDelay = 30 * time.Second

type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RealtimeClient is the client side of the shared realtime channel. It
// carries typing broadcasts and presence, and reconnects on its own; the
// tracked presence state is replayed after every reconnect.
type RealtimeClient struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	mu        sync.Mutex
	send      chan []byte
	connected bool
	tracked   *entity.PresenceState
	nextID    int
	handlers  map[string]map[int]func([]byte)
	onSync    map[int]func([]entity.PresenceState)
	onDrop    map[int]func()
}

var (
	_ repository.Broadcaster     = (*RealtimeClient)(nil)
	_ repository.PresenceChannel = (*RealtimeClient)(nil)
)

func NewRealtimeClient(url string, header http.Header) *RealtimeClient {
	return &RealtimeClient{
		url:      url,
		header:   header,
		dialer:   websocket.DefaultDialer,
		handlers: make(map[string]map[int]func([]byte)),
		onSync:   make(map[int]func([]entity.PresenceState)),
		onDrop:   make(map[int]func()),
	}
}

// Run keeps the connection up until ctx is done.
func (c *RealtimeClient) Run(ctx context.Context) {
	delay := time.Second
	for {
		connectedAt := time.Now()
		err := c.serve(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(connectedAt) > maxReconnectDelay {
			delay = time.Second
		}
		logger.Warn("Realtime channel lost, reconnecting in %s: %v", delay, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (c *RealtimeClient) serve(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dial %s: %v", c.url, err)
	}
	defer conn.Close()

	send := make(chan []byte, sendBufferSize)
	c.mu.Lock()
	c.send = send
	c.connected = true
	tracked := c.tracked
	c.mu.Unlock()
	logger.Info("Realtime channel connected")

	defer func() {
		c.mu.Lock()
		c.connected = false
		c.send = nil
		drops := make([]func(), 0, len(c.onDrop))
		for _, h := range c.onDrop {
			drops = append(drops, h)
		}
		c.mu.Unlock()
		for _, h := range drops {
			h()
		}
	}()

	if tracked != nil {
		if frame, err := encodeFrame(FrameTrack, "", tracked); err == nil {
			send <- frame
		}
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writeErr := make(chan error, 1)
	go func() { writeErr <- c.writePump(connCtx, conn, send) }()

	readErr := c.readPump(conn)
	cancel()
	conn.Close()
	if err := <-writeErr; err != nil && readErr == nil {
		return err
	}
	return readErr
}

func (c *RealtimeClient) readPump(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warn("Realtime channel: bad frame: %v", err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *RealtimeClient) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil

		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *RealtimeClient) dispatch(frame Frame) {
	switch frame.Type {
	case FrameBroadcast:
		c.mu.Lock()
		handlers := make([]func([]byte), 0, len(c.handlers[frame.Event]))
		for _, h := range c.handlers[frame.Event] {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(frame.Payload)
		}

	case FramePresenceSync:
		var states []entity.PresenceState
		if err := json.Unmarshal(frame.Payload, &states); err != nil {
			logger.Warn("Realtime channel: bad presence payload: %v", err)
			return
		}
		c.mu.Lock()
		handlers := make([]func([]entity.PresenceState), 0, len(c.onSync))
		for _, h := range c.onSync {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(states)
		}

	default:
		logger.Debug("Realtime channel: ignoring frame %s", frame.Type)
	}
}

func (c *RealtimeClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *RealtimeClient) Send(ctx context.Context, event string, payload interface{}) error {
	frame, err := encodeFrame(FrameBroadcast, event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, frame)
}

func (c *RealtimeClient) OnBroadcast(event string, handler func(payload []byte)) repository.Unsubscribe {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]func([]byte))
	}
	c.handlers[event][id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

// Track records state so it is replayed after a reconnect, then sends it.
func (c *RealtimeClient) Track(ctx context.Context, state entity.PresenceState) error {
	c.mu.Lock()
	tracked := state
	c.tracked = &tracked
	c.mu.Unlock()

	frame, err := encodeFrame(FrameTrack, "", state)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, frame)
}

func (c *RealtimeClient) Untrack(ctx context.Context) error {
	c.mu.Lock()
	c.tracked = nil
	c.mu.Unlock()

	frame, err := encodeFrame(FrameUntrack, "", nil)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, frame)
}

func (c *RealtimeClient) OnSync(handler func(online []entity.PresenceState)) repository.Unsubscribe {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.onSync[id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.onSync, id)
	}
}

func (c *RealtimeClient) OnDisconnect(handler func()) repository.Unsubscribe {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.onDrop[id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.onDrop, id)
	}
}

func (c *RealtimeClient) enqueue(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if send == nil {
		return fmt.Errorf("realtime channel is not connected")
	}

	select {
	case send <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(writeWait):
		return fmt.Errorf("realtime channel send timed out")
	}
}

func encodeFrame(frameType, event string, payload interface{}) ([]byte, error) {
	frame := Frame{Type: frameType, Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %v", frameType, err)
		}
		frame.Payload = raw
	}
	return json.Marshal(frame)
}
