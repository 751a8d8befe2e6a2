package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"trip-chat/pkg/chat"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per session. A full buffer means the peer is
	// unreachable and the frame is dropped.
	sendBufferSize = 256
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the frontend domain is fixed
		return true
	},
}

// ErrSlowConsumer is reported when a session's send buffer is full. The frame
// is dropped for that session only.
var ErrSlowConsumer = errors.New("session send buffer full")

var errSessionClosed = errors.New("session closed")

// Session is one websocket connection's lifecycle. Identity comes from the
// authenticated handshake; a session becomes visible to other users once it
// announces itself via the user-online event.
type Session struct {
	ID     string
	UserID string
	Role   string

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func NewSession(conn *websocket.Conn, userID, role string) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// Send enqueues a frame for delivery without blocking. A full buffer or a
// closed session drops the frame and reports why.
func (s *Session) Send(frame chat.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case <-s.closed:
		return errSessionClosed
	default:
	}

	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close terminates the connection. Safe to call more than once and from any
// goroutine; pending buffered frames are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// Closed reports whether the session has been shut down.
func (s *Session) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// ReadPump pumps inbound frames to the handler sequentially. It owns the
// connection's read side and triggers full cleanup when the connection drops,
// whatever the reason.
func (s *Session) ReadPump(handler *EventHandler) {
	defer func() {
		handler.Disconnect(s)
		s.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error for user %s: %v", s.UserID, err)
			}
			return
		}
		handler.HandleEvent(s, raw)
	}
}

// WritePump drains the send buffer to the connection and keeps the peer alive
// with pings. It owns the connection's write side.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.closed:
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
