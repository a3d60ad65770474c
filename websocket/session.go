package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anjiri1684/guild_social/metrics"
	"github.com/anjiri1684/guild_social/services"
)

const writeWait = 10 * time.Second

// Conn is the part of a websocket connection the gateway uses.
// *fiberws.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session is one authenticated connection. Frames for it are queued on send
// and written by its write pump only. The queue is never closed; done is.
// pumpDone closes once the write pump has stopped touching conn.
type Session struct {
	id       uuid.UUID
	identity services.Identity
	conn     Conn
	logger   *zap.Logger

	send      chan []byte
	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once

	lastActivity atomic.Int64
}

func newSession(identity services.Identity, conn Conn, buffer int, logger *zap.Logger) *Session {
	id := uuid.New()
	s := &Session{
		id:       id,
		identity: identity,
		conn:     conn,
		logger:   logger.With(zap.String("session_id", id.String()), zap.String("user_id", identity.UserID.String())),
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	s.touch()
	return s
}

func (s *Session) ID() uuid.UUID     { return s.id }
func (s *Session) UserID() uuid.UUID { return s.identity.UserID }

// Send queues a frame without blocking. A full queue means the client is not
// keeping up; the session is closed and the frame dropped.
func (s *Session) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
		metrics.DroppedSessions.Inc()
		s.logger.Warn("outbound queue full, closing session")
		s.Close()
		return false
	}
}

// Close is idempotent. Closing the transport unblocks the read loop, which
// then tears the session down.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// writePump drains the queue onto the transport and pings the peer every
// pingInterval (no pings when it is zero).
func (s *Session) writePump(pingInterval time.Duration) {
	defer close(s.pumpDone)

	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(fiberws.TextMessage, frame); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				s.Close()
				return
			}
		case <-tick:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(fiberws.PingMessage, nil); err != nil {
				s.logger.Debug("ping failed", zap.Error(err))
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
