// Package websocket is the realtime gateway: it authenticates connections,
// keeps them in rooms, and turns inbound events into service calls and room
// broadcasts.
package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/anjiri1684/guild_social/logger"
	"github.com/anjiri1684/guild_social/metrics"
	"github.com/anjiri1684/guild_social/protocol"
	"github.com/anjiri1684/guild_social/services"
)

type Config struct {
	SendBuffer        int
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	IdleTimeout       time.Duration
	EventTimeout      time.Duration
	PresenceBroadcast bool
}

type Gateway struct {
	cfg    Config
	svc    *Services
	rooms  *RoomDirectory
	logger *zap.Logger

	sessions sync.Map // uuid.UUID -> *Session

	// presence serializes one user's online/offline transitions together
	// with their announcements, so friends see them in order.
	presence   *services.KeyedMutex
	presenceMu sync.Mutex
	online     map[uuid.UUID]int
}

func NewGateway(cfg Config, svc *Services, logger *zap.Logger) *Gateway {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 10 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Gateway{
		cfg:      cfg,
		svc:      svc,
		rooms:    NewRoomDirectory(),
		logger:   logger,
		presence: services.NewKeyedMutex(),
		online:   make(map[uuid.UUID]int),
	}
}

func (g *Gateway) Rooms() *RoomDirectory { return g.rooms }

// Serve runs one connection from handshake to close and returns once the
// connection is gone. token may be empty, in which case the first frame must
// be an auth event.
func (g *Gateway) Serve(conn Conn, token string) {
	identity, err := g.authenticate(conn, token)
	if err != nil {
		metrics.AuthFailures.Inc()
		g.logger.Info("websocket handshake rejected", zap.Error(err))
		if frame, encErr := protocol.Encode("", protocol.Error{Code: string(services.KindAuth), Message: services.ErrAuth.Message}); encErr == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(fiberws.TextMessage, frame)
		}
		_ = conn.Close()
		return
	}

	s := newSession(*identity, conn, g.cfg.SendBuffer, g.logger)
	g.activate(s)
	go s.writePump(g.cfg.PingInterval)

	g.readLoop(s)
	g.deactivate(s)

	// The transport may be recycled as soon as Serve returns.
	<-s.pumpDone
}

func (g *Gateway) authenticate(conn Conn, token string) (*services.Identity, error) {
	if token == "" {
		_ = conn.SetReadDeadline(time.Now().Add(g.cfg.HandshakeTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		token, err = protocol.DecodeAuth(raw)
		if err != nil {
			return nil, err
		}
		_ = conn.SetReadDeadline(time.Time{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.HandshakeTimeout)
	defer cancel()
	return g.svc.Identity.Verify(ctx, token)
}

// activate moves a verified session to Active: rooms first, then the
// session.established frame, then presence.
func (g *Gateway) activate(s *Session) {
	g.sessions.Store(s.ID(), s)
	metrics.ConnectionsActive.Inc()

	g.rooms.Join(UserRoom(s.UserID()), s)
	var allianceID *uuid.UUID
	if id := s.identity.AllianceID; id != nil {
		g.rooms.Join(AllianceRoom(*id), s)
		allianceID = id
	}

	g.reply(s, "", protocol.SessionEstablished{SessionID: s.ID(), UserID: s.UserID(), AllianceID: allianceID})
	s.logger.Info("session established")

	unlock := g.presence.Lock(s.UserID().String())
	defer unlock()

	g.presenceMu.Lock()
	g.online[s.UserID()]++
	first := g.online[s.UserID()] == 1
	g.presenceMu.Unlock()

	if first {
		g.announce(s.UserID(), protocol.UserOnline{UserID: s.UserID()})
	}
}

// deactivate runs once per session after its read loop has returned, so any
// event in flight has finished its broadcasts.
func (g *Gateway) deactivate(s *Session) {
	s.Close()
	g.rooms.LeaveAll(s.ID())
	g.sessions.Delete(s.ID())
	metrics.ConnectionsActive.Dec()

	unlock := g.presence.Lock(s.UserID().String())
	defer unlock()

	g.presenceMu.Lock()
	g.online[s.UserID()]--
	last := g.online[s.UserID()] <= 0
	if last {
		delete(g.online, s.UserID())
	}
	g.presenceMu.Unlock()

	s.logger.Info("session closed")
	if !last {
		return
	}

	now := time.Now().UTC()
	if g.svc.LastSeen != nil {
		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.EventTimeout)
		if err := g.svc.LastSeen.Touch(ctx, s.UserID(), now); err != nil {
			s.logger.Warn("record last seen", zap.Error(err))
		}
		cancel()
	}
	g.announce(s.UserID(), protocol.UserOffline{UserID: s.UserID(), LastSeen: now})
}

// announce sends a presence event to the user rooms of the user's friends.
func (g *Gateway) announce(userID uuid.UUID, ev protocol.Outbound) {
	if !g.cfg.PresenceBroadcast || g.svc.Friends == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.EventTimeout)
	defer cancel()
	friends, err := g.svc.Friends.Friends(ctx, userID)
	if err != nil {
		g.logger.Warn("load friends for presence", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}

	frame, err := protocol.Encode("", ev)
	if err != nil {
		g.logger.Error("encode presence event", zap.Error(err))
		return
	}
	for _, id := range friends {
		g.deliver(UserRoom(id), frame, uuid.Nil)
	}
}

func (g *Gateway) readLoop(s *Session) {
	readWait := 2 * g.cfg.PingInterval
	extend := func() {
		if readWait > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
		}
	}
	extend()
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		extend()
		return nil
	})

	for {
		messageType, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Debug("read loop ended", zap.Error(err))
			}
			return
		}
		s.touch()
		extend()

		if messageType != fiberws.TextMessage {
			continue
		}
		g.Handle(s, raw)
	}
}

// Handle processes one inbound frame for the session. Events of one session
// are handled one at a time, in order. The event context is detached from
// the connection so persistence completes even if the client goes away; the
// ack is then simply not delivered.
func (g *Gateway) Handle(s *Session, raw []byte) {
	eventID := xid.New().String()
	start := time.Now()

	env, ev, err := protocol.Decode(raw)
	if err != nil {
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			err = services.ValidationError(de.Reason)
		}
		g.fail(s, eventID, env, err)
		return
	}

	handler, ok := dispatch[env.Type]
	if !ok {
		g.fail(s, eventID, env, services.ValidationError("unknown event type"))
		return
	}

	ctx, cancel := context.WithTimeout(logger.WithEventID(context.Background(), eventID), g.cfg.EventTimeout)
	defer cancel()

	res, err := handler(ctx, g.svc, s, ev)
	metrics.EventDuration.WithLabelValues(env.Type).Observe(time.Since(start).Seconds())
	if err != nil {
		g.fail(s, eventID, env, err)
		return
	}
	metrics.EventsTotal.WithLabelValues(env.Type, "ok").Inc()

	for _, b := range res.Broadcasts {
		frame, err := protocol.Encode("", b.Event)
		if err != nil {
			s.logger.Error("encode broadcast", zap.String("event_id", eventID), zap.Error(err))
			continue
		}
		g.deliver(b.Room, frame, b.Except)
	}
	if res.Ack != nil {
		g.reply(s, env.RequestID, res.Ack)
	}
}

func (g *Gateway) deliver(room string, frame []byte, except uuid.UUID) {
	n := g.rooms.Broadcast(room, frame, except)
	metrics.BroadcastDeliveries.Add(float64(n))
}

func (g *Gateway) fail(s *Session, eventID string, env protocol.Envelope, err error) {
	kind := services.KindOf(err)
	event := env.Type
	if _, known := dispatch[event]; !known {
		event = "unknown"
	}
	metrics.EventsTotal.WithLabelValues(event, string(kind)).Inc()

	fields := []zap.Field{zap.String("event", env.Type), zap.String("event_id", eventID), zap.Error(err)}
	if kind == services.KindStorage {
		s.logger.Error("event failed", fields...)
	} else {
		s.logger.Debug("event rejected", fields...)
	}

	g.reply(s, env.RequestID, protocol.Error{
		Code:    string(kind),
		Message: services.PublicMessage(err),
		Event:   env.Type,
	})
}

func (g *Gateway) reply(s *Session, requestID string, ev protocol.Outbound) {
	frame, err := protocol.Encode(requestID, ev)
	if err != nil {
		s.logger.Error("encode reply", zap.Error(err))
		return
	}
	s.Send(frame)
}

// IsOnline reports whether the user has at least one active session.
func (g *Gateway) IsOnline(userID uuid.UUID) bool {
	g.presenceMu.Lock()
	defer g.presenceMu.Unlock()
	return g.online[userID] > 0
}

// ReapIdle closes sessions with no inbound activity since before
// now-IdleTimeout and returns how many it closed.
func (g *Gateway) ReapIdle(now time.Time) int {
	if g.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-g.cfg.IdleTimeout)
	reaped := 0
	g.sessions.Range(func(_, v any) bool {
		s := v.(*Session)
		if s.LastActivity().Before(cutoff) {
			s.logger.Info("closing idle session")
			s.Close()
			reaped++
		}
		return true
	})
	return reaped
}

// Shutdown closes every open session.
func (g *Gateway) Shutdown() {
	g.sessions.Range(func(_, v any) bool {
		v.(*Session).Close()
		return true
	})
}
