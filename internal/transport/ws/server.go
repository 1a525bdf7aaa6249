package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/observability"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/registry"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/security"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/voice"

	"github.com/gorilla/websocket"
)

// Limiter is the per-connection rate-limit hook. Policy lives outside this
// core; nil means no limiting.
type Limiter interface {
	Allow(userID string) bool
}

// Server is the connection gateway and event router. Each connection is
// authenticated once during the handshake, then its events are dispatched
// serially by its own read loop: join_room moves it into a room, leave_room
// and disconnect move it back out, and everything in between is gated on
// the room it is currently in.
type Server struct {
	upgrader    websocket.Upgrader
	hub         *Hub
	registry    *registry.Registry
	verifier    security.Verifier
	transcriber voice.Transcriber
	limiter     Limiter
	metrics     *observability.Metrics

	pingEvery time.Duration
}

type ServerOption func(*Server)

func WithTranscriber(t voice.Transcriber) ServerOption {
	return func(s *Server) { s.transcriber = t }
}

func WithLimiter(l Limiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

func WithPingInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.pingEvery = d
		}
	}
}

func NewServer(hub *Hub, reg *registry.Registry, verifier security.Verifier, opts ...ServerOption) *Server {
	s := &Server{
		hub:      hub,
		registry: reg,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleWS authenticates the handshake and runs the connection until it
// drops. Rejections happen before the upgrade, so an unauthenticated peer
// never gets a socket to emit events on.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		slog.Debug("ws auth rejected", "err", err)
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}
	if s.limiter != nil && !s.limiter.Allow(identity.UserID) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, identity)
	s.connOpened()

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	// Disconnect path: runs whether or not the client sent leave_room,
	// and must stay idempotent with an explicit leave having already run.
	s.cleanup(r.Context(), c, "disconnect")
	s.connClosed()

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "user", identity.UserID, "err", err)
	}
}

func bearerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("access_token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && len(auth) > 7 {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(c, "malformed event")
			continue
		}
		s.dispatch(ctx, c, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, c *wsConn, msg Message) {
	s.countEvent("in", msg.Type)

	switch msg.Type {
	case EvtJoinRoom:
		s.handleJoin(ctx, c, msg.Payload)
	case EvtLeaveRoom:
		s.handleLeave(ctx, c, msg.Payload)
	case EvtSendMessage:
		s.handleSend(ctx, c, msg.Payload)
	case EvtVoiceMessage:
		s.handleVoice(ctx, c, msg.Payload)
	case EvtScreenShare:
		s.handleScreenShare(c, msg.Payload)
	case EvtTyping:
		s.handleTyping(c, msg.Payload)
	case EvtCursorPosition:
		s.handleCursor(c, msg.Payload)
	case EvtHeartbeat:
		_ = c.Send(newMessage(EvtHeartbeatAck, HeartbeatPayload{Timestamp: time.Now().UnixMilli()}))
	default:
		s.sendError(c, "unknown event: "+msg.Type)
	}
}

func (s *Server) handleJoin(ctx context.Context, c *wsConn, raw json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.CollaborationSessionID == "" {
		s.sendError(c, "join_room requires collaborationSessionId")
		return
	}

	role, err := s.effectiveRole(c, p.Role)
	if err != nil {
		s.sendError(c, err.Error())
		return
	}

	// Switching rooms leaves the old one first.
	if c.roomID != "" && c.roomID != p.CollaborationSessionID {
		s.leaveRoom(ctx, c)
	}

	session, participants, err := s.registry.Join(ctx, p.CollaborationSessionID, c.identity.UserID, role)
	if err != nil {
		s.sendError(c, joinErrMessage(err))
		return
	}

	c.roomID = session.RoomID
	s.hub.Add(session.RoomID, c)
	s.setRoomGauge(session.RoomID)

	s.broadcast(session.RoomID, newMessage(EvtUserJoined, PeerEventPayload{
		UserID:    c.identity.UserID,
		Role:      string(role),
		Timestamp: time.Now(),
	}), c)

	_ = c.Send(newMessage(EvtRoomJoined, RoomJoinedPayload{
		CollaborationSession: session,
		Participants:         participants,
	}))
}

// effectiveRole resolves the requested role against the token role: the
// token is the ceiling, a request may only step down (e.g. a tutor sitting
// in as observer).
func (s *Server) effectiveRole(c *wsConn, requested string) (domain.Role, error) {
	if requested == "" {
		return c.identity.Role, nil
	}
	role, err := domain.ParseRole(requested)
	if err != nil {
		return "", err
	}
	if roleRank(role) > roleRank(c.identity.Role) {
		return "", domain.ErrNotAuthorized
	}
	return role, nil
}

func roleRank(r domain.Role) int {
	switch r {
	case domain.RoleTutor:
		return 2
	case domain.RoleStudent:
		return 1
	case domain.RoleObserver:
		return 0
	}
	return -1
}

func (s *Server) handleLeave(ctx context.Context, c *wsConn, raw json.RawMessage) {
	var p LeaveRoomPayload
	// the payload may be a bare session id string as well
	if err := json.Unmarshal(raw, &p); err != nil {
		var id string
		if json.Unmarshal(raw, &id) == nil {
			p.CollaborationSessionID = id
		}
	}

	if c.roomID == "" {
		s.sendError(c, "not in a room")
		return
	}
	if p.CollaborationSessionID != "" && p.CollaborationSessionID != c.roomID {
		s.sendError(c, "not in that room")
		return
	}
	s.leaveRoom(ctx, c)
}

// leaveRoom is the single cleanup path shared by leave_room, room switching
// and disconnect. It clears c.roomID, which is what makes a later
// disconnect idempotent: the second pass finds no room and does nothing.
func (s *Server) leaveRoom(ctx context.Context, c *wsConn) {
	roomID := c.roomID
	if roomID == "" {
		return
	}
	c.roomID = ""

	s.hub.Remove(roomID, c)
	if err := s.registry.Leave(ctx, roomID, c.identity.UserID); err != nil {
		slog.Warn("leave cleanup failed", "room", roomID, "user", c.identity.UserID, "err", err)
	}
	s.setRoomGauge(roomID)

	s.broadcast(roomID, newMessage(EvtUserLeft, PeerEventPayload{
		UserID:    c.identity.UserID,
		Timestamp: time.Now(),
	}), c)
}

func (s *Server) handleSend(ctx context.Context, c *wsConn, raw json.RawMessage) {
	var p SendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, "malformed send_message payload")
		return
	}
	roomID, ok := s.roomFor(c, p.CollaborationSessionID)
	if !ok {
		return
	}

	typ := domain.MessageType(p.Type)
	if p.Type == "" {
		typ = domain.MessageText
	}
	m, err := s.registry.SendMessage(ctx, roomID, c.identity.UserID, typ, p.Content, p.Metadata)
	if err != nil {
		s.sendError(c, sendErrMessage(err))
		return
	}

	// persistence succeeded; only now does the room see the message
	s.broadcast(roomID, newMessage(EvtMessageReceived, m), nil)
}

func (s *Server) handleVoice(ctx context.Context, c *wsConn, raw json.RawMessage) {
	var p VoiceMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.AudioData == "" {
		s.sendError(c, "malformed voice_message payload")
		return
	}
	roomID, ok := s.roomFor(c, p.CollaborationSessionID)
	if !ok {
		return
	}
	if s.transcriber == nil {
		s.sendError(c, "voice messages are not enabled")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(p.AudioData)
	if err != nil {
		s.sendError(c, "audioData is not valid base64")
		return
	}

	tr, err := s.transcriber.Transcribe(ctx, audio, p.Language)
	if err != nil {
		slog.Warn("transcription failed", "room", roomID, "user", c.identity.UserID, "err", err)
		s.sendError(c, "transcription failed")
		return
	}

	meta := map[string]string{
		"confidence": formatConfidence(tr.Confidence),
		"language":   tr.Language,
	}
	m, err := s.registry.SendMessage(ctx, roomID, c.identity.UserID, domain.MessageVoice, tr.Text, meta)
	if err != nil {
		s.sendError(c, sendErrMessage(err))
		return
	}

	s.broadcast(roomID, newMessage(EvtVoiceMessageReceived, VoiceReceivedPayload{
		Message:   m,
		AudioData: p.AudioData,
	}), nil)
}

func (s *Server) handleScreenShare(c *wsConn, raw json.RawMessage) {
	var p ScreenSharePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, "malformed screen_share payload")
		return
	}
	if p.Action != "start" && p.Action != "stop" {
		s.sendError(c, "screen_share action must be start or stop")
		return
	}
	roomID, ok := s.roomFor(c, p.CollaborationSessionID)
	if !ok {
		return
	}
	p.CollaborationSessionID = roomID
	p.UserID = c.identity.UserID
	s.broadcast(roomID, newMessage(EvtScreenShare, p), c)
}

func (s *Server) handleTyping(c *wsConn, raw json.RawMessage) {
	var p TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, "malformed typing payload")
		return
	}
	if c.roomID == "" {
		s.sendError(c, "not in a room")
		return
	}
	p.UserID = c.identity.UserID
	s.broadcast(c.roomID, newMessage(EvtTyping, p), c)
}

func (s *Server) handleCursor(c *wsConn, raw json.RawMessage) {
	var p CursorPositionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, "malformed cursor_position payload")
		return
	}
	if c.roomID == "" {
		s.sendError(c, "not in a room")
		return
	}
	p.UserID = c.identity.UserID
	s.broadcast(c.roomID, newMessage(EvtCursorPosition, p), c)
}

// roomFor gates room-scoped events: the connection must be in a room, and a
// caller-supplied session id must match it. Cross-room sends are rejected
// even when the caller is a member of the other room.
func (s *Server) roomFor(c *wsConn, requested string) (string, bool) {
	if c.roomID == "" {
		s.sendError(c, "not in a room")
		return "", false
	}
	if requested != "" && requested != c.roomID {
		s.sendError(c, "not joined to that room")
		return "", false
	}
	return c.roomID, true
}

func (s *Server) cleanup(ctx context.Context, c *wsConn, reason string) {
	if c.roomID == "" {
		return
	}
	slog.Debug("ws cleanup", "room", c.roomID, "user", c.identity.UserID, "reason", reason)
	s.leaveRoom(ctx, c)
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

func (s *Server) broadcast(roomID string, msg Message, except Conn) {
	n := s.hub.Broadcast(roomID, msg, except)
	s.countEvent("out", msg.Type)
	if s.metrics != nil && n > 0 {
		s.metrics.BroadcastFanout.Observe(float64(n))
	}
}

func (s *Server) sendError(c *wsConn, message string) {
	s.countEvent("out", EvtError)
	_ = c.Send(newMessage(EvtError, ErrorPayload{Message: message}))
}

func joinErrMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "room not found"
	case errors.Is(err, domain.ErrSessionClosed):
		return "session is no longer joinable"
	case errors.Is(err, domain.ErrInvalidRole):
		return "invalid role"
	default:
		return "join failed"
	}
}

func sendErrMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotMember):
		return "not an active participant"
	case errors.Is(err, domain.ErrNotAuthorized):
		return "role may not post messages"
	case errors.Is(err, domain.ErrInvalidMessageType):
		return "invalid message"
	default:
		return "message not delivered"
	}
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (s *Server) connOpened() {
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
	}
}

func (s *Server) connClosed() {
	if s.metrics != nil {
		s.metrics.ActiveConnections.Dec()
	}
}

func (s *Server) countEvent(direction, typ string) {
	if s.metrics != nil {
		s.metrics.WSEvents.WithLabelValues(direction, typ).Inc()
	}
}

func (s *Server) setRoomGauge(roomID string) {
	if s.metrics != nil {
		s.metrics.RoomParticipants.WithLabelValues(roomID).Set(float64(s.hub.Count(roomID)))
	}
}
