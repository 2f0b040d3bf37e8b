package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/foxseedlab/zadankai/internal/gateway"
	"github.com/foxseedlab/zadankai/internal/meeting"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server owns the viewer-facing websocket endpoint. Each connection gets a
// read loop goroutine; writes go through the connection's Push with its own
// mutex because synthesis workers push concurrently with handler replies.
type Server struct {
	manager *meeting.Manager
}

func NewServer(manager *meeting.Manager) *Server {
	return &Server{manager: manager}
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	c := &viewerConn{conn: conn}
	defer func() {
		if c.meetingID != "" {
			s.manager.Detach(c.meetingID)
		}
		_ = conn.Close()
	}()
	slog.Info("viewer connected", "remote", conn.RemoteAddr().String())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("viewer connection closed", "error", err, "meeting_id", c.meetingID)
			return
		}
		var env gateway.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("malformed frame", "error", err)
			continue
		}
		s.dispatch(r.Context(), c, env)
	}
}

func (s *Server) dispatch(ctx context.Context, c *viewerConn, env gateway.Envelope) {
	switch env.Event {
	case gateway.EventStartConversation:
		var p gateway.StartConversationPayload
		if !decode(env, &p) {
			return
		}
		meetingID, err := s.manager.StartConversation(ctx, c, p)
		if err != nil {
			slog.Error("start_conversation failed", "error", err)
			return
		}
		c.meetingID = meetingID

	case gateway.EventRaiseHand:
		var p gateway.RaiseHandPayload
		if !decode(env, &p) {
			return
		}
		if err := s.manager.RaiseHand(ctx, c.meetingID, p); err != nil {
			slog.Error("raise_hand failed", "error", err, "meeting_id", c.meetingID)
		}

	case gateway.EventSubmitHumanMessage:
		var p gateway.SubmitHumanMessagePayload
		if !decode(env, &p) {
			return
		}
		if err := s.manager.SubmitHumanMessage(ctx, c.meetingID, p); err != nil {
			slog.Error("submit_human_message failed", "error", err, "meeting_id", c.meetingID)
		}

	case gateway.EventSubmitHumanPanelist:
		var p gateway.SubmitHumanPanelistPayload
		if !decode(env, &p) {
			return
		}
		if err := s.manager.SubmitHumanPanelist(ctx, c.meetingID, p); err != nil {
			slog.Error("submit_human_panelist failed", "error", err, "meeting_id", c.meetingID)
		}

	case gateway.EventContinueConversation:
		if err := s.manager.ContinueConversation(ctx, c.meetingID); err != nil {
			slog.Error("continue_conversation failed", "error", err, "meeting_id", c.meetingID)
		}

	case gateway.EventWrapUpMeeting:
		var p gateway.WrapUpMeetingPayload
		if !decode(env, &p) {
			return
		}
		if err := s.manager.WrapUpMeeting(ctx, c.meetingID, p); err != nil {
			slog.Error("wrap_up_meeting failed", "error", err, "meeting_id", c.meetingID)
		}

	case gateway.EventAttemptReconnection:
		var p gateway.AttemptReconnectionPayload
		if !decode(env, &p) {
			return
		}
		if err := s.manager.AttemptReconnection(ctx, c, p); err != nil {
			slog.Error("attempt_reconnection failed", "error", err, "meeting_id", p.MeetingID)
			return
		}
		c.meetingID = p.MeetingID

	case gateway.EventRemoveLastMessage:
		if err := s.manager.RemoveLastMessage(ctx, c.meetingID); err != nil {
			slog.Error("remove_last_message failed", "error", err, "meeting_id", c.meetingID)
		}

	default:
		slog.Warn("unknown event", "event", env.Event)
	}
}

func decode(env gateway.Envelope, out any) bool {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		slog.Warn("malformed payload", "event", env.Event, "error", err)
		return false
	}
	return true
}

// viewerConn is the gateway.Pusher bound to one websocket connection.
// meetingID is touched only by the connection's read loop.
type viewerConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	meetingID string
}

func (c *viewerConn) Push(event string, payload any) error {
	env, err := gateway.Encode(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}
