package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"forest/internal/coord"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

type Server struct {
	coord *coord.Coordinator
	log   *slog.Logger
	mux   *chi.Mux
}

func New(c *coord.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coord: c,
		log:   logger,
		mux:   chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		r.Get("/v1/rooms", s.handleRoomsList)
	})

	// Websocket sessions live as long as the client does; no timeout here.
	r.Get("/ws", websocket.Handler(s.handleConn).ServeHTTP)
}

// handleRoomsList serves the public occupancy view. Every balance is hidden;
// concrete values only travel over a joined websocket session.
func (s *Server) handleRoomsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.coord.Snapshot()})
}

// frame is the wire envelope in both directions. RequestID, when present on
// a command, is echoed on the direct reply so clients can correlate.
type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type joinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type leaveRoomPayload struct {
	RoomID string `json:"room_id"`
}

type transferPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int    `json:"amount"`
}

type updatePointsPayload struct {
	RoomID string `json:"room_id"`
	Points int    `json:"points"`
}

type historyPayload struct {
	RoomID string `json:"room_id"`
}

// wsPeer serializes outbound frames onto one connection. The coordinator
// goroutine and the transport error paths both write, hence the mutex.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) Send(msg coord.Message) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame{
		Type:      msg.Type,
		RequestID: msg.RequestID,
		Payload:   payload,
	})
}

func (s *Server) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	connID := uuid.NewString()
	peer := newWSPeer(json.NewEncoder(conn))
	decoder := json.NewDecoder(conn)

	s.coord.Connect(connID, peer)
	defer s.coord.Disconnect(connID)

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var f frame
		if err := decoder.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			s.writeError(peer, "", "invalid_payload", "invalid frame")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(f.Payload) > maxFramePayloadBytes {
			s.writeError(peer, f.RequestID, "invalid_payload", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			s.writeError(peer, f.RequestID, "rate_limited", "rate limit exceeded")
			return
		}

		switch f.Type {
		case "joinRoom":
			var p joinRoomPayload
			if !s.decodePayload(peer, f, &p) {
				continue
			}
			s.coord.JoinRoom(connID, f.RequestID, p.RoomID)
		case "leaveRoom":
			var p leaveRoomPayload
			if !s.decodePayload(peer, f, &p) {
				continue
			}
			s.coord.LeaveRoom(connID, p.RoomID)
		case "transferPoints":
			var p transferPayload
			if !s.decodePayload(peer, f, &p) {
				continue
			}
			s.coord.TransferPoints(connID, f.RequestID, p.From, p.To, p.Amount)
		case "updateRoomPoints":
			var p updatePointsPayload
			if !s.decodePayload(peer, f, &p) {
				continue
			}
			s.coord.UpdateRoomPoints(connID, f.RequestID, p.RoomID, p.Points)
		case "getTransactionHistory":
			var p historyPayload
			if !s.decodePayload(peer, f, &p) {
				continue
			}
			s.coord.GetTransactionHistory(connID, f.RequestID, p.RoomID)
		default:
			s.writeError(peer, f.RequestID, "invalid_payload", "unsupported frame type")
		}
	}
}

func (s *Server) decodePayload(peer *wsPeer, f frame, dst any) bool {
	if err := json.Unmarshal(f.Payload, dst); err != nil {
		s.writeError(peer, f.RequestID, "invalid_payload", "invalid "+f.Type+" payload")
		return false
	}
	return true
}

func (s *Server) writeError(peer *wsPeer, requestID, code, message string) {
	err := peer.Send(coord.Message{
		Type:      coord.TypeError,
		RequestID: requestID,
		Payload:   coord.ErrorPayload{Code: code, Message: message},
	})
	if err != nil {
		s.log.Warn("write error frame failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
