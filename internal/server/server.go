package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/zono819/token-seller/internal/infrastructure/eventhub"
	"github.com/zono819/token-seller/internal/infrastructure/logger"
	"github.com/zono819/token-seller/internal/observability"
	"github.com/zono819/token-seller/internal/usecase/supervisor"
)

// Server exposes the task operations, the event stream and metrics over
// HTTP. It is the repo's replacement for the original desktop front-end.
type Server struct {
	sup      *supervisor.Supervisor
	hub      *eventhub.Hub
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// New creates a Server
func New(sup *supervisor.Supervisor, hub *eventhub.Hub, log *logger.Logger) *Server {
	return &Server{
		sup: sup,
		hub: hub,
		log: log.WithField("component", "server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes returns the HTTP handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", s.handleCreate)
	mux.HandleFunc("GET /tasks", s.handleList)
	mux.HandleFunc("POST /tasks/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /tasks/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /tasks/{id}/price", s.handleAmendPrice)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleDelete)
	mux.HandleFunc("GET /logs", s.handleLogs)
	mux.HandleFunc("GET /ws/events", s.handleEventStream)
	mux.Handle("GET /metrics", observability.Handler())
	return mux
}

type createRequest struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Price    string `json:"price"`
}

type priceRequest struct {
	Price string `json:"price"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid price"))
		return
	}

	id, err := s.sup.Create(req.Exchange, req.Symbol, price)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sup.Tasks())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.sup.Cancel(r.PathValue("id")); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.sup.Resume(r.PathValue("id")); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func (s *Server) handleAmendPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid price"))
		return
	}

	if err := s.sup.AmendPrice(r.Context(), r.PathValue("id"), price); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "amended"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sup.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.hub.History())
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(64)
	defer s.hub.Unsubscribe(sub)

	// Drain reads to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, supervisor.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, supervisor.ErrUnknownSymbol),
		errors.Is(err, supervisor.ErrMissingCredentials),
		errors.Is(err, supervisor.ErrUnknownExchange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
