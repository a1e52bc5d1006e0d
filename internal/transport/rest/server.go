// Package rest serves the polling API. Every route sits behind the
// shared-secret check; a missing or wrong key is rejected the same way
// regardless of which operation was requested.
package rest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/klauspost/compress/gzhttp"

	"swarmhub.gg/internal/hub"
	"swarmhub.gg/internal/protocol"
)

type Server struct {
	hub    *hub.Hub
	apiKey string
	log    *log.Logger
}

func NewServer(h *hub.Hub, apiKey string, logger *log.Logger) *Server {
	return &Server{hub: h, apiKey: apiKey, log: logger}
}

// Handler builds the authenticated, gzip-wrapped route set.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("POST /agents/register", s.handleRegister)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /agents/{id}", s.handleAgent)
	mux.HandleFunc("POST /agents/{id}/chat", s.handleChat)
	mux.HandleFunc("POST /agents/{id}/action", s.handleAction)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /game/players", s.handlePlayers)
	mux.HandleFunc("POST /game/execute", s.handleExecute)
	return gzhttp.GzipHandler(s.auth(mux))
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			writeError(rw, http.StatusForbidden, protocol.ErrUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (s *Server) handleInfo(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"service":          "swarm event hub",
		"agents_connected": len(s.hub.Registry().ConnectedAgents()),
		"events_stored":    s.hub.Events().Len(),
	})
}

func (s *Server) handleRegister(rw http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "name required")
		return
	}
	writeJSON(rw, http.StatusOK, s.hub.RegisterAgent(r.Context(), req.Name, req.Color))
}

func (s *Server) handleAgents(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, s.hub.Agents())
}

func (s *Server) handleAgent(rw http.ResponseWriter, r *http.Request) {
	info, err := s.hub.AgentInfo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeHubError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, info)
}

func (s *Server) handleChat(rw http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad chat body")
		return
	}
	ev, err := s.hub.SendChat(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		writeHubError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.ChatResponse{Status: protocol.StatusSent, EventID: ev.ID})
}

func (s *Server) handleAction(rw http.ResponseWriter, r *http.Request) {
	var req protocol.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad action body")
		return
	}
	result, err := s.hub.DispatchAction(r.Context(), r.PathValue("id"), req.Action, req.Params)
	if err != nil {
		writeHubError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, result)
}

func (s *Server) handleEvents(rw http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad limit")
			return
		}
		limit = n
	}
	writeJSON(rw, http.StatusOK, s.hub.ListEvents(r.URL.Query().Get("since"), limit))
}

func (s *Server) handlePlayers(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, protocol.PlayersResponse{Players: s.hub.PlayersOnline(r.Context())})
}

func (s *Server) handleExecute(rw http.ResponseWriter, r *http.Request) {
	var req protocol.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad execute body")
		return
	}
	writeJSON(rw, http.StatusOK, protocol.ExecuteResponse{Result: s.hub.ExecuteRaw(r.Context(), req.Command)})
}

func writeHubError(rw http.ResponseWriter, err error) {
	if errors.Is(err, hub.ErrAgentNotFound) {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "agent not found")
		return
	}
	writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, message string) {
	writeJSON(rw, status, protocol.ErrorResponse{Code: code, Message: message})
}
