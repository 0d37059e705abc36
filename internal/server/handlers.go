package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/Sternrassler/gamepasses-api/pkg/gamepass"
	"github.com/Sternrassler/gamepasses-api/pkg/pagination"
)

const usage = `Game Pass API

GET /gamepasses/{userId}?offset=0&limit=50
  Lists the purchasable game passes of the user's public games, cheapest first.
  Requires the x-api-key header. limit defaults to 50 and is capped at 100.

GET /health
  Liveness check.
`

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, usage)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *Server) handleGamePasses(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("userId"))
	query := r.URL.Query()
	offset, limit := pagination.ParseWindow(query.Get("offset"), query.Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	page, err := s.pager.Page(ctx, userID, offset, limit)
	if err != nil {
		status, message := classify(err)
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Int("status", status).
			Msg("Failed to serve game passes")
		writeJSON(w, status, errorResponse{Error: message})
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// classify maps a service error to a status code and client-facing message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, gamepass.ErrGamesFetch), errors.Is(err, gamepass.ErrPassesFetch):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}
