package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/queuebot/queue"
	"github.com/onnwee/queuebot/telemetry"
)

// Handlers serves the probe and admin routes.
type Handlers struct {
	svc           *queue.Service
	db            *sql.DB
	chatConnected func() bool
}

// HandleHealthz reports liveness. The process is alive if it can answer.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports readiness: the database answers and chat is logged in.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error {
			if h.db == nil {
				return nil
			}
			return h.db.PingContext(ctx)
		}},
		{"chat", func() error {
			if h.chatConnected != nil && !h.chatConnected() {
				return errors.New("chat gateway not connected")
			}
			return nil
		}},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// metrics refreshes the connection pool gauges before every scrape.
func (h *Handlers) metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.db != nil {
			st := h.db.Stats()
			telemetry.UpdateDatabasePoolMetrics(st.OpenConnections, st.InUse)
		}
		next.ServeHTTP(w, r)
	})
}

type queueSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Open        bool   `json:"open"`
	Level       string `json:"level"`
	Limit       int    `json:"limit"`
}

type memberView struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id,omitempty"`
	Name     string `json:"name"`
}

type queueDetail struct {
	queueSummary
	Length    int          `json:"length"`
	Members   []memberView `json:"members"`
	Blacklist []string     `json:"blacklist"`
}

func summarize(q *queue.Queue) queueSummary {
	return queueSummary{
		ID:          q.ID,
		DisplayName: q.DisplayName,
		Open:        q.Open,
		Level:       q.Level.String(),
		Limit:       q.Limit,
	}
}

// HandleQueues lists every registered queue without members.
func (h *Handlers) HandleQueues(w http.ResponseWriter, r *http.Request) {
	qs, err := h.svc.Channels(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]queueSummary, 0, len(qs))
	for i := range qs {
		out = append(out, summarize(&qs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleQueue returns one queue with its members in order and its blacklist.
func (h *Handlers) HandleQueue(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := queueDetail{
		queueSummary: summarize(q),
		Length:       len(q.Members),
		Members:      make([]memberView, 0, len(q.Members)),
		Blacklist:    q.Blacklist,
	}
	if out.Blacklist == nil {
		out.Blacklist = []string{}
	}
	for i, m := range q.Members {
		out.Members = append(out.Members, memberView{Position: i + 1, UserID: m.UserID, Name: m.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, queue.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Error("admin request failed",
		slog.String("path", r.URL.Path), slog.Any("err", err), slog.String("component", "http"))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
