// Package server exposes the HTTP surface: the Slack slash-command endpoint
// with its deferred response protocol, plus health and diagnostics endpoints.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"github.com/wadigest/wadigest/internal/config"
	"github.com/wadigest/wadigest/internal/dates"
	"github.com/wadigest/wadigest/internal/extract"
	"github.com/wadigest/wadigest/internal/faults"
	"github.com/wadigest/wadigest/internal/notify"
	"github.com/wadigest/wadigest/internal/runlog"
)

// Background runs are bounded by the orchestrator's per-step timeouts; the
// configurable run timeout is an outer safety net, not a tuning knob.
const defaultRunTimeout = 5 * time.Minute

// Terminal callbacks get their own context: the run context may be the very
// thing that expired, and the requester is owed the notification regardless.
const deliveryTimeout = 15 * time.Second

// Runner executes one extraction run for a calendar date.
type Runner interface {
	RunDate(ctx context.Context, date time.Time) ([]extract.Message, error)
}

// Responder delivers a payload to a caller-supplied response URL.
type Responder interface {
	Respond(ctx context.Context, responseURL string, msg *slack.WebhookMessage) error
}

// Server handles the inbound HTTP surface.
type Server struct {
	cfg        *config.Config
	loc        *time.Location
	runner     Runner
	responder  Responder
	history    *runlog.History
	runTimeout time.Duration
}

// New builds the HTTP handler.
func New(cfg *config.Config, runner Runner, responder Responder, history *runlog.History) http.Handler {
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	s := &Server{
		cfg:        cfg,
		loc:        cfg.Location(),
		runner:     runner,
		responder:  responder,
		history:    history,
		runTimeout: runTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /slack/command", s.handleCommand)
	mux.HandleFunc("POST /run", s.handleManualRun)
	mux.HandleFunc("GET /runs", s.handleRecentRuns)

	return withRequestLog(mux)
}

// deferredCommand is consumed exactly once by the background step and never
// persisted past its single delivery attempt.
type deferredCommand struct {
	userName    string
	rawArgument string
	responseURL string
	date        time.Time
}

// handleCommand implements the deferred response protocol: validate, ack
// within the caller's deadline, then do the slow work in the background and
// deliver exactly one terminal payload to the response URL.
//
// Concurrent commands are not queued; each background run owns its own
// session handle and they serialize only at browser launch.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Bad Request"})
		return
	}

	userName := r.PostFormValue("user_name")
	text := r.PostFormValue("text")
	responseURL := r.PostFormValue("response_url")

	if s.cfg.VerificationToken != "" && r.PostFormValue("token") != s.cfg.VerificationToken {
		err := faults.New(faults.KindUnauthorized, "verification token mismatch")
		slog.Warn(err.Error(), slog.String("user", userName))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	slog.Info("slash command received",
		slog.String("user", userName),
		slog.String("text", text),
	)

	cmd := deferredCommand{
		userName:    userName,
		rawArgument: text,
		responseURL: responseURL,
		date:        dates.Normalize(text, time.Now(), s.loc),
	}

	// The acknowledgement never waits on the orchestrator.
	writeJSON(w, http.StatusOK, notify.Ack(s.cfg.ContactName, userName, time.Now()))

	go s.process(cmd)
}

// process runs the orchestration chain for one deferred command and posts
// the terminal result to the command's response URL. Delivery is
// best-effort: failures are logged, never retried, never re-raised.
func (s *Server) process(cmd deferredCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	start := time.Now()
	msgs, err := s.runner.RunDate(ctx, cmd.date)

	rec := runlog.Record{
		At:         start,
		Trigger:    "command",
		Date:       dates.SeparatorLabel(cmd.date),
		DurationMS: time.Since(start).Milliseconds(),
	}

	var payload *slack.WebhookMessage
	if err != nil {
		rec.Error = err.Error()
		payload = notify.Failure(err, cmd.userName, time.Now())
	} else {
		rec.Count = len(msgs)
		payload = notify.Result(s.cfg.ContactName, dates.HumanLabel(cmd.date), msgs, cmd.userName, time.Now())
	}
	s.history.Add(rec)

	// Never deliver on the run context: it may be exactly what expired.
	deliverCtx, cancelDeliver := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancelDeliver()
	if err := s.responder.Respond(deliverCtx, cmd.responseURL, payload); err != nil {
		slog.Warn("callback delivery failed",
			slog.String("user", cmd.userName),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "wadigest",
	})
}

type manualRunResponse struct {
	Success       bool              `json:"success"`
	Date          string            `json:"date,omitempty"`
	MessagesFound int               `json:"messagesFound"`
	Messages      []extract.Message `json:"messages,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// handleManualRun triggers one immediate run and returns its result
// synchronously. Diagnostics only; bypasses the deferred protocol.
func (s *Server) handleManualRun(w http.ResponseWriter, r *http.Request) {
	date := dates.Normalize(r.URL.Query().Get("date"), time.Now(), s.loc)

	start := time.Now()
	msgs, err := s.runner.RunDate(r.Context(), date)

	rec := runlog.Record{
		At:         start,
		Trigger:    "manual",
		Date:       dates.SeparatorLabel(date),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
		s.history.Add(rec)
		writeJSON(w, http.StatusInternalServerError, manualRunResponse{Success: false, Error: err.Error()})
		return
	}
	rec.Count = len(msgs)
	s.history.Add(rec)

	writeJSON(w, http.StatusOK, manualRunResponse{
		Success:       true,
		Date:          dates.SeparatorLabel(date),
		MessagesFound: len(msgs),
		Messages:      msgs,
	})
}

func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.history.Recent(limit)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", slog.String("error", err.Error()))
	}
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
