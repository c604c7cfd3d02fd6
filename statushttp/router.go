// Package statushttp exposes a lifecycle engine over HTTP: status and
// health probes for orchestrators, and a stop endpoint for operators.
package statushttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/modlife"
	"github.com/GoCodeAlone/modlife/health"
	"github.com/GoCodeAlone/modlife/history"
)

// EventSource answers event history queries. *history.Store implements it.
type EventSource interface {
	Query(criteria history.Criteria) []cloudevents.Event
}

// Option customizes the routes.
type Option func(*handlers)

// WithEvents serves GET /events from source.
func WithEvents(source EventSource) Option {
	return func(h *handlers) { h.events = source }
}

// NewRouter builds the status/control routes for controller:
//
//	GET  /status   engine phase and per-module status
//	GET  /healthz  liveness probe
//	GET  /readyz   readiness probe
//	POST /stop     request a stop
//	GET  /events   recent lifecycle events, with WithEvents only
//
// /events accepts the query parameters type (repeatable), module, since
// (RFC 3339) and limit.
func NewRouter(controller modlife.Controller, logger modlife.Logger, opts ...Option) chi.Router {
	h := &handlers{
		controller: controller,
		health:     health.NewAggregator(controller),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", h.status)
	r.Get("/healthz", h.liveness)
	r.Get("/readyz", h.readiness)
	r.Post("/stop", h.stop)
	if h.events != nil {
		r.Get("/events", h.listEvents)
	}
	return r
}

type handlers struct {
	controller modlife.Controller
	health     *health.Aggregator
	logger     modlife.Logger
	events     EventSource
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.controller.Status())
}

func (h *handlers) liveness(w http.ResponseWriter, _ *http.Request) {
	report := h.health.CheckAll()
	code := http.StatusOK
	if !report.IsLive() {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, report)
}

func (h *handlers) readiness(w http.ResponseWriter, _ *http.Request) {
	report := h.health.CheckAll()
	code := http.StatusOK
	if !report.IsReady() {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, report)
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Stop(); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, modlife.ErrPhaseIncorrect) {
			code = http.StatusConflict
		}
		h.logger.Error("Stop request rejected", "requestID", middleware.GetReqID(r.Context()), "error", err)
		h.writeJSON(w, code, map[string]any{"stopping": false, "error": err.Error()})
		return
	}
	h.logger.Info("Stop requested over HTTP", "requestID", middleware.GetReqID(r.Context()))
	h.writeJSON(w, http.StatusAccepted, map[string]any{"stopping": true})
}

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	events := h.events.Query(criteria)
	if events == nil {
		events = []cloudevents.Event{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

func parseCriteria(r *http.Request) (history.Criteria, error) {
	q := r.URL.Query()
	c := history.Criteria{Module: q.Get("module")}
	for _, t := range q["type"] {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				c.Types = append(c.Types, part)
			}
		}
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return c, fmt.Errorf("invalid since: %w", err)
		}
		c.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c, fmt.Errorf("invalid limit %q", raw)
		}
		c.Limit = limit
	}
	return c, nil
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
