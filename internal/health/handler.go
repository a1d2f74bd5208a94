// Package health exposes lightweight HTTP health and diagnostics endpoints for container probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"line_subscription_bot/internal/domain"
	"line_subscription_bot/internal/logging"
)

const (
	mongoPingTimeout = 2 * time.Second
	statsTimeout     = 3 * time.Second
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// StatsProvider reports user counts for the stats endpoint.
type StatsProvider interface {
	CountUsers(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status domain.UserStatus) (int64, error)
}

// Handler serves GET /healthz and GET /stats.
type Handler struct {
	logger       *logrus.Entry
	mongoChecker MongoChecker
	stats        StatsProvider
}

type response struct {
	Status string `json:"status"`
	Mongo  string `json:"mongo,omitempty"`
}

type statsResponse struct {
	Users        int64 `json:"users"`
	AwaitingName int64 `json:"awaiting_name"`
}

// NewHandler constructs a health handler. stats may be nil, in which case the
// stats endpoint answers 503.
func NewHandler(mongoChecker MongoChecker, stats StatsProvider, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handler{
		logger:       logger,
		mongoChecker: mongoChecker,
		stats:        stats,
	}
}

// Health reports overall status, degrading when Mongo is unreachable. It
// always answers 200 so orchestrators can read the body.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}
	mongoStatus := "ok"

	if h.mongoChecker == nil {
		mongoStatus = "error"
		h.logger.WithField("event", "health_mongo_missing").Warn("mongo checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(r.Context(), mongoPingTimeout)
		err := h.mongoChecker.Ping(pingCtx)
		cancel()

		if err != nil {
			mongoStatus = "error"
			h.logger.WithFields(logging.Fields{
				"event": "health_mongo_error",
			}).WithError(err).Warn("mongo ping failed during health check")
		}
	}

	if mongoStatus != "ok" {
		resp.Status = "degraded"
		resp.Mongo = "error"
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Stats reports how many users are registered and how many are mid-flow.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, response{Status: "unavailable"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout)
	defer cancel()

	users, err := h.stats.CountUsers(ctx)
	if err != nil {
		h.statsError(w, err)
		return
	}

	awaiting, err := h.stats.CountByStatus(ctx, domain.StatusAwaitingName)
	if err != nil {
		h.statsError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statsResponse{Users: users, AwaitingName: awaiting})
}

func (h *Handler) statsError(w http.ResponseWriter, err error) {
	h.logger.WithField("event", "stats_error").WithError(err).Warn("failed to collect user stats")
	h.writeJSON(w, http.StatusServiceUnavailable, response{Status: "degraded", Mongo: "error"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}
