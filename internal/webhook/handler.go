package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"line_subscription_bot/internal/logging"
)

const (
	maxBodySize    = 1 << 20
	processTimeout = 15 * time.Second

	// AckBody is returned for every accepted delivery, whatever happened to its
	// events, so the platform does not redeliver.
	AckBody = "OK"
)

type eventProcessor interface {
	Process(ctx context.Context, event Event) (bool, error)
}

// Handler is the HTTP entry point for webhook deliveries.
type Handler struct {
	verifier  *Verifier
	processor eventProcessor
	logger    *logrus.Entry
}

// NewHandler constructs a Handler.
func NewHandler(verifier *Verifier, processor eventProcessor, logger *logrus.Entry) (*Handler, error) {
	if verifier == nil {
		return nil, errors.New("signature verifier is required")
	}
	if processor == nil {
		return nil, errors.New("event processor is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handler{
		verifier:  verifier,
		processor: processor,
		logger:    logger,
	}, nil
}

// ServeHTTP verifies the delivery and processes its events in order.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithFields(logging.Context{DeliveryID: uuid.NewString()}.Fields())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		deliveriesTotal.WithLabelValues("unreadable").Inc()
		logger.WithField("event", "webhook_read_error").WithError(err).Warn("failed to read webhook body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrMissingSignature) {
			status = http.StatusUnauthorized
		}
		deliveriesTotal.WithLabelValues("rejected").Inc()
		logger.WithField("event", "webhook_signature_rejected").WithError(err).Error("rejected webhook delivery")
		http.Error(w, "Invalid signature", status)
		return
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		deliveriesTotal.WithLabelValues("malformed").Inc()
		logger.WithField("event", "webhook_malformed").WithError(err).Error("failed to decode webhook payload")
		ack(w)
		return
	}

	deliveriesTotal.WithLabelValues("accepted").Inc()
	logger.WithFields(logging.Fields{
		"event":       "webhook_received",
		"event_count": len(envelope.Events),
	}).Debug("processing webhook delivery")

	// Processing outlives a dropped connection; each event gets its own deadline.
	ctx := context.WithoutCancel(r.Context())
	for i, raw := range envelope.Events {
		h.process(ctx, logger, i, raw)
	}

	ack(w)
}

func (h *Handler) process(ctx context.Context, logger *logrus.Entry, index int, raw json.RawMessage) {
	entry := logger.WithField("event_index", index)

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		eventsTotal.WithLabelValues(eventTypeUndecodable, outcomeFailed).Inc()
		entry.WithField("event", "webhook_event_malformed").WithError(err).Error("failed to decode webhook event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	entry = entry.WithFields(logging.Context{
		LineID:     event.Source.UserID,
		ReplyToken: event.ReplyToken,
	}.Fields()).WithField("event_type", event.Type)

	defer func() {
		if rec := recover(); rec != nil {
			eventsTotal.WithLabelValues(event.Type, outcomeFailed).Inc()
			entry.WithFields(logging.Fields{
				"event": "webhook_event_panic",
				"panic": rec,
			}).Error("recovered from panic while processing event")
		}
	}()

	handled, err := h.processor.Process(ctx, event)
	switch {
	case err != nil:
		eventsTotal.WithLabelValues(event.Type, outcomeFailed).Inc()
		entry.WithField("event", "webhook_event_failed").WithError(err).Error("failed to process webhook event")
	case handled:
		eventsTotal.WithLabelValues(event.Type, outcomeHandled).Inc()
		entry.WithField("event", "webhook_event_handled").Debug("processed webhook event")
	default:
		eventsTotal.WithLabelValues(event.Type, outcomeIgnored).Inc()
		entry.WithField("event", "webhook_event_ignored").Debug("ignored webhook event")
	}
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, AckBody)
}
