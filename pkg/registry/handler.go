package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/conductorhq/conductor/pkg/async"
	"github.com/conductorhq/conductor/pkg/bus"
	"github.com/conductorhq/conductor/pkg/observability"
)

// SubjectImagePushed is the bus subject carrying validated push metadata
const SubjectImagePushed = "registry.images.pushed"

// publishTimeout bounds the fire-and-forget publish after the HTTP
// response has been sent
const publishTimeout = 10 * time.Second

// WebhookHandler terminates registry webhook deliveries
type WebhookHandler struct {
	publisher bus.Publisher
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewWebhookHandler creates the handler. metrics may be nil.
func NewWebhookHandler(publisher bus.Publisher, logger *observability.Logger, metrics *observability.Metrics) *WebhookHandler {
	return &WebhookHandler{
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// RegisterRoutes attaches the webhook endpoint to the router
func (h *WebhookHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/registry/events", h.HandleEvent).Methods("POST")
}

// HandleEvent processes one webhook delivery. The response is always
// success-class: the registry is not a retry mechanism, and rejecting an
// event is a policy decision, not a delivery failure.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	defer h.respondOK(w)

	var event PushEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.count("malformed")
		h.logger.WithError(err).Warn("Malformed registry webhook payload")
		return
	}

	meta, ok := ExtractMetadata(&event)
	if !ok {
		h.count("rejected")
		h.logger.WithFields(map[string]interface{}{
			"action":     event.Action,
			"repository": event.Target.Repository,
			"tag":        event.Target.Tag,
		}).Debug("Registry event rejected by validator")
		return
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		h.count("malformed")
		h.logger.WithError(err).Error("Failed to encode image metadata")
		return
	}

	h.count("accepted")
	h.logger.WithFields(map[string]interface{}{
		"release_name": meta.ReleaseName,
		"repository":   meta.Repository,
		"tag":          meta.Tag,
	}).Info("Registry push accepted")

	async.SafeGo(r.Context(), h.logger, publishTimeout, "publish image push event", func(ctx context.Context) error {
		return h.publisher.Publish(ctx, SubjectImagePushed, payload)
	})
}

func (h *WebhookHandler) respondOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *WebhookHandler) count(result string) {
	if h.metrics != nil {
		h.metrics.WebhookEventsTotal.WithLabelValues(result).Inc()
	}
}
