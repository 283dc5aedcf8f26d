package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"timeoff-bot/internal/metrics"
	"timeoff-bot/internal/queue"
	"timeoff-bot/internal/slackbot"
)

const maxBodyBytes = 1 << 20

// Publisher enqueues Slack payloads for the worker.
type Publisher interface {
	Publish(ctx context.Context, env queue.Envelope) error
}

// Deduper remembers Slack event ids so retried deliveries are queued once.
type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// SlackHandler receives Events API callbacks and interactions. It only
// validates and enqueues; the worker does the processing.
type SlackHandler struct {
	signingSecret string
	publisher     Publisher
	dedup         Deduper
	metrics       *metrics.BotMetrics
	log           *slog.Logger
}

// NewSlackHandler builds the webhook handler. An empty signingSecret disables
// signature checks; dedup may be nil.
func NewSlackHandler(signingSecret string, publisher Publisher, dedup Deduper, m *metrics.BotMetrics, log *slog.Logger) *SlackHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SlackHandler{
		signingSecret: signingSecret,
		publisher:     publisher,
		dedup:         dedup,
		metrics:       m,
		log:           log,
	}
}

// RegisterRoutes registers the Slack webhook on r.
func (h *SlackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/slack/events", h.HandleEvents)
}

// HandleEvents accepts JSON Events API bodies and form-encoded interaction payloads.
func (h *SlackHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.metrics.ObserveWebhook("unknown", "rejected")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if h.signingSecret != "" {
		if err := h.verify(r.Header, body); err != nil {
			h.log.WarnContext(r.Context(), "slack signature rejected", "error", err)
			h.metrics.ObserveWebhook("unknown", "unauthorized")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		h.handleInteraction(w, r, body)
		return
	}
	h.handleEvent(w, r, body)
}

func (h *SlackHandler) verify(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, h.signingSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func (h *SlackHandler) handleEvent(w http.ResponseWriter, r *http.Request, body []byte) {
	ctx := r.Context()
	outer, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.log.WarnContext(ctx, "undecodable slack event", "error", err)
		h.metrics.ObserveWebhook("event", "rejected")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch outer.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		h.metrics.ObserveWebhook("url_verification", "accepted")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
		return
	case slackevents.CallbackEvent:
	default:
		h.ignore(w, "event")
		return
	}

	ev, ok := outer.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || !slackbot.IsHumanMessage(ev) {
		h.ignore(w, "event")
		return
	}

	var eventID string
	if cb, ok := outer.Data.(*slackevents.EventsAPICallbackEvent); ok {
		eventID = cb.EventID
	}
	if eventID != "" && h.dedup != nil {
		first, err := h.dedup.FirstSeen(ctx, eventID)
		if err != nil {
			h.log.WarnContext(ctx, "dedup unavailable, enqueueing anyway", "event_id", eventID, "error", err)
		} else if !first {
			h.log.DebugContext(ctx, "duplicate slack event", "event_id", eventID)
			h.metrics.ObserveWebhook("event", "duplicate")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if err := h.publisher.Publish(ctx, queue.NewEnvelope(queue.KindEvent, body)); err != nil {
		h.log.ErrorContext(ctx, "enqueue slack event", "event_id", eventID, "error", err)
		if eventID != "" && h.dedup != nil {
			if ferr := h.dedup.Forget(ctx, eventID); ferr != nil {
				h.log.WarnContext(ctx, "forget slack event", "event_id", eventID, "error", ferr)
			}
		}
		h.metrics.ObserveWebhook("event", "error")
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	h.log.InfoContext(ctx, "slack message queued", "event_id", eventID, "user", ev.User, "channel", ev.Channel)
	h.metrics.ObserveWebhook("event", "accepted")
	w.WriteHeader(http.StatusOK)
}

func (h *SlackHandler) handleInteraction(w http.ResponseWriter, r *http.Request, body []byte) {
	ctx := r.Context()
	form, err := url.ParseQuery(string(body))
	if err != nil || form.Get("payload") == "" {
		h.metrics.ObserveWebhook("interaction", "rejected")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	payload := []byte(form.Get("payload"))

	var cb slack.InteractionCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		h.log.WarnContext(ctx, "undecodable slack interaction", "error", err)
		h.metrics.ObserveWebhook("interaction", "rejected")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if cb.Type != slack.InteractionTypeBlockActions {
		h.ignore(w, "interaction")
		return
	}

	if err := h.publisher.Publish(ctx, queue.NewEnvelope(queue.KindInteraction, payload)); err != nil {
		h.log.ErrorContext(ctx, "enqueue slack interaction", "error", err)
		h.metrics.ObserveWebhook("interaction", "error")
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	h.log.InfoContext(ctx, "slack interaction queued", "user", cb.User.ID)
	h.metrics.ObserveWebhook("interaction", "accepted")
	w.WriteHeader(http.StatusOK)
}

func (h *SlackHandler) ignore(w http.ResponseWriter, kind string) {
	h.metrics.ObserveWebhook(kind, "ignored")
	w.WriteHeader(http.StatusOK)
}
