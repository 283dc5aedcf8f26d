package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff-bot/internal/dedup"
	"timeoff-bot/internal/metrics"
	"timeoff-bot/internal/queue"
)

type recordingPublisher struct {
	envelopes []queue.Envelope
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, env queue.Envelope) error {
	if p.err != nil {
		return p.err
	}
	p.envelopes = append(p.envelopes, env)
	return nil
}

const messageEvent = `{
	"token":"t","team_id":"T1","type":"event_callback","event_id":"Ev1","event_time":1,
	"event":{"type":"message","channel":"D1","user":"U1","text":"hello","ts":"1.0","channel_type":"im"}
}`

func newRouter(t *testing.T, secret string, pub Publisher, dd Deduper) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	NewSlackHandler(secret, pub, dd, metrics.NewBotMetrics(prometheus.NewRegistry()), nil).RegisterRoutes(r)
	return r
}

func postJSON(h http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleEvents_URLVerification(t *testing.T) {
	pub := &recordingPublisher{}
	rec := postJSON(newRouter(t, "", pub, nil), `{"token":"t","challenge":"abc123","type":"url_verification"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", rec.Body.String())
	assert.Empty(t, pub.envelopes)
}

func TestHandleEvents_QueuesHumanMessages(t *testing.T) {
	pub := &recordingPublisher{}
	rec := postJSON(newRouter(t, "", pub, nil), messageEvent, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.envelopes, 1)
	assert.Equal(t, queue.KindEvent, pub.envelopes[0].Kind)
	assert.JSONEq(t, messageEvent, string(pub.envelopes[0].Body))
}

func TestHandleEvents_IgnoresBotAndEditedMessages(t *testing.T) {
	pub := &recordingPublisher{}
	h := newRouter(t, "", pub, nil)

	bot := strings.Replace(messageEvent, `"user":"U1"`, `"user":"U1","bot_id":"B1"`, 1)
	edited := strings.Replace(messageEvent, `"user":"U1"`, `"user":"U1","subtype":"message_changed"`, 1)
	for _, body := range []string{bot, edited} {
		rec := postJSON(h, body, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, pub.envelopes)
}

func TestHandleEvents_DeduplicatesRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := &recordingPublisher{}
	h := newRouter(t, "", pub, dedup.NewRedisDeduper(client, time.Minute))

	retryHeader := http.Header{"X-Slack-Retry-Num": []string{"1"}}
	assert.Equal(t, http.StatusOK, postJSON(h, messageEvent, nil).Code)
	assert.Equal(t, http.StatusOK, postJSON(h, messageEvent, retryHeader).Code)
	assert.Len(t, pub.envelopes, 1)
}

func TestHandleEvents_PublishFailureLetsSlackRetry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := &recordingPublisher{err: errors.New("queue down")}
	h := newRouter(t, "", pub, dedup.NewRedisDeduper(client, time.Minute))

	assert.Equal(t, http.StatusServiceUnavailable, postJSON(h, messageEvent, nil).Code)

	pub.err = nil
	assert.Equal(t, http.StatusOK, postJSON(h, messageEvent, nil).Code)
	assert.Len(t, pub.envelopes, 1, "the retry is not treated as a duplicate")
}

func TestHandleEvents_Interaction(t *testing.T) {
	pub := &recordingPublisher{}
	payload := `{"type":"block_actions","user":{"id":"UMGR"},"response_url":"https://hooks.slack.test/1",` +
		`"actions":[{"action_id":"a","block_id":"b","type":"button","value":"approvetimeoff_U1_1"}]}`

	req := httptest.NewRequest(http.MethodPost, "/slack/events",
		strings.NewReader(url.Values{"payload": {payload}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newRouter(t, "", pub, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.envelopes, 1)
	assert.Equal(t, queue.KindInteraction, pub.envelopes[0].Kind)
	assert.JSONEq(t, payload, string(pub.envelopes[0].Body))
}

func TestHandleEvents_InteractionWithoutPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader("foo=bar"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newRouter(t, "", &recordingPublisher{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func sign(secret, body string, ts time.Time) http.Header {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + stamp + ":" + body))
	return http.Header{
		"X-Slack-Request-Timestamp": []string{stamp},
		"X-Slack-Signature":         []string{"v0=" + hex.EncodeToString(mac.Sum(nil))},
	}
}

func TestHandleEvents_Signature(t *testing.T) {
	pub := &recordingPublisher{}
	h := newRouter(t, "s3cret", pub, nil)

	assert.Equal(t, http.StatusOK, postJSON(h, messageEvent, sign("s3cret", messageEvent, time.Now())).Code)
	assert.Equal(t, http.StatusUnauthorized, postJSON(h, messageEvent, sign("wrong", messageEvent, time.Now())).Code)
	assert.Equal(t, http.StatusUnauthorized, postJSON(h, messageEvent, nil).Code)
	assert.Len(t, pub.envelopes, 1)
}

func TestHealthHandler(t *testing.T) {
	r := chi.NewRouter()
	NewHealthHandler(map[string]Check{
		"store": func(context.Context) error { return nil },
		"slack": func(context.Context) error { return errors.New("invalid_auth") },
	}).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"store":"ok","slack":"invalid_auth"}`, rec.Body.String())
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
