package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/observability"
)

// capturePublisher records published messages
type capturePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	notify   chan struct{}
}

type publishedMessage struct {
	subject string
	data    []byte
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{notify: make(chan struct{}, 16)}
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	p.messages = append(p.messages, publishedMessage{subject, data})
	p.mu.Unlock()
	p.notify <- struct{}{}
	return nil
}

func (p *capturePublisher) waitForMessage(t *testing.T) publishedMessage {
	t.Helper()
	select {
	case <-p.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("No message published")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[len(p.messages)-1]
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func newTestHandler(publisher *capturePublisher) *WebhookHandler {
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	return NewWebhookHandler(publisher, logger, nil)
}

func postEvent(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/registry/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)
	return rec
}

func TestWebhookHandler_ValidPushPublishes(t *testing.T) {
	publisher := newCapturePublisher()
	h := newTestHandler(publisher)

	rec := postEvent(t, h, `{"action":"push","target":{"tag":"ci-42","repository":"quasar-7-8-9/airflow","url":"https://registry.example.com"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	msg := publisher.waitForMessage(t)
	assert.Equal(t, SubjectImagePushed, msg.subject)

	var meta ImageMetadata
	require.NoError(t, json.Unmarshal(msg.data, &meta))
	assert.Equal(t, "quasar-7-8-9", meta.ReleaseName)
	assert.Equal(t, "ci-42", meta.Tag)
}

func TestWebhookHandler_RejectedEventIsSilentNoOp(t *testing.T) {
	publisher := newCapturePublisher()
	h := newTestHandler(publisher)

	rec := postEvent(t, h, `{"action":"push","target":{"tag":"latest","repository":"acme/repo"}}`)
	assert.Equal(t, http.StatusOK, rec.Code, "rejected events still get a success response")

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, publisher.count())
}

func TestWebhookHandler_MalformedBodyStillSucceeds(t *testing.T) {
	publisher := newCapturePublisher()
	h := newTestHandler(publisher)

	rec := postEvent(t, h, `{not json`)
	assert.Equal(t, http.StatusOK, rec.Code)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, publisher.count())
}
