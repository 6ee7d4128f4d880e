package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/bus"
	"github.com/conductorhq/conductor/pkg/commander"
	"github.com/conductorhq/conductor/pkg/deployments"
	"github.com/conductorhq/conductor/pkg/observability"
	"github.com/conductorhq/conductor/pkg/registry"
)

type recordingApplier struct {
	requests []*commander.ApplyRequest
	err      error
}

func (a *recordingApplier) ApplyConfiguration(ctx context.Context, req *commander.ApplyRequest) error {
	a.requests = append(a.requests, req)
	return a.err
}

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

type memoryStore struct {
	byID map[string]*deployments.Deployment
	fail bool
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*deployments.Deployment, error) {
	if m.fail {
		return nil, fmt.Errorf("connection refused")
	}
	if d, ok := m.byID[id]; ok {
		return d, nil
	}
	return nil, deployments.ErrNotFound
}

func (m *memoryStore) GetByReleaseName(ctx context.Context, releaseName string) (*deployments.Deployment, error) {
	if m.fail {
		return nil, fmt.Errorf("connection refused")
	}
	for _, d := range m.byID {
		if d.ReleaseName == releaseName {
			return d, nil
		}
	}
	return nil, deployments.ErrNotFound
}

func (m *memoryStore) List(ctx context.Context) ([]*deployments.Deployment, error) {
	if m.fail {
		return nil, fmt.Errorf("connection refused")
	}
	out := make([]*deployments.Deployment, 0, len(m.byID))
	for _, d := range m.byID {
		out = append(out, d)
	}
	return out, nil
}

func testStore() *memoryStore {
	return &memoryStore{byID: map[string]*deployments.Deployment{
		"dep-1": {
			ID:          "dep-1",
			ReleaseName: "rel-1-2-3",
			Version:     "2.9.3",
			WorkspaceID: "ws-1",
		},
	}}
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func changedMsg(t *testing.T, deploymentID string) *bus.Message {
	t.Helper()
	data, err := json.Marshal(ConfigChangedEvent{DeploymentID: deploymentID})
	require.NoError(t, err)
	return &bus.Message{Subject: SubjectConfigChanged, Data: data, Attempt: 1}
}

func TestHandleConfigChangedAppliesAndPublishesCompletion(t *testing.T) {
	applier := &recordingApplier{}
	publisher := &recordingPublisher{}
	r := NewReconciler(testStore(), applier, publisher, testLogger(), nil)

	err := r.HandleConfigChanged(context.Background(), changedMsg(t, "dep-1"))
	require.NoError(t, err)

	require.Len(t, applier.requests, 1)
	req := applier.requests[0]
	assert.Equal(t, "rel-1-2-3", req.ReleaseName)
	assert.Equal(t, commander.Chart{Name: "airflow", Version: "2.9.3"}, req.Chart)
	assert.Equal(t, "conductor-rel-1-2-3", req.Namespace)

	require.Equal(t, []string{SubjectConfigApplied}, publisher.subjects)
	var applied AppliedEvent
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &applied))
	assert.Equal(t, AppliedEvent{DeploymentID: "dep-1", ReleaseName: "rel-1-2-3"}, applied)
}

func TestHandleConfigChangedIdempotentAcrossRedeliveries(t *testing.T) {
	applier := &recordingApplier{}
	r := NewReconciler(testStore(), applier, &recordingPublisher{}, testLogger(), nil)

	first := changedMsg(t, "dep-1")
	redelivered := &bus.Message{Subject: first.Subject, Data: first.Data, Attempt: 4}

	require.NoError(t, r.HandleConfigChanged(context.Background(), first))
	require.NoError(t, r.HandleConfigChanged(context.Background(), redelivered))

	require.Len(t, applier.requests, 2)
	a, err := json.Marshal(applier.requests[0])
	require.NoError(t, err)
	b, err := json.Marshal(applier.requests[1])
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "redelivery must produce an identical apply request")
}

func TestHandleConfigChangedMalformedPayloadIsAcked(t *testing.T) {
	applier := &recordingApplier{}
	r := NewReconciler(testStore(), applier, &recordingPublisher{}, testLogger(), nil)

	for _, data := range [][]byte{
		[]byte("not json"),
		[]byte(`{}`),
		[]byte(`{"deploymentId":""}`),
	} {
		err := r.HandleConfigChanged(context.Background(), &bus.Message{Subject: SubjectConfigChanged, Data: data, Attempt: 1})
		assert.NoError(t, err, "malformed payload %q must be acknowledged", data)
	}
	assert.Empty(t, applier.requests)
}

func TestHandleConfigChangedUnknownDeploymentIsAcked(t *testing.T) {
	r := NewReconciler(testStore(), &recordingApplier{}, &recordingPublisher{}, testLogger(), nil)
	err := r.HandleConfigChanged(context.Background(), changedMsg(t, "dep-missing"))
	assert.NoError(t, err)
}

func TestHandleConfigChangedStoreOutageLeftUnacked(t *testing.T) {
	store := testStore()
	store.fail = true
	r := NewReconciler(store, &recordingApplier{}, &recordingPublisher{}, testLogger(), nil)
	err := r.HandleConfigChanged(context.Background(), changedMsg(t, "dep-1"))
	assert.Error(t, err)
}

func TestHandleConfigChangedTransientApplyLeftUnacked(t *testing.T) {
	applier := &recordingApplier{err: fmt.Errorf("%w: gateway timeout", commander.ErrTransient)}
	publisher := &recordingPublisher{}
	r := NewReconciler(testStore(), applier, publisher, testLogger(), nil)

	err := r.HandleConfigChanged(context.Background(), changedMsg(t, "dep-1"))
	assert.True(t, errors.Is(err, commander.ErrTransient))
	assert.Empty(t, publisher.subjects, "no completion event before a successful apply")
}

func TestHandleConfigChangedPermanentRejectionIsAcked(t *testing.T) {
	applier := &recordingApplier{err: errors.New("orchestration API rejected request: 422")}
	publisher := &recordingPublisher{}
	r := NewReconciler(testStore(), applier, publisher, testLogger(), nil)

	err := r.HandleConfigChanged(context.Background(), changedMsg(t, "dep-1"))
	assert.NoError(t, err)
	assert.Empty(t, publisher.subjects)
}

func TestHandleConfigChangedPublishFailureLeftUnacked(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("bus unavailable")}
	r := NewReconciler(testStore(), &recordingApplier{}, publisher, testLogger(), nil)

	err := r.HandleConfigChanged(context.Background(), changedMsg(t, "dep-1"))
	assert.Error(t, err)
}

func TestHandleImagePushedPinsTag(t *testing.T) {
	applier := &recordingApplier{}
	publisher := &recordingPublisher{}
	r := NewReconciler(testStore(), applier, publisher, testLogger(), nil)

	data, err := json.Marshal(registry.ImageMetadata{
		ReleaseName: "rel-1-2-3",
		Repository:  "rel-1-2-3/airflow",
		Tag:         "deploy-42",
	})
	require.NoError(t, err)

	err = r.HandleImagePushed(context.Background(), &bus.Message{Subject: registry.SubjectImagePushed, Data: data, Attempt: 1})
	require.NoError(t, err)

	require.Len(t, applier.requests, 1)
	var config struct {
		Images map[string]deploymentImage `json:"images"`
	}
	require.NoError(t, json.Unmarshal(applier.requests[0].Config, &config))
	assert.Equal(t, deploymentImage{Repository: "rel-1-2-3/airflow", Tag: "deploy-42"}, config.Images["airflow"])
	assert.Equal(t, []string{SubjectConfigApplied}, publisher.subjects)
}

func TestHandleImagePushedUnknownReleaseIsAcked(t *testing.T) {
	applier := &recordingApplier{}
	r := NewReconciler(testStore(), applier, &recordingPublisher{}, testLogger(), nil)

	data, err := json.Marshal(registry.ImageMetadata{ReleaseName: "no-such-release", Repository: "no-such-release/airflow", Tag: "v1"})
	require.NoError(t, err)

	err = r.HandleImagePushed(context.Background(), &bus.Message{Subject: registry.SubjectImagePushed, Data: data, Attempt: 1})
	assert.NoError(t, err)
	assert.Empty(t, applier.requests)
}

func TestHandleImagePushedMalformedPayloadIsAcked(t *testing.T) {
	r := NewReconciler(testStore(), &recordingApplier{}, &recordingPublisher{}, testLogger(), nil)
	err := r.HandleImagePushed(context.Background(), &bus.Message{Subject: registry.SubjectImagePushed, Data: []byte(`{"tag":"v1"}`), Attempt: 1})
	assert.NoError(t, err)
}
