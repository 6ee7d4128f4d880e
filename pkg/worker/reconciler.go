package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conductorhq/conductor/pkg/bus"
	"github.com/conductorhq/conductor/pkg/commander"
	"github.com/conductorhq/conductor/pkg/deployments"
	"github.com/conductorhq/conductor/pkg/observability"
	"github.com/conductorhq/conductor/pkg/registry"
)

const (
	// SubjectConfigChanged carries control-plane notifications that a
	// deployment's desired configuration changed
	SubjectConfigChanged = "deployments.config.changed"
	// SubjectConfigApplied is published after the orchestration API
	// accepted an apply for a deployment
	SubjectConfigApplied = "deployments.config.applied"

	airflowChartName = "airflow"
)

// ConfigChangedEvent is the payload on SubjectConfigChanged
type ConfigChangedEvent struct {
	DeploymentID string `json:"deploymentId"`
}

// AppliedEvent is the completion payload on SubjectConfigApplied
type AppliedEvent struct {
	DeploymentID string `json:"deploymentId"`
	ReleaseName  string `json:"releaseName"`
}

// deploymentImage pins an image override inside an apply request
type deploymentImage struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

// Reconciler converts bus events into orchestration API calls
type Reconciler struct {
	store     deployments.Store
	applier   commander.Applier
	publisher bus.Publisher
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewReconciler creates a reconciler. metrics may be nil.
func NewReconciler(store deployments.Store, applier commander.Applier, publisher bus.Publisher, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		store:     store,
		applier:   applier,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// HandleConfigChanged reconciles one configuration change notification.
// Returning nil acknowledges the message; returning an error leaves it for
// redelivery.
func (r *Reconciler) HandleConfigChanged(ctx context.Context, msg *bus.Message) error {
	var event ConfigChangedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil || event.DeploymentID == "" {
		r.logger.WithFields(map[string]interface{}{
			"subject": msg.Subject,
			"attempt": msg.Attempt,
		}).Warn("Discarding malformed configuration change event")
		return nil
	}

	deployment, err := r.store.GetByID(ctx, event.DeploymentID)
	if err != nil {
		if errors.Is(err, deployments.ErrNotFound) {
			r.logger.WithField("deployment_id", event.DeploymentID).
				Warn("Discarding change event for unknown deployment")
			return nil
		}
		return fmt.Errorf("failed to load deployment %s: %w", event.DeploymentID, err)
	}

	return r.apply(ctx, deployment, buildApplyRequest(deployment, nil))
}

// HandleImagePushed reconciles one validated image push. The pushed tag is
// pinned into the deployment's desired configuration.
func (r *Reconciler) HandleImagePushed(ctx context.Context, msg *bus.Message) error {
	var image registry.ImageMetadata
	if err := json.Unmarshal(msg.Data, &image); err != nil || image.ReleaseName == "" || image.Tag == "" {
		r.logger.WithFields(map[string]interface{}{
			"subject": msg.Subject,
			"attempt": msg.Attempt,
		}).Warn("Discarding malformed image push event")
		return nil
	}

	deployment, err := r.store.GetByReleaseName(ctx, image.ReleaseName)
	if err != nil {
		if errors.Is(err, deployments.ErrNotFound) {
			r.logger.WithField("release_name", image.ReleaseName).
				Warn("Discarding image push for unknown release")
			return nil
		}
		return fmt.Errorf("failed to load deployment for release %s: %w", image.ReleaseName, err)
	}

	return r.apply(ctx, deployment, buildApplyRequest(deployment, &image))
}

// apply calls the orchestration API and publishes the completion event. The
// completion publish happens only after a successful apply.
func (r *Reconciler) apply(ctx context.Context, deployment *deployments.Deployment, req *commander.ApplyRequest) error {
	if err := r.applier.ApplyConfiguration(ctx, req); err != nil {
		if errors.Is(err, commander.ErrTransient) {
			return fmt.Errorf("apply for %s will be retried: %w", deployment.ReleaseName, err)
		}
		// permanent rejections would fail identically on redelivery
		r.logger.WithError(err).WithField("release_name", deployment.ReleaseName).
			Error("Orchestration API rejected apply request")
		return nil
	}

	payload, err := json.Marshal(AppliedEvent{
		DeploymentID: deployment.ID,
		ReleaseName:  deployment.ReleaseName,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}
	if err := r.publisher.Publish(ctx, SubjectConfigApplied, payload); err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"deployment_id": deployment.ID,
		"release_name":  deployment.ReleaseName,
	}).Info("Deployment reconciled")
	return nil
}

// buildApplyRequest constructs the desired-state request from the stored
// deployment record. The result depends only on its inputs, so redeliveries
// of the same event yield the same request.
func buildApplyRequest(deployment *deployments.Deployment, image *registry.ImageMetadata) *commander.ApplyRequest {
	config := map[string]interface{}{
		"labels": map[string]string{
			"deploymentId": deployment.ID,
			"workspaceId":  deployment.WorkspaceID,
		},
	}
	if image != nil {
		config["images"] = map[string]deploymentImage{
			airflowChartName: {Repository: image.Repository, Tag: image.Tag},
		}
	}
	// map keys marshal in sorted order, keeping the payload stable
	raw, _ := json.Marshal(config)

	return &commander.ApplyRequest{
		ReleaseName: deployment.ReleaseName,
		Chart: commander.Chart{
			Name:    airflowChartName,
			Version: deployment.Version,
		},
		Namespace: commander.NamespaceForRelease(deployment.ReleaseName),
		Config:    raw,
	}
}
