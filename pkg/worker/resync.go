package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/conductorhq/conductor/pkg/bus"
	"github.com/conductorhq/conductor/pkg/deployments"
	"github.com/conductorhq/conductor/pkg/observability"
)

// DefaultResyncSchedule sweeps every deployment hourly
const DefaultResyncSchedule = "@hourly"

const resyncTimeout = 2 * time.Minute

// Resyncer periodically republishes a change notification for every known
// deployment, so drift between stored and applied state heals without
// waiting for the next real change.
type Resyncer struct {
	store     deployments.Store
	publisher bus.Publisher
	logger    *observability.Logger
	cron      *cron.Cron
}

// NewResyncer creates a resyncer on the given schedule spec
func NewResyncer(schedule string, store deployments.Store, publisher bus.Publisher, logger *observability.Logger) (*Resyncer, error) {
	r := &Resyncer{
		store:     store,
		publisher: publisher,
		logger:    logger,
		cron:      cron.New(),
	}
	if _, err := r.cron.AddFunc(schedule, r.sweep); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the schedule. Stop with Stop.
func (r *Resyncer) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish
func (r *Resyncer) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Resyncer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	if err := r.Sweep(ctx); err != nil {
		r.logger.WithError(err).Error("Resync sweep failed")
	}
}

// Sweep publishes one change notification per deployment
func (r *Resyncer) Sweep(ctx context.Context) error {
	all, err := r.store.List(ctx)
	if err != nil {
		return err
	}

	published := 0
	for _, deployment := range all {
		payload, err := json.Marshal(ConfigChangedEvent{DeploymentID: deployment.ID})
		if err != nil {
			return err
		}
		if err := r.publisher.Publish(ctx, SubjectConfigChanged, payload); err != nil {
			return err
		}
		published++
	}

	r.logger.WithField("deployments", published).Info("Resync sweep published change notifications")
	return nil
}
