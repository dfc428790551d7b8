package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/events"
	"github.com/streamhive/media-orchestrator/internal/store"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"github.com/streamhive/media-orchestrator/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Message recorded when abort degrades to error because the job kind
	// cannot be resumed.
	abortNotSupportedMessage = "job type does not support abort"

	// Message recorded on children when an ancestor fails.
	parentErrorMessage = "Parent error"

	conflictRetryDelay = 50 * time.Millisecond
	conflictRetryTries = 3
)

// Controller drives the full lifecycle of runner jobs. It owns the shared
// bookkeeping of the five public operations and defers type-specific behavior
// to the registered handlers.
//
// Every state mutation runs in a store transaction re-reading the job first,
// and write conflicts are retried from a fresh read, so operations are safe
// to call from concurrent request handlers.
type Controller struct {
	store    store.Store
	notifier *events.RunnerNotifier
	registry *Registry

	maxFailures  int
	cascadeLimit int

	touch *touchThrottle
}

type ControllerOptions struct {
	// MaxFailures bounds automatic retries of retriable jobs.
	MaxFailures int
	// TouchInterval throttles liveness-only update writes, per job.
	TouchInterval time.Duration
	// CascadeLimit bounds the number of jobs visited by a single cascade.
	CascadeLimit int
}

func NewController(store store.Store, notifier *events.RunnerNotifier, registry *Registry, opts ControllerOptions) *Controller {
	return &Controller{
		store:        store,
		notifier:     notifier,
		registry:     registry,
		maxFailures:  opts.MaxFailures,
		cascadeLimit: opts.CascadeLimit,
		touch:        newTouchThrottle(opts.TouchInterval),
	}
}

// Create persists a new job record. A job with a dependency starts gated on
// it; an independent job is immediately available and runners are pinged once
// after the transaction committed.
func (c *Controller) Create(ctx context.Context, opts CreateOptions) (*model.Job, error) {
	handler, err := c.registry.Get(opts.Type)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(opts.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	privatePayload, err := json.Marshal(opts.PrivatePayload)
	if err != nil {
		return nil, fmt.Errorf("marshaling private payload: %w", err)
	}

	job := model.Job{
		UUID:           uuid.New(),
		Type:           opts.Type,
		State:          model.JobStatePending,
		Payload:        payload,
		PrivatePayload: privatePayload,
		Priority:       opts.Priority,
	}

	var created *model.Job
	err = c.withConflictRetry(ctx, func(txCtx context.Context) error {
		if opts.DependsOn != nil {
			parent, err := c.store.Job().Get(txCtx, *opts.DependsOn)
			if err != nil {
				return fmt.Errorf("resolving dependency %s: %w", *opts.DependsOn, err)
			}
			job.DependsOnJobID = &parent.ID
			job.State = model.JobStateWaitingForParent
		}

		if err := handler.SpecificCreate(txCtx, &job); err != nil {
			return fmt.Errorf("handler create hook: %w", err)
		}

		created, err = c.store.Job().Create(txCtx, job)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncreaseJobTransitionMetric(string(created.Type), string(created.State))
	zap.S().Named("jobs").Infow("job created",
		"job_uuid", created.UUID, "type", created.Type, "state", created.State, "priority", created.Priority)

	if created.State == model.JobStatePending {
		c.notifier.NotifyAvailableWork()
	}

	return created, nil
}

// Update applies a runner progress report. When neither the handler nor the
// progress value changed any field, the write degrades to a throttled
// timestamp touch so idle liveness pings don't thrash the store.
func (c *Controller) Update(ctx context.Context, id uuid.UUID, progress *int, payload json.RawMessage) error {
	var changed, dropped bool
	var updateErr error

	err := c.withConflictRetry(ctx, func(txCtx context.Context) error {
		changed, dropped, updateErr = false, false, nil

		job, err := c.store.Job().Get(txCtx, id)
		if err != nil {
			return err
		}

		// a late update racing a terminal transition is dropped
		if job.IsTerminal() {
			zap.S().Named("jobs").Debugw("ignoring update of finished job", "job_uuid", id, "state", job.State)
			dropped = true
			return nil
		}

		handler, err := c.registry.Get(job.Type)
		if err != nil {
			return err
		}

		handlerChanged, err := handler.SpecificUpdate(txCtx, job, payload)
		if err != nil {
			updateErr = err
			return nil
		}
		changed = handlerChanged

		if progress != nil {
			job.Progress = progress
			changed = true
		}

		if changed {
			_, err = c.store.Job().Update(txCtx, *job)
			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	// handler failures surface as an error transition, not as a caller error
	if updateErr != nil {
		zap.S().Named("jobs").Warnw("job update hook failed", "job_uuid", id, "error", updateErr)
		return c.errorJob(ctx, id, updateErr.Error(), false, c.newCascadeGuard())
	}

	if !changed && !dropped && c.touch.Allow(id) {
		if err := c.store.Job().Touch(ctx, id); err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			zap.S().Named("jobs").Warnw("failed to touch job", "job_uuid", id, "error", err)
		}
	}

	return nil
}

// Complete finalizes a job the runner reported as successful. A failing
// finalization downgrades the job to errored: runner-reported success is
// never trusted past server-side finalization. On success, jobs gated on
// this one flip to pending and runners are pinged once.
func (c *Controller) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	var finished model.Job
	var flipped int

	err := c.withConflictRetry(ctx, func(txCtx context.Context) error {
		flipped = 0

		job, err := c.store.Job().Get(txCtx, id)
		if err != nil {
			return err
		}

		if job.IsTerminal() {
			zap.S().Named("jobs").Debugw("ignoring completion of finished job", "job_uuid", id, "state", job.State)
			return nil
		}

		handler, err := c.registry.Get(job.Type)
		if err != nil {
			return err
		}

		if err := handler.SpecificComplete(txCtx, job, result); err != nil {
			zap.S().Named("jobs").Errorw("job completion failed server-side",
				"job_uuid", id, "type", job.Type, "error", err)
			job.SetFinished(model.JobStateErrored, err.Error())
		} else {
			job.SetFinished(model.JobStateCompleted, "")
		}

		if _, err := c.store.Job().Update(txCtx, *job); err != nil {
			return err
		}

		if job.State == model.JobStateCompleted {
			children, err := c.store.Job().ListWaitingChildren(txCtx, job)
			if err != nil {
				return err
			}
			for i := range children {
				children[i].ResetToPending()
				if _, err := c.store.Job().Update(txCtx, children[i]); err != nil {
					return err
				}
			}
			flipped = len(children)
		}

		finished = *job
		return nil
	})
	if err != nil {
		return err
	}

	if finished.ID != 0 {
		c.finishJob(finished)
	}

	if flipped > 0 {
		c.notifier.NotifyAvailableWork()
	}

	return nil
}

// Cancel tears the job down and cascades through its whole subtree: every
// descendant ends parent-cancelled, however deep.
func (c *Controller) Cancel(ctx context.Context, id uuid.UUID) error {
	return c.cancelJob(ctx, id, false, c.newCascadeGuard())
}

func (c *Controller) cancelJob(ctx context.Context, id uuid.UUID, fromParent bool, guard *cascadeGuard) error {
	if !guard.visit() {
		zap.S().Named("jobs").Errorw("cancel cascade exceeded node limit, stopping", "job_uuid", id, "limit", c.cascadeLimit)
		return nil
	}

	var finished model.Job
	var childIDs []uuid.UUID

	err := c.withConflictRetry(ctx, func(txCtx context.Context) error {
		childIDs = childIDs[:0]

		job, err := c.store.Job().Get(txCtx, id)
		if err != nil {
			return err
		}

		if job.IsTerminal() {
			return nil
		}

		handler, err := c.registry.Get(job.Type)
		if err != nil {
			return err
		}

		if err := handler.SpecificCancel(txCtx, job); err != nil {
			// teardown is best effort, the cancellation still proceeds
			zap.S().Named("jobs").Warnw("job cancel hook failed", "job_uuid", id, "error", err)
		}

		nextState := model.JobStateCancelled
		if fromParent {
			nextState = model.JobStateParentCancelled
		}
		job.SetFinished(nextState, "")

		if _, err := c.store.Job().Update(txCtx, *job); err != nil {
			return err
		}

		children, err := c.store.Job().ListChildren(txCtx, job)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.IsTerminal() {
				continue
			}
			childIDs = append(childIDs, child.UUID)
		}

		finished = *job
		return nil
	})
	if err != nil {
		return err
	}

	if finished.ID != 0 {
		c.finishJob(finished)
	}

	for _, childID := range childIDs {
		if err := c.cancelJob(ctx, childID, true, guard); err != nil {
			return err
		}
	}

	return nil
}

// Abort resets the job to pending with no failure penalty, typically after a
// runner disconnect. Kinds that cannot be resumed degrade to an error.
func (c *Controller) Abort(ctx context.Context, id uuid.UUID) error {
	job, err := c.store.Job().Get(ctx, id)
	if err != nil {
		return err
	}

	handler, err := c.registry.Get(job.Type)
	if err != nil {
		return err
	}

	if !handler.IsAbortSupported() {
		return c.Error(ctx, id, abortNotSupportedMessage)
	}

	var reset model.Job
	err = c.withConflictRetry(ctx, func(txCtx context.Context) error {
		reset = model.Job{}

		job, err := c.store.Job().Get(txCtx, id)
		if err != nil {
			return err
		}

		if job.IsTerminal() {
			return nil
		}

		if err := handler.SpecificAbort(txCtx, job); err != nil {
			zap.S().Named("jobs").Warnw("job abort hook failed", "job_uuid", id, "error", err)
		}

		job.ResetToPending()
		if _, err := c.store.Job().Update(txCtx, *job); err != nil {
			return err
		}

		reset = *job
		return nil
	})
	if err != nil {
		return err
	}

	if reset.ID == 0 {
		return nil
	}

	metrics.IncreaseJobTransitionMetric(string(reset.Type), string(model.JobStatePending))
	zap.S().Named("jobs").Infow("job aborted, back to pending", "job_uuid", id, "type", reset.Type)

	c.notifier.NotifyAvailableWork()
	return nil
}

// Error records a runner failure. A retriable job below its failure budget
// silently resets to pending; otherwise the job reaches a terminal error
// state and the failure cascades to every descendant.
func (c *Controller) Error(ctx context.Context, id uuid.UUID, message string) error {
	return c.errorJob(ctx, id, message, false, c.newCascadeGuard())
}

func (c *Controller) errorJob(ctx context.Context, id uuid.UUID, message string, fromParent bool, guard *cascadeGuard) error {
	if !guard.visit() {
		zap.S().Named("jobs").Errorw("error cascade exceeded node limit, stopping", "job_uuid", id, "limit", c.cascadeLimit)
		return nil
	}

	var finished model.Job
	var terminal bool
	var childIDs []uuid.UUID

	err := c.withConflictRetry(ctx, func(txCtx context.Context) error {
		terminal = false
		childIDs = childIDs[:0]

		job, err := c.store.Job().Get(txCtx, id)
		if err != nil {
			return err
		}

		if job.IsTerminal() {
			return nil
		}

		handler, err := c.registry.Get(job.Type)
		if err != nil {
			return err
		}

		errorState := model.JobStateErrored
		if fromParent {
			errorState = model.JobStateParentErrored
		}

		job.Failures++

		nextState := errorState
		if errorState == model.JobStateErrored && handler.IsAbortSupported() && job.Failures < c.maxFailures {
			// an automatic retry, invisible beyond the failure counter
			nextState = model.JobStatePending
		}

		if nextState == model.JobStatePending {
			job.ResetToPending()
		} else {
			if err := handler.SpecificError(txCtx, job, nextState); err != nil {
				zap.S().Named("jobs").Warnw("job error hook failed", "job_uuid", id, "error", err)
			}
			job.SetFinished(nextState, message)
			terminal = true
		}

		if _, err := c.store.Job().Update(txCtx, *job); err != nil {
			return err
		}

		if terminal {
			children, err := c.store.Job().ListChildren(txCtx, job)
			if err != nil {
				return err
			}
			for _, child := range children {
				if child.IsTerminal() {
					continue
				}
				childIDs = append(childIDs, child.UUID)
			}
		}

		finished = *job
		return nil
	})
	if err != nil {
		return err
	}

	if finished.ID == 0 {
		return nil
	}

	if !terminal {
		metrics.IncreaseJobTransitionMetric(string(finished.Type), string(model.JobStatePending))
		zap.S().Named("jobs").Infow("job failed, retrying",
			"job_uuid", id, "type", finished.Type, "failures", finished.Failures, "max_failures", c.maxFailures)
		c.notifier.NotifyAvailableWork()
		return nil
	}

	c.finishJob(finished)

	for _, childID := range childIDs {
		if err := c.errorJob(ctx, childID, parentErrorMessage, true, guard); err != nil {
			return err
		}
	}

	return nil
}

// finishJob records the terminal transition of a job: metrics, logging, the
// terminal event, and throttle-state cleanup.
func (c *Controller) finishJob(job model.Job) {
	c.touch.Forget(job.UUID)
	metrics.IncreaseJobTransitionMetric(string(job.Type), string(job.State))

	zap.S().Named("jobs").Infow("job finished",
		"job_uuid", job.UUID, "type", job.Type, "state", job.State, "error", job.Error)

	c.notifier.NotifyJobFinished(events.JobFinishedEvent{
		JobUUID: job.UUID.String(),
		Type:    string(job.Type),
		State:   string(job.State),
		Error:   job.Error,
	})
}

// inTransaction runs fn within a store transaction created from ctx.
func (c *Controller) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, err := c.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		_, _ = store.Rollback(txCtx)
		return err
	}

	_, err = store.Commit(txCtx)
	return err
}

// withConflictRetry retries the whole transactional operation when a
// concurrent writer invalidated it. fn re-reads the job from the store, so
// each attempt starts from fresh state instead of blindly overwriting.
func (c *Controller) withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	operation := func() (struct{}, error) {
		err := c.inTransaction(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if isWriteConflict(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(conflictRetryDelay)),
		backoff.WithMaxTries(conflictRetryTries),
	)
	return err
}

func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "database is locked")
}

func (c *Controller) newCascadeGuard() *cascadeGuard {
	return &cascadeGuard{remaining: c.cascadeLimit}
}

// cascadeGuard bounds a single recursive cascade. The dependency graph is
// expected to be shallow; running out of budget indicates a defect.
type cascadeGuard struct {
	remaining int
}

func (g *cascadeGuard) visit() bool {
	if g.remaining <= 0 {
		return false
	}
	g.remaining--
	return true
}

// touchThrottle rate-limits liveness-only writes, one limiter per job.
// Limiters are dropped once the job finishes.
type touchThrottle struct {
	interval time.Duration
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

func newTouchThrottle(interval time.Duration) *touchThrottle {
	return &touchThrottle{
		interval: interval,
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

func (t *touchThrottle) Allow(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	limiter, found := t.limiters[id]
	if !found {
		limiter = rate.NewLimiter(rate.Every(t.interval), 1)
		t.limiters[id] = limiter
	}
	return limiter.Allow()
}

func (t *touchThrottle) Forget(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limiters, id)
}
