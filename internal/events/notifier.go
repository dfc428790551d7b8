package events

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// RunnerNotifier is the fire-and-forget signal to connected runners that new
// pending work exists. It is best effort: a missed ping is recovered by the
// runners' own polling, so failures are logged and dropped.
type RunnerNotifier struct {
	producer *EventProducer
}

func NewRunnerNotifier(producer *EventProducer) *RunnerNotifier {
	return &RunnerNotifier{producer: producer}
}

// NotifyAvailableWork pings every connected runner. Safe to call redundantly.
func (n *RunnerNotifier) NotifyAvailableWork() {
	data, _ := json.Marshal(JobsPendingEvent{})
	if err := n.producer.Write(context.TODO(), JobsPendingMessageKind, bytes.NewReader(data)); err != nil {
		zap.S().Named("runner_notifier").Warnw("failed to notify runners", "error", err)
	}
}

// NotifyJobFinished publishes the terminal outcome of a job.
func (n *RunnerNotifier) NotifyJobFinished(ev JobFinishedEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		zap.S().Named("runner_notifier").Warnw("failed to marshal job finished event", "error", err)
		return
	}
	if err := n.producer.Write(context.TODO(), JobFinishedMessageKind, bytes.NewReader(data)); err != nil {
		zap.S().Named("runner_notifier").Warnw("failed to publish job finished event", "error", err)
	}
}

func (n *RunnerNotifier) Close() error {
	return n.producer.Close()
}
