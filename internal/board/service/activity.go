package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/common/logger"
	"github.com/taskflow/taskflow/internal/events"
	"github.com/taskflow/taskflow/internal/events/bus"
)

// ActivityQueue is the queue group board activity consumers join. With NATS,
// one replica logs each change.
const ActivityQueue = "taskflow.activity"

// ActivityFunc observes one board change.
type ActivityFunc func(event *bus.Event)

// WatchActivity queue-subscribes to every board change subject and logs each
// event. fn may be nil.
func WatchActivity(eventBus bus.EventBus, log *logger.Logger, fn ActivityFunc) (bus.Subscription, error) {
	log = log.WithFields(zap.String("component", "board-activity"))
	return eventBus.QueueSubscribe(events.AllBoardsSubject, ActivityQueue, func(_ context.Context, event *bus.Event) error {
		log.Info("board activity",
			zap.String("event_type", event.Type),
			zap.String("board_id", event.String("board_id")),
			zap.String("event_id", event.ID))
		if fn != nil {
			fn(event)
		}
		return nil
	})
}
