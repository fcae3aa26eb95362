package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/fixmate-service/internal/events"
)

// Notifier logs domain events as they happen. It is the audit trail of the
// issue lifecycle; delivery to external channels is out of scope.
type Notifier struct {
	logger *zap.Logger
}

// StartNotifier subscribes the notifier's handlers on the dispatcher.
func StartNotifier(dispatcher events.Dispatcher, logger *zap.Logger) *Notifier {
	n := &Notifier{logger: logger}
	if dispatcher == nil {
		return n
	}
	dispatcher.Subscribe(events.EventIssueCreated, n.handle("IssueCreated"))
	dispatcher.Subscribe(events.EventIssueAssigned, n.handle("IssueAssigned"))
	dispatcher.Subscribe(events.EventIssueStatusChanged, n.handle("IssueStatusChanged"))
	dispatcher.Subscribe(events.EventMessageSent, n.handle("MessageSent"))
	return n
}

func (n *Notifier) handle(name string) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		n.logger.Info(name,
			zap.String("issue_id", event.IssueID),
			zap.String("actor_id", event.ActorID),
			zap.String("actor_role", event.ActorRole),
			zap.Any("payload", event.Payload),
		)
		return nil
	}
}
