package messaging

import (
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/logging"
)

// publisher is the slice of Publisher the notifier needs.
type publisher interface {
	Publish(fact *Fact) error
}

// Notifier is the glue between the write path and the bus: every handler
// that changes a profile (or anything beneath it) calls ProfileUpdated.
type Notifier struct {
	publisher publisher
	logger    *logging.Logger
}

// NewNotifier creates a notifier over the given publisher.
func NewNotifier(p publisher, logger *logging.Logger) *Notifier {
	return &Notifier{publisher: p, logger: logger}
}

// ProfileUpdated publishes a profile_updated fact.
//
// Publication is best-effort from the caller's point of view: the HTTP
// write has already been committed, so bus failures are logged rather than
// surfaced to the client.
func (n *Notifier) ProfileUpdated(profileID, username string) {
	fact, err := NewProfileUpdatedFact(profileID, username)
	if err != nil {
		n.logger.Error("building profile update fact", "error", err)
		return
	}

	if err := n.publisher.Publish(fact); err != nil {
		n.logger.Error("publishing profile update",
			"profile_id", profileID,
			"error", err,
		)
	}
}
