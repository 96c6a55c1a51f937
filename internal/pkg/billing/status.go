package billing

import (
	"strings"

	"github.com/goldenyears/premium-api/app/models"
)

// transitionSources lists, per target status, the statuses a record may hold
// for the transition to apply. The table enforces monotonic progress:
// canceled is terminal, and an out-of-order or duplicate event that does not
// advance state is a no-op. Updates use these sets as a SQL precondition
// (WHERE status IN ...), which doubles as the optimistic concurrency check.
var transitionSources = map[string][]string{
	models.SubscriptionStatusActive: {
		models.SubscriptionStatusIncomplete,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusUnpaid,
	},
	models.SubscriptionStatusPastDue: {
		models.SubscriptionStatusActive,
	},
	models.SubscriptionStatusUnpaid: {
		models.SubscriptionStatusActive,
		models.SubscriptionStatusPastDue,
	},
	models.SubscriptionStatusCanceled: {
		models.SubscriptionStatusIncomplete,
		models.SubscriptionStatusActive,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusUnpaid,
	},
}

// TransitionSources returns the statuses from which target is reachable.
// An empty slice means the target is never a valid transition destination.
func TransitionSources(target string) []string {
	return transitionSources[target]
}

// CanTransition reports whether a record in status from may move to to.
func CanTransition(from, to string) bool {
	for _, s := range transitionSources[to] {
		if s == from {
			return true
		}
	}
	return false
}

// normalizeProviderStatus maps Stripe subscription statuses onto the local
// lifecycle vocabulary.
func normalizeProviderStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "unpaid":
		return models.SubscriptionStatusUnpaid
	case "canceled", "incomplete_expired":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusIncomplete
	}
}
