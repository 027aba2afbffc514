package domain

import (
	"errors"

	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
)

// Outcome classifies one subsystem's response to a removal attempt.
type Outcome string

const (
	OutcomeRemoved      Outcome = "removed"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeFailed       Outcome = "failed"
)

// ClassifyOutcome maps a subsystem error onto a removal outcome.
func ClassifyOutcome(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeRemoved
	case errors.Is(err, sharedDomain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, sharedDomain.ErrUnauthorized):
		return OutcomeUnauthorized
	default:
		return OutcomeFailed
	}
}

// RemovalReport collects the per-subsystem outcomes of a deletion fan-out.
type RemovalReport struct {
	Scheduler Outcome
	Workflow  Outcome
	Archive   Outcome
}

// Aggregate folds the three outcomes into one overall result. Permission
// failures win over everything; a full miss means the event never existed;
// any transient failure makes the whole call retryable. Partial removals are
// never rolled back, so FAILED means "retry", not "nothing happened".
func (r RemovalReport) Aggregate() Outcome {
	outcomes := []Outcome{r.Scheduler, r.Workflow, r.Archive}

	for _, o := range outcomes {
		if o == OutcomeUnauthorized {
			return OutcomeUnauthorized
		}
	}

	allMissing := true
	for _, o := range outcomes {
		if o != OutcomeNotFound {
			allMissing = false
			break
		}
	}
	if allMissing {
		return OutcomeNotFound
	}

	for _, o := range outcomes {
		if o == OutcomeFailed {
			return OutcomeFailed
		}
	}
	return OutcomeRemoved
}
