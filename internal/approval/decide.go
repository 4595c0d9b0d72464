package approval

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

// Resolution names the evaluation branch that produced a Decision.
type Resolution string

const (
	ResolutionSpecificApprover Resolution = "specific_approver"
	ResolutionSequential       Resolution = "sequential"
	ResolutionPercentage       Resolution = "percentage"
	ResolutionRejected         Resolution = "rejected"
)

// Decision is the outcome of a single approver action. Steps is a fresh copy;
// the caller's slice is left untouched.
type Decision struct {
	Status     Status
	Steps      []Step
	Step       Step // The step the actor just resolved
	Resolution Resolution
	Percentage int // Set for ResolutionPercentage only
	ApprovedAt *time.Time
	RejectedAt *time.Time
}

// Approve records approverID's approval and evaluates the chain against rule.
// A nil rule is evaluated in parallel mode with a 100% threshold.
func Approve(status Status, steps []Step, rule *Rule, approverID uuid.UUID, comment string, now time.Time) (Decision, error) {
	idx, err := locate(status, steps, approverID)
	if err != nil {
		return Decision{}, err
	}

	next := resolve(steps, idx, StepApproved, comment, now)
	d := Decision{Steps: next, Step: next[idx]}

	switch {
	case rule.isSpecificApprover(approverID):
		d.Resolution = ResolutionSpecificApprover
		d.Status = StatusApproved
	case rule.sequential():
		d.Resolution = ResolutionSequential
		d.Status = StatusApproved

		if hasOrder(next, next[idx].Order+1) {
			d.Status = StatusWaitingApproval
		}
	default:
		d.Resolution = ResolutionPercentage
		d.Percentage = approvedPercentage(next)
		d.Status = StatusWaitingApproval

		if d.Percentage >= rule.threshold() {
			d.Status = StatusApproved
		}
	}

	if d.Status == StatusApproved {
		d.ApprovedAt = &now
	}

	return d, nil
}

// Reject records approverID's rejection. One rejection rejects the expense.
func Reject(status Status, steps []Step, rule *Rule, approverID uuid.UUID, comment string, now time.Time) (Decision, error) {
	if strings.TrimSpace(comment) == "" {
		return Decision{}, validation.New("comment", "is required when rejecting")
	}

	idx, err := locate(status, steps, approverID)
	if err != nil {
		return Decision{}, err
	}

	next := resolve(steps, idx, StepRejected, comment, now)

	return Decision{
		Status:     StatusRejected,
		Steps:      next,
		Step:       next[idx],
		Resolution: ResolutionRejected,
		RejectedAt: &now,
	}, nil
}

// CurrentApprovers lists the approvers next in line. In sequential mode only
// the holders of the lowest pending order qualify. Used to pick notification
// recipients; it does not restrict who may act.
func CurrentApprovers(steps []Step, sequential bool) []uuid.UUID {
	lowest, ok := lowestPendingOrder(steps)
	if !ok {
		return nil
	}

	var out []uuid.UUID

	for _, s := range steps {
		if s.Status != StepPending {
			continue
		}

		if sequential && s.Order != lowest {
			continue
		}

		if !slices.Contains(out, s.ApproverID) {
			out = append(out, s.ApproverID)
		}
	}

	return out
}

// locate returns the index of approverID's pending step. Any approver with a
// pending step may act, in sequential chains too.
func locate(status Status, steps []Step, approverID uuid.UUID) (int, error) {
	if !status.Pending() {
		return -1, ErrInvalidState
	}

	idx := slices.IndexFunc(steps, func(s Step) bool {
		return s.ApproverID == approverID && s.Status == StepPending
	})
	if idx < 0 {
		return -1, ErrNotAuthorizedApprover
	}

	return idx, nil
}

func resolve(steps []Step, idx int, status StepStatus, comment string, now time.Time) []Step {
	next := slices.Clone(steps)
	at := now

	next[idx].Status = status
	next[idx].Comment = comment
	next[idx].ActedAt = &at

	return next
}

func lowestPendingOrder(steps []Step) (int, bool) {
	lowest, found := 0, false

	for _, s := range steps {
		if s.Status != StepPending {
			continue
		}

		if !found || s.Order < lowest {
			lowest, found = s.Order, true
		}
	}

	return lowest, found
}

func hasOrder(steps []Step, order int) bool {
	return slices.ContainsFunc(steps, func(s Step) bool { return s.Order == order })
}

// approvedPercentage rounds half up to a whole percent, so 2 of 3 is 67.
// The rounding can clear a threshold the exact ratio misses: 1 of 6 reads as 17.
func approvedPercentage(steps []Step) int {
	total := len(steps)
	if total == 0 {
		return 0
	}

	approved := 0

	for _, s := range steps {
		if s.Status == StepApproved {
			approved++
		}
	}

	return (approved*200 + total) / (2 * total)
}
