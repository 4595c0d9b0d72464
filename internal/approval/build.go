package approval

import "github.com/google/uuid"

// BuildSteps composes the ordered approval chain for a newly submitted expense.
//
// Without a matched rule the submitter's manager is the sole approver. With a
// rule, the manager comes first when the rule requires it, followed by the
// rule's approvers in their stored list order. The returned flag is the
// manager-required snapshot kept on the expense.
func BuildSteps(rule *Rule, managerID *uuid.UUID) ([]Step, bool, error) {
	hasManager := managerID != nil && *managerID != uuid.Nil

	if rule == nil {
		if !hasManager {
			return nil, false, ErrNoApprovalPath
		}

		return []Step{{ApproverID: *managerID, Order: 1, Status: StepPending}}, true, nil
	}

	steps := make([]Step, 0, len(rule.Approvers)+1)

	if rule.IsManagerApproverRequired && hasManager {
		steps = append(steps, Step{ApproverID: *managerID, Order: 1, Status: StepPending})
	}

	for _, a := range rule.Approvers {
		if a.UserID == uuid.Nil {
			continue
		}

		steps = append(steps, Step{ApproverID: a.UserID, Order: len(steps) + 1, Status: StepPending})
	}

	// An empty chain could never be resolved by anyone.
	if len(steps) == 0 {
		return nil, false, ErrNoApprovalPath
	}

	return steps, rule.IsManagerApproverRequired, nil
}
