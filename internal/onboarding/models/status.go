package models

// Status is the lifecycle state of an onboarding session.
type Status string

const (
	StatusPending         Status = "pending"
	StatusInProgress      Status = "in_progress"
	StatusSubmitted       Status = "submitted"
	StatusManagerApproved Status = "manager_approved"
	StatusRequiresChanges Status = "requires_changes"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusCompleted       Status = "completed"
	StatusExpired         Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSubmitted, StatusManagerApproved,
		StatusRequiresChanges, StatusApproved, StatusRejected, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

// IsEditable reports whether the applicant may still change step data.
func (s Status) IsEditable() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusRequiresChanges
}

// IsUnderReview reports whether the session sits in the review pipeline.
func (s Status) IsUnderReview() bool {
	return s == StatusSubmitted || s == StatusManagerApproved || s == StatusApproved
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusExpired
}

// HoldsLiveSlot reports whether a session in s counts as the candidate's one
// live session. The set matches the partial unique index on
// onboarding_sessions.
func (s Status) HoldsLiveSlot() bool {
	return s.IsEditable() || s.IsUnderReview()
}

// IsSubmittedOrLater reports whether the applicant has finished every step
// and handed the session to reviewers.
func (s Status) IsSubmittedOrLater() bool {
	switch s {
	case StatusSubmitted, StatusManagerApproved, StatusApproved, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Action is an event that moves a session between statuses.
type Action string

const (
	ActionStart                 Action = "start"
	ActionSubmit                Action = "submit"
	ActionResubmit              Action = "resubmit"
	ActionManagerApprove        Action = "manager_approve"
	ActionManagerReject         Action = "manager_reject"
	ActionManagerRequestChanges Action = "manager_request_changes"
	ActionHRApprove             Action = "hr_approve"
	ActionHRReject              Action = "hr_reject"
	ActionHRRequestChanges      Action = "hr_request_changes"
	ActionComplete              Action = "complete"
	ActionExpire                Action = "expire"
)

// transitions is the only definition of legal status changes.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionStart:  StatusInProgress,
		ActionExpire: StatusExpired,
	},
	StatusInProgress: {
		ActionSubmit: StatusSubmitted,
		ActionExpire: StatusExpired,
	},
	StatusSubmitted: {
		ActionManagerApprove:        StatusManagerApproved,
		ActionManagerRequestChanges: StatusRequiresChanges,
		ActionManagerReject:         StatusRejected,
	},
	StatusManagerApproved: {
		ActionHRApprove:        StatusApproved,
		ActionHRRequestChanges: StatusRequiresChanges,
		ActionHRReject:         StatusRejected,
	},
	StatusRequiresChanges: {
		ActionResubmit: StatusSubmitted,
		ActionExpire:   StatusExpired,
	},
	StatusApproved: {
		ActionComplete: StatusCompleted,
	},
}

// Next returns the status reached by applying action in from.
func Next(from Status, action Action) (Status, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// CanTransitionTo reports whether any action moves s to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, to := range transitions[s] {
		if to == target {
			return true
		}
	}
	return false
}

// sources returns the statuses from which action is legal.
func sources(action Action) []Status {
	var out []Status
	for from, edges := range transitions {
		if _, ok := edges[action]; ok {
			out = append(out, from)
		}
	}
	return out
}

// Superseded reports whether current was reached from one of action's source
// statuses within the same review round, meaning another actor already moved
// the session on. The resubmit edge starts a new round and is not followed.
func Superseded(current Status, action Action) bool {
	for _, from := range sources(action) {
		if from != current && reachable(from, current) {
			return true
		}
	}
	return false
}

func reachable(from, target Status) bool {
	seen := map[Status]bool{from: true}
	queue := []Status{from}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for action, to := range transitions[s] {
			if action == ActionResubmit || seen[to] {
				continue
			}
			if to == target {
				return true
			}
			seen[to] = true
			queue = append(queue, to)
		}
	}
	return false
}
