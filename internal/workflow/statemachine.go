package workflow

import (
	"fmt"
	"strings"

	"github.com/clinsg/medexam-api/internal/models"
	appErrors "github.com/clinsg/medexam-api/pkg/errors"
)

// Action enumerates the submission lifecycle operations.
type Action string

const (
	ActionSave             Action = "save"
	ActionSubmitDirect     Action = "submit_direct"
	ActionRouteForApproval Action = "route_for_approval"
	ActionApprove          Action = "approve"
	ActionReject           Action = "reject"
	ActionReopen           Action = "reopen"
)

// Actor is the authenticated staff member attempting a transition. The
// machine authorizes (role-gates) only; authentication happened upstream.
type Actor struct {
	ID   string
	Role models.UserRole
}

type rule struct {
	from      models.ReportStatus
	action    Action
	to        models.ReportStatus
	permitted func(r *models.Report, a Actor) bool
}

func isOwner(r *models.Report, a Actor) bool {
	return r.CreatedBy == a.ID || a.Role == models.RoleAdmin
}

func isAssignedDoctor(r *models.Report, a Actor) bool {
	return a.Role == models.RoleDoctor && r.AssignedDoctorID != nil && *r.AssignedDoctorID == a.ID
}

// The transition table. A doctor's direct submission never passes through
// pending_approval: doctors are self-certifying, so submit_direct and
// route_for_approval are distinct rows, not one unified path. The
// pending_approval rows for submit_direct and route_for_approval cover the
// assigned doctor correcting a routed report and resubmitting either way.
var rules = []rule{
	{from: models.StatusDraft, action: ActionSave, to: models.StatusDraft, permitted: isOwner},
	{from: models.StatusDraft, action: ActionSubmitDirect, to: models.StatusSubmitted,
		permitted: func(r *models.Report, a Actor) bool { return a.Role == models.RoleDoctor }},
	{from: models.StatusDraft, action: ActionRouteForApproval, to: models.StatusPendingApproval,
		permitted: func(r *models.Report, a Actor) bool { return a.Role == models.RoleNurse }},
	{from: models.StatusPendingApproval, action: ActionApprove, to: models.StatusSubmitted, permitted: isAssignedDoctor},
	{from: models.StatusPendingApproval, action: ActionReject, to: models.StatusRejected, permitted: isAssignedDoctor},
	{from: models.StatusPendingApproval, action: ActionSubmitDirect, to: models.StatusSubmitted, permitted: isAssignedDoctor},
	{from: models.StatusPendingApproval, action: ActionRouteForApproval, to: models.StatusPendingApproval, permitted: isAssignedDoctor},
	{from: models.StatusRejected, action: ActionReopen, to: models.StatusDraft,
		permitted: func(r *models.Report, a Actor) bool {
			return a.Role == models.RoleDoctor || (a.Role == models.RoleNurse && r.CreatedBy == a.ID)
		}},
}

// AllowedActions lists every action the actor may take on the report in its
// current status.
func AllowedActions(report *models.Report, actor Actor) []Action {
	var actions []Action
	for _, rl := range rules {
		if rl.from == report.Status && rl.permitted(report, actor) {
			actions = append(actions, rl.action)
		}
	}
	return actions
}

// Transition resolves the target status for an action without mutating the
// report. Unknown or out-of-state actions fail with INVALID_TRANSITION
// naming the current state, the requested action, and the actions the actor
// could take instead; a known transition attempted by the wrong actor fails
// with FORBIDDEN. Route-for-approval additionally requires an assigned
// doctor.
func Transition(report *models.Report, action Action, actor Actor) (models.ReportStatus, error) {
	var match *rule
	for i := range rules {
		if rules[i].from == report.Status && rules[i].action == action {
			match = &rules[i]
			break
		}
	}
	if match == nil {
		return "", invalidTransition(report, action, actor)
	}
	if !match.permitted(report, actor) {
		return "", appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("role %s may not %s this report", actor.Role, action))
	}
	if match.to == models.StatusPendingApproval && report.AssignedDoctorID == nil {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "an assigned doctor is required before routing for approval")
	}
	return match.to, nil
}

func invalidTransition(report *models.Report, action Action, actor Actor) *appErrors.Error {
	allowed := AllowedActions(report, actor)
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	allowedText := "none"
	if len(names) > 0 {
		allowedText = strings.Join(names, ", ")
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("cannot %s a report in status %s; allowed actions: %s", action, report.Status, allowedText))
}
