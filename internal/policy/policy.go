// Package policy decides whether an actor may perform an action on a resource.
// Decisions are pure: callers load the resource and pass the facts in.
package policy

import (
	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/models"
)

// Action names a guarded operation.
type Action string

const (
	ActionChallengeCreate          Action = "challenge.create"
	ActionChallengeEdit            Action = "challenge.edit"
	ActionChallengeViewUnpublished Action = "challenge.view_unpublished"
	ActionChallengeSubmit          Action = "challenge.submit"
	ActionSubmissionView           Action = "submission.view"
	ActionSubmissionReview         Action = "submission.review"
	ActionSubmissionReviewQueue    Action = "submission.review_queue"
	ActionLedgerView               Action = "ledger.view"
	ActionLedgerReconcile          Action = "ledger.reconcile"
	ActionProfileSetRole           Action = "profile.set_role"
	ActionActivityView             Action = "activity.view"
)

// Actor is the explicit principal passed into every guarded call.
type Actor struct {
	ProfileID uint
	Role      models.Role
}

// ActorFromProfile builds the actor for a resolved profile.
func ActorFromProfile(profile models.Profile) Actor {
	return Actor{ProfileID: profile.ID, Role: profile.Role}
}

// Resource carries the facts a decision depends on.
type Resource struct {
	// OwnerID is the profile owning the row: a submission's student or a ledger's holder.
	OwnerID uint
	// ChallengeOwnerID is the created_by of the challenge involved.
	ChallengeOwnerID uint
	// Submittable is true when the challenge is published and its publish date has passed.
	Submittable bool
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

type rule struct {
	roles []models.Role
	// self lets the owner of the resource through regardless of roles.
	self bool
	// challengeOwner requires non-elevated actors to own the challenge.
	challengeOwner bool
	submittable    bool
}

// anyRole leaves the role list open to every valid role.
var anyRole []models.Role

var (
	staffRoles = []models.Role{models.RoleTeacher, models.RoleUnderboss, models.RoleAdmin}
	elevated   = []models.Role{models.RoleUnderboss, models.RoleAdmin}
	adminOnly  = []models.Role{models.RoleAdmin}
)

var capabilities = map[Action]rule{
	ActionChallengeCreate:          {roles: staffRoles},
	ActionChallengeEdit:            {roles: staffRoles, challengeOwner: true},
	ActionChallengeViewUnpublished: {roles: staffRoles, challengeOwner: true},
	ActionChallengeSubmit:          {roles: anyRole, submittable: true},
	ActionSubmissionView:           {roles: staffRoles, self: true, challengeOwner: true},
	ActionSubmissionReview:         {roles: staffRoles, challengeOwner: true},
	ActionSubmissionReviewQueue:    {roles: staffRoles},
	ActionLedgerView:               {roles: elevated, self: true},
	ActionLedgerReconcile:          {roles: adminOnly},
	ActionProfileSetRole:           {roles: adminOnly},
	ActionActivityView:             {roles: elevated},
}

// Decide evaluates the capability table.
func Decide(actor Actor, action Action, resource Resource) Decision {
	if actor.ProfileID == 0 {
		return deny("authentication required")
	}
	if !actor.Role.Valid() {
		return deny("unknown role")
	}

	r, ok := capabilities[action]
	if !ok {
		return deny("unknown action")
	}

	if r.self && resource.OwnerID != 0 && resource.OwnerID == actor.ProfileID {
		return Decision{Allowed: true}
	}

	if r.roles != nil && !hasRole(r.roles, actor.Role) {
		return deny("role " + string(actor.Role) + " cannot " + string(action))
	}

	if r.challengeOwner && !actor.Role.IsElevated() && resource.ChallengeOwnerID != actor.ProfileID {
		return deny("only the challenge owner can " + string(action))
	}

	if r.submittable && !resource.Submittable {
		return deny("challenge is not open for submissions")
	}

	return Decision{Allowed: true}
}

// Authorize returns a Forbidden error when the decision denies the action.
func Authorize(actor Actor, action Action, resource Resource) error {
	decision := Decide(actor, action, resource)
	if decision.Allowed {
		return nil
	}
	if actor.ProfileID == 0 {
		return apperror.New(apperror.KindUnauthorized, decision.Reason)
	}
	return apperror.Forbidden(decision.Reason)
}

// Allowed is a convenience wrapper over Decide.
func Allowed(actor Actor, action Action, resource Resource) bool {
	return Decide(actor, action, resource).Allowed
}

func hasRole(roles []models.Role, role models.Role) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
