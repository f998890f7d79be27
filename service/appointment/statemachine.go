package appointment

import (
	"slices"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
)

type rule struct {
	from  []models.AppointmentStatus
	roles []models.Role
}

// transitions lists, per target status, which current states may move there
// and which party roles may ask for it. Admin and system actors may apply any
// listed transition.
var transitions = map[models.AppointmentStatus][]rule{
	models.StatusConfirmed: {
		{from: []models.AppointmentStatus{models.StatusPending}, roles: []models.Role{models.RoleConsultant}},
	},
	models.StatusRejected: {
		{from: []models.AppointmentStatus{models.StatusPending}, roles: []models.Role{models.RoleConsultant}},
	},
	models.StatusCancelled: {
		{
			from:  []models.AppointmentStatus{models.StatusPending, models.StatusConfirmed},
			roles: []models.Role{models.RoleUser, models.RoleConsultant},
		},
		// Releasing a blocked slot.
		{from: []models.AppointmentStatus{models.StatusBlocked}, roles: []models.Role{models.RoleConsultant}},
	},
	models.StatusInSession: {
		{
			from:  []models.AppointmentStatus{models.StatusPending, models.StatusConfirmed},
			roles: []models.Role{models.RoleUser, models.RoleConsultant},
		},
	},
	models.StatusCompleted: {
		{from: []models.AppointmentStatus{models.StatusInSession}, roles: []models.Role{models.RoleConsultant}},
	},
}

// IsTransitionTarget reports whether status can be requested through a
// status update at all. pending and blocked are only reached by booking,
// blocking and rescheduling.
func IsTransitionTarget(status models.AppointmentStatus) bool {
	_, ok := transitions[status]
	return ok
}

// CheckTransition decides whether actor may move appt to target. Checks run
// in order: unknown target, ownership, role, current state. Known statuses
// that are never set directly (pending, blocked) are Forbidden for ordinary
// actors and InvalidStatus for privileged ones.
func CheckTransition(actor models.Actor, appt *models.Appointment, target models.AppointmentStatus) error {
	privileged := actor.IsPrivileged()
	rules, ok := transitions[target]
	if !ok {
		if target.Valid() && !privileged {
			return apperr.Forbidden("a %s cannot set status %s", actor.Role, target)
		}
		return apperr.InvalidStatus("unsupported target status %q", target)
	}

	if !privileged && !appt.OwnedBy(actor) {
		return apperr.Forbidden("not allowed to update appointment %d", appt.ID)
	}

	roleAllowed := false
	for _, r := range rules {
		if privileged || slices.Contains(r.roles, actor.Role) {
			roleAllowed = true
			if slices.Contains(r.from, appt.Status) {
				return nil
			}
		}
	}
	if !roleAllowed {
		return apperr.Forbidden("a %s cannot set status %s", actor.Role, target)
	}
	return apperr.InvalidStatus("cannot move appointment from %s to %s", appt.Status, target)
}
