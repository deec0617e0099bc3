package order

import (
	"deliveroute-be/internal/actor"
)

// Action is a requested move through the fulfillment flow. Cancellation is
// not an Action: it goes through the cancellation service, which applies
// eligibility and refund policy on top of the same versioned write.
type Action string

const (
	ActionAccept           Action = "accept"
	ActionStartPreparing   Action = "start_preparing"
	ActionMarkReady        Action = "mark_ready"
	ActionPickUp           Action = "pick_up"
	ActionStartDelivery    Action = "start_delivery"
	ActionCompleteDelivery Action = "complete_delivery"
)

type edge struct {
	action Action
	from   Status
	to     Status
	roles  []actor.Role
}

// The order state flow as code: forward-only, one edge per action.
var edges = []edge{
	{ActionAccept, StatusPending, StatusConfirmed, []actor.Role{actor.RoleOwner}},
	{ActionStartPreparing, StatusConfirmed, StatusPreparing, []actor.Role{actor.RoleOwner, actor.RoleSystem}},
	{ActionMarkReady, StatusPreparing, StatusReady, []actor.Role{actor.RoleOwner}},
	{ActionPickUp, StatusReady, StatusPickedUp, []actor.Role{actor.RoleRider}},
	{ActionStartDelivery, StatusPickedUp, StatusDelivering, []actor.Role{actor.RoleRider}},
	{ActionCompleteDelivery, StatusDelivering, StatusDelivered, []actor.Role{actor.RoleRider}},
}

// Resolve validates (current status, role, action) and returns the next
// status. It is a pure function; persistence races are caught later by the
// versioned write.
func Resolve(current Status, role actor.Role, action Action) (Status, error) {
	if current.Terminal() {
		return "", ErrAlreadyTerminal
	}
	for _, e := range edges {
		if e.action != action || e.from != current {
			continue
		}
		for _, r := range e.roles {
			if r == role {
				return e.to, nil
			}
		}
	}
	return "", ErrInvalidTransition
}

// NextOf returns the statuses reachable from s along forward edges.
func NextOf(s Status) []Status {
	var out []Status
	for _, e := range edges {
		if e.from == s {
			out = append(out, e.to)
		}
	}
	return out
}
