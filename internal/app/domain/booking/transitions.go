package booking

// transitions lists, for each status, the statuses it may move to and the
// roles allowed to make each move. Statuses without entries are terminal.
var transitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusAccepted:  {RoleProvider},
		StatusDeclined:  {RoleProvider},
		StatusCancelled: {RoleClient, RoleProvider, RoleSystem},
	},
	StatusAccepted: {
		StatusPaid:      {RolePayment},
		StatusCancelled: {RoleClient, RoleProvider, RoleSystem},
	},
	StatusPaid: {
		StatusCompleted: {RoleProvider},
		StatusCancelled: {RoleProvider},
	},
}

// CanTransition reports whether role may move a booking from one status to
// another.
func CanTransition(from, to Status, role Role) bool {
	for _, allowed := range transitions[from][to] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Reachable reports whether any role may move from one status to another.
func Reachable(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// Terminal reports whether no transition leaves the status.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}
