package grn

// Action names a coordinator operation that moves a GRN between statuses.
type Action string

const (
	ActionStartInspection    Action = "start_inspection"
	ActionSubmitForInventory Action = "submit_for_inventory_approval"
	ActionReject             Action = "reject"
	ActionSendBack           Action = "send_back"
	ActionInventoryApprove   Action = "inventory_approve"
)

var actionLabels = map[Action]string{
	ActionStartInspection:    "Start inspection",
	ActionSubmitForInventory: "Send to inventory",
	ActionReject:             "Reject",
	ActionSendBack:           "Send back",
	ActionInventoryApprove:   "Inventory approve",
}

// Label is the human readable name shown in the audit log.
func (a Action) Label() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

// RequiresReason reports whether the action must carry a non-empty reason.
func (a Action) RequiresReason() bool {
	return a == ActionReject || a == ActionSendBack
}

// transitions is the only place legal status edges are defined.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionStartInspection: StatusInspecting,
	},
	StatusSentBack: {
		ActionStartInspection: StatusInspecting,
	},
	StatusInspecting: {
		ActionSubmitForInventory: StatusAwaitingInventoryApproval,
		ActionReject:             StatusRejected,
	},
	StatusAwaitingInventoryApproval: {
		ActionReject:           StatusRejected,
		ActionSendBack:         StatusSentBack,
		ActionInventoryApprove: StatusApproved,
	},
}

// Transition returns the status reached by applying action in status from.
func Transition(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return "", &StateError{Op: string(action), From: from}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInspecting, StatusAwaitingInventoryApproval,
		StatusApproved, StatusRejected, StatusSentBack:
		return true
	}
	return false
}

// Terminal reports whether no action leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}
