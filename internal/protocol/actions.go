package protocol

// ActionKind is the closed set of actions the hub dispatches to the world.
// Unknown kinds are acknowledged with StatusUnknownAction, never rejected.
type ActionKind string

const (
	ActionMove   ActionKind = "move"
	ActionFollow ActionKind = "follow"
	ActionSay    ActionKind = "say"
	ActionRaw    ActionKind = "raw"
)

// ParseActionKind maps a wire string onto the closed enum. The second
// return is false for kinds the hub does not understand.
func ParseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(s) {
	case ActionMove, ActionFollow, ActionSay, ActionRaw:
		return ActionKind(s), true
	}
	return ActionKind(s), false
}

// Action result statuses.
const (
	StatusOK            = "ok"
	StatusSent          = "sent"
	StatusUnknownAction = "unknown_action"
)
