package action

import "github.com/chaosbench/chaosbench/pkg/value"

// CustomAction binds a name to an action kind plus a parameter override
// map. Custom kinds in a task resolve at dispatch time by scanning the
// current scenario's custom-action list.
type CustomAction struct {
	Name       string      `json:"name"`
	Action     Kind        `json:"action"`
	Parameters *value.Map  `json:"parameters"`
}

// Resolve scans actions for name and returns the matching CustomAction,
// reporting whether it was found.
func Resolve(actions []CustomAction, name string) (CustomAction, bool) {
	for _, a := range actions {
		if a.Name == name {
			return a, true
		}
	}
	return CustomAction{}, false
}

// IsWait reports whether k is Wait, or a Custom kind that resolves to Wait
// within actions — used to decide retries_budget=∞ at compile time, since a
// wait task must never give up retrying on its own.
func IsWait(k Kind, actions []CustomAction) bool {
	if k == Wait {
		return true
	}
	if k.IsCustom() {
		if resolved, ok := Resolve(actions, k.CustomName()); ok {
			return resolved.Action == Wait
		}
	}
	return false
}
