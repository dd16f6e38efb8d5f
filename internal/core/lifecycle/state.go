package lifecycle

// State is where a component sits in its lifecycle. Transitions are driven
// by the scheduler only.
type State uint8

const (
	StateUnregistered State = iota
	StateAwake
	StateEnabled
	StateStarting
	StateStarted
	StateStartFailed
	StateDisabled
	StateDestroyed
)

var stateNames = [...]string{
	"unregistered",
	"awake",
	"enabled",
	"starting",
	"started",
	"start-failed",
	"disabled",
	"destroyed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
