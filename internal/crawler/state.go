package crawler

// State is a crawl worker state.
type State int

const (
	// StateDiscovering renders the listing and enqueues new links.
	StateDiscovering State = iota

	// StateDraining fetches and extracts queued URLs one at a time.
	StateDraining

	// StateExhausted is terminal.
	StateExhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateDraining:
		return "draining"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
