package numerator

// State is the numbering state of a document.
type State string

const (
	StateNew       State = "New"
	StatePreviewed State = "Previewed"
	StateReserved  State = "Reserved"
	StatePersisted State = "Persisted"
)

var transitions = map[State][]State{
	StateNew:       {StatePreviewed, StateReserved},
	StatePreviewed: {StatePreviewed, StateReserved},
	StateReserved:  {StateReserved, StatePersisted},
}

// CanTransition reports whether a document may move from one state to another.
// Persisted is terminal.
func CanTransition(from, to State) bool {
	if from == "" {
		from = StateNew
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
