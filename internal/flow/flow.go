package flow

// Flows are declared as data: a table of steps, each with an input
// contract and a transition function. The engine knows nothing about
// income or expenses; adding a flow means adding a table, not touching
// the engine.

type InputKind string

const (
	KindChoice InputKind = "choice"
	KindText   InputKind = "text"
	KindPhoto  InputKind = "photo"
	KindSkip   InputKind = "skip"
	KindCancel InputKind = "cancel"
)

type Input struct {
	Kind  InputKind
	Value string
}

type Option struct {
	ID    string
	Label string
}

// Contract describes what a step accepts: a button choice from Options,
// or free text run through Validate. Skippable steps additionally accept
// a skip input, which records the field as explicitly empty. Steps with
// AcceptsPhoto take a photo input whose value the inbound adapter has
// already resolved into a link.
type Contract struct {
	Options      []Option
	Validate     func(string) (string, error)
	Skippable    bool
	AcceptsPhoto bool
}

// Transition is the outcome of feeding one validated input to a step.
// Next is empty iff Action is set (terminal).
type Transition struct {
	Next   string
	Patch  map[string]string
	Action *Action
}

// Action describes the business record a completed flow persists. The
// collaborator that executes it owns validation, storage and any
// follow-up scheduling.
type Action struct {
	Record RecordRequest
}

type RecordRequest struct {
	Type   string
	Fields map[string]string
}

type Step struct {
	ID       string
	Field    string // context field this step collects
	Prompt   string
	Contract Contract

	// Next computes the transition from a validated input and the
	// context accumulated so far.
	Next func(in Input, ctx map[string]string) Transition
}

type Flow struct {
	Name  string
	First string
	Steps map[string]Step
}

func (f Flow) step(id string) (Step, bool) {
	st, ok := f.Steps[id]
	return st, ok
}

func (c Contract) hasOption(id string) bool {
	for _, o := range c.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}
