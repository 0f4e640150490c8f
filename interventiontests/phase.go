package interventiontests

// Phase is where an entry has got to. Entries move strictly forward through
// Pending, SessionOpen, Navigated, Probing and Verdicted; an entry that ends early keeps the
// phase in which it stopped.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseSessionOpen Phase = "session open"
	PhaseNavigated   Phase = "navigated"
	PhaseProbing     Phase = "probing"
	PhaseVerdicted   Phase = "verdicted"
)
