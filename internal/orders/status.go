package orders

// Status is the order lifecycle state.
//
//	RECEIVED -> VALIDATED -> INVENTORY_CHECKED -> PAYMENT_PROCESSED -> FULFILLED -> COMPLETED
//	    \___________\_______________\___________________\________________\______> FAILED
//
// Progress is strictly forward, one step at a time. FAILED is reachable from every non-terminal
// status and is absorbing.
type Status string

const (
	StatusReceived         Status = "RECEIVED"
	StatusValidated        Status = "VALIDATED"
	StatusInventoryChecked Status = "INVENTORY_CHECKED"
	StatusPaymentProcessed Status = "PAYMENT_PROCESSED"
	StatusFulfilled        Status = "FULFILLED"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
)

// forwardPath lists the happy-path statuses in order.
var forwardPath = []Status{
	StatusReceived,
	StatusValidated,
	StatusInventoryChecked,
	StatusPaymentProcessed,
	StatusFulfilled,
	StatusCompleted,
}

// AllStatuses returns every known status, FAILED last.
func AllStatuses() []Status {
	out := make([]Status, 0, len(forwardPath)+1)
	out = append(out, forwardPath...)
	return append(out, StatusFailed)
}

func (s Status) String() string { return string(s) }

func (s Status) Valid() bool {
	return s == StatusFailed || s.rank() >= 0
}

// IsTerminal reports whether no automatic transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Next returns the forward successor of s, if any.
func (s Status) Next() (Status, bool) {
	r := s.rank()
	if r < 0 || r+1 >= len(forwardPath) {
		return "", false
	}
	return forwardPath[r+1], true
}

// CanTransition reports whether s -> to is a legal lifecycle move.
func (s Status) CanTransition(to Status) bool {
	if s.IsTerminal() || !s.Valid() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	next, ok := s.Next()
	return ok && next == to
}

func (s Status) rank() int {
	for i, st := range forwardPath {
		if st == s {
			return i
		}
	}
	return -1
}
