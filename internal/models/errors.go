package models

// IllegalMoveError is a rule violation detected before any state changes.
// It is surfaced to the acting user; the turn stays with them.
type IllegalMoveError struct {
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return "illegal move: " + e.Reason
}

// Is lets errors.Is match any IllegalMoveError against another with the same
// reason, and a zero-reason target against every IllegalMoveError.
func (e *IllegalMoveError) Is(target error) bool {
	t, ok := target.(*IllegalMoveError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Illegal builds an IllegalMoveError.
func Illegal(reason string) error {
	return &IllegalMoveError{Reason: reason}
}

// ErrIllegalMove matches any IllegalMoveError with errors.Is.
var ErrIllegalMove = &IllegalMoveError{}

// Turn and phase checks shared by the authority and the guest replica.
var (
	ErrNotYourTurn = Illegal("it is not your turn")
	ErrWrongPhase  = Illegal("that is not allowed right now")
	ErrWrongGame   = Illegal("that action belongs to the other game")
)
