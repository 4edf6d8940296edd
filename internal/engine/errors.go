package engine

import "errors"

// Action failures. Each precondition violation has its own kind so callers
// can branch on it; none of these crash the session.
var (
	ErrNotFound         = errors.New("session not found")
	ErrInvalidPlayer    = errors.New("invalid player index")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrStepMismatch     = errors.New("action not legal in current step")
	ErrCardNotInHand    = errors.New("card not in hand")
	ErrConditionsNotMet = errors.New("play conditions not met")
	ErrDeckEmpty        = errors.New("deck is empty")
	ErrUnknownAction    = errors.New("unknown action")
	ErrGameOver         = errors.New("game is over")
)
