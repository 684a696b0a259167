package game

import (
	"errors"
	"fmt"
)

// Categories. Every error returned by the session manager wraps exactly one.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("state conflict")
	ErrExhausted  = errors.New("resource exhausted")
)

var (
	ErrInvalidKind     = fmt.Errorf("%w: unsupported player kind", ErrValidation)
	ErrInvalidIdentity = fmt.Errorf("%w: missing player identity", ErrValidation)
	ErrWalletRequired  = fmt.Errorf("%w: staked rooms require a wallet", ErrValidation)
	ErrInvalidText     = fmt.Errorf("%w: message text is empty or too long", ErrValidation)
	ErrNotPermitted    = fmt.Errorf("%w: action not permitted for this player", ErrValidation)

	ErrRoomNotFound   = fmt.Errorf("%w: room not found", ErrConflict)
	ErrPlayerNotFound = fmt.Errorf("%w: player not found", ErrConflict)
	ErrWrongPhase     = fmt.Errorf("%w: room is in the wrong phase", ErrConflict)
	ErrKindMismatch   = fmt.Errorf("%w: room kind does not match request", ErrConflict)
	ErrAlreadySeated  = fmt.Errorf("%w: player already seated", ErrConflict)
	ErrPlayerLeft     = fmt.Errorf("%w: player has left the match", ErrConflict)
	ErrInvalidTarget  = fmt.Errorf("%w: no player at that seat", ErrConflict)
	ErrSelfVote       = fmt.Errorf("%w: players cannot vote for themselves", ErrConflict)

	ErrRoomFull = fmt.Errorf("%w: cohort already full", ErrExhausted)
)

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsExhausted(err error) bool { return errors.Is(err, ErrExhausted) }
