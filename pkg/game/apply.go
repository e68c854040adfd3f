package game

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDice means a move was attempted before any roll.
	ErrNoDice = errors.New("no dice rolled")
	// ErrIllegalMove means the move violates the atomic-move rules or the
	// use-as-many-dice-as-possible constraint.
	ErrIllegalMove = errors.New("illegal move")
	// ErrWrongPhase means the operation is forbidden in the current phase.
	ErrWrongPhase = errors.New("wrong phase")
)

// Apply plays a single atomic move and returns the resulting state. The input
// state is never mutated. The consumed die is derived from the move's
// endpoints and removed from the remainder; a hit sends the opponent's blot
// to the bar.
func Apply(s *GameState, m Move) (*GameState, error) {
	if s.Dice == nil {
		return nil, ErrNoDice
	}
	mover := s.Current
	die, err := consumedDie(m, mover, s.Dice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	ns := s.Clone()
	b := &ns.Board
	if !ns.Dice.consume(die) {
		return nil, fmt.Errorf("%w: die %d not available", ErrIllegalMove, die)
	}

	switch m.From.Kind {
	case SlotBar:
		if b.Bar[mover] == 0 {
			return nil, fmt.Errorf("%w: no checker on the bar", ErrIllegalMove)
		}
		b.Bar[mover]--
	case SlotPoint:
		pt := &b.Points[m.From.Index]
		if pt.Count == 0 || pt.Owner != mover {
			return nil, fmt.Errorf("%w: no checker on point %d", ErrIllegalMove, m.From.Index)
		}
		pt.Count--
		if pt.Count == 0 {
			*pt = Point{}
		}
	default:
		return nil, fmt.Errorf("%w: cannot move from off", ErrIllegalMove)
	}

	switch m.To.Kind {
	case SlotOff:
		b.Off[mover]++
	case SlotPoint:
		pt := &b.Points[m.To.Index]
		if pt.Count == 1 && pt.Owner != mover {
			// Hit: the lone opposing checker goes to the bar.
			b.Bar[mover.Opponent()]++
			*pt = Point{}
		}
		if pt.Count > 0 && pt.Owner != mover {
			return nil, fmt.Errorf("%w: point %d is blocked", ErrIllegalMove, m.To.Index)
		}
		pt.Owner = mover
		pt.Count++
	default:
		return nil, fmt.Errorf("%w: cannot move to the bar", ErrIllegalMove)
	}

	return ns, nil
}
