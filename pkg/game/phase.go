package game

// CheckWinner returns the side that has borne off all fifteen checkers, or
// Nobody while the game continues.
func CheckWinner(s *GameState) Player {
	if s.Board.Off[Gold] == CheckersPerSide {
		return Gold
	}
	if s.Board.Off[Red] == CheckersPerSide {
		return Red
	}
	return Nobody
}

// ClassifyWin determines the win type for winner w:
// the loser bore something off (single), bore nothing off (gammon), or bore
// nothing off while still having a checker on the bar or in the winner's
// home board (backgammon).
func ClassifyWin(b *Board, w Player) WinType {
	l := w.Opponent()
	if b.Off[l] > 0 {
		return WinSingle
	}
	lo, hi := w.Home()
	if b.Bar[l] == 0 && !b.checkerIn(l, lo, hi) {
		return WinGammon
	}
	return WinBackgammon
}

// checkerIn reports whether p has a checker on any point in [lo, hi].
func (b *Board) checkerIn(p Player, lo, hi int) bool {
	for i := lo; i <= hi; i++ {
		if b.owns(i, p) {
			return true
		}
	}
	return false
}

// Points computes the points a win is worth: the win-type multiplier times
// the cube value.
func Points(wt WinType, cubeValue int) int {
	return wt.Multiplier() * cubeValue
}

// finish marks the game over, records the winner and win type, and credits
// the points to the match score.
func finish(ns *GameState, w Player, wt WinType) {
	ns.Phase = PhaseGameOver
	ns.Winner = w
	ns.WinType = wt
	ns.Score[w] += Points(wt, ns.Cube.Value)
	ns.Dice = nil
}

// endTurn advances past the mover's turn in place (on an already-cloned
// state): game over if a side has borne off everything, otherwise the other
// side rolls next.
func endTurn(ns *GameState) {
	if w := CheckWinner(ns); w != Nobody {
		finish(ns, w, ClassifyWin(&ns.Board, w))
		return
	}
	ns.Current = ns.Current.Opponent()
	ns.Phase = PhaseRolling
	ns.Dice = nil
}

// EndTurn ends the mover's turn: sets the winner when the game is decided,
// otherwise flips the current player back to ROLLING with the dice cleared.
func EndTurn(s *GameState) *GameState {
	ns := s.Clone()
	endTurn(ns)
	return ns
}

// StartTurn installs a fresh roll for the current mover. When the roll
// yields no legal move the turn ends immediately and the opponent is back
// to ROLLING.
func StartTurn(s *GameState, d *Dice) *GameState {
	ns := s.Clone()
	ns.Dice = d
	ns.Phase = PhaseMoving
	if !CanMove(ns) {
		endTurn(ns)
	}
	return ns
}

// OpeningRoll resolves the opening: each side rolls a single die. A tie
// reports tied=true and leaves the state awaiting a reroll; otherwise the
// higher roller becomes the first mover with the pair as their first-turn
// dice.
func OpeningRoll(s *GameState, goldDie, redDie int) (ns *GameState, tied bool) {
	if goldDie == redDie {
		return s.Clone(), true
	}
	ns = s.Clone()
	ns.Current = Gold
	if redDie > goldDie {
		ns.Current = Red
	}
	ns.Dice = NewDice(goldDie, redDie)
	ns.Phase = PhaseMoving
	if !CanMove(ns) {
		endTurn(ns)
	}
	return ns, false
}

// PlayMove validates a move against the constrained-move set, applies it and
// advances the phase machine: game over on the fifteenth borne-off checker,
// end of turn when no playable dice remain, otherwise still MOVING.
func PlayMove(s *GameState, m Move) (*GameState, error) {
	if s.Phase != PhaseMoving {
		return nil, ErrWrongPhase
	}
	allowed := false
	for _, cm := range ConstrainedMoves(s) {
		if cm == m {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrIllegalMove
	}
	ns, err := Apply(s, m)
	if err != nil {
		return nil, err
	}
	if w := CheckWinner(ns); w != Nobody {
		finish(ns, w, ClassifyWin(&ns.Board, w))
		return ns, nil
	}
	if !CanMove(ns) {
		endTurn(ns)
	}
	return ns, nil
}
