package game

// CanOffer reports whether p may offer a double: it must be p's turn in the
// ROLLING phase, the game must not be the Crawford game, and the cube must be
// centered or owned by p.
func CanOffer(s *GameState, p Player) bool {
	return s.Phase == PhaseRolling &&
		!s.Crawford &&
		s.Current == p &&
		(s.Cube.Owner == Nobody || s.Cube.Owner == p)
}

// OfferDouble proposes a double: the game waits in DOUBLING for the
// opponent's response. Nothing else changes.
func OfferDouble(s *GameState) *GameState {
	ns := s.Clone()
	ns.Phase = PhaseDoubling
	return ns
}

// AcceptDouble doubles the cube, hands ownership to the mover's opponent and
// returns play to the mover's roll.
func AcceptDouble(s *GameState) *GameState {
	ns := s.Clone()
	ns.Cube.Value *= 2
	ns.Cube.Owner = ns.Current.Opponent()
	ns.Phase = PhaseRolling
	return ns
}

// DeclineDouble concedes: the mover wins a single game at the pre-proposal
// cube value.
func DeclineDouble(s *GameState) *GameState {
	ns := s.Clone()
	finish(ns, ns.Current, WinSingle)
	return ns
}
