package game

// LegalMoves returns every atomic move playable with some die currently in
// the remainder. Bar entry takes priority: while the mover has checkers on
// the bar, only bar-entry moves are returned. Moves that two different dice
// would both produce (bear-off overshoot) are emitted once.
func LegalMoves(s *GameState) []Move {
	if s.Dice == nil || len(s.Dice.Remaining) == 0 {
		return nil
	}
	mover := s.Current
	b := &s.Board

	seen := make(map[string]bool)
	var out []Move
	add := func(m Move) {
		if !seen[m.key()] {
			seen[m.key()] = true
			out = append(out, m)
		}
	}

	if b.Bar[mover] > 0 {
		for _, d := range s.Dice.distinct() {
			t := mover.EntryPoint(d)
			if b.landable(t, mover) {
				add(Move{From: BarSlot, To: PointSlot(t)})
			}
		}
		return out
	}

	home := b.allHome(mover)
	for _, d := range s.Dice.distinct() {
		for i := 0; i < NumPoints; i++ {
			if !b.owns(i, mover) {
				continue
			}
			to := i + d*mover.Direction()
			if to >= 0 && to < NumPoints {
				if b.landable(to, mover) {
					add(Move{From: PointSlot(i), To: PointSlot(to)})
				}
				continue
			}
			// Past the edge: bearing off.
			if !home {
				continue
			}
			need := offDistance(i, mover)
			if d == need || (d > need && !b.fartherChecker(i, mover)) {
				add(Move{From: PointSlot(i), To: OffSlot})
			}
		}
	}
	return out
}

// fartherChecker reports whether the mover has a checker strictly farther
// from bearing off than point i. Only meaningful once all checkers are home;
// an overshooting die may bear off from i only when this is false.
func (b *Board) fartherChecker(i int, p Player) bool {
	lo, hi := p.Home()
	if p == Gold {
		for j := lo; j < i; j++ {
			if b.owns(j, p) {
				return true
			}
		}
	} else {
		for j := i + 1; j <= hi; j++ {
			if b.owns(j, p) {
				return true
			}
		}
	}
	return false
}

// CanMove reports whether the mover has at least one legal move left.
func CanMove(s *GameState) bool {
	return len(LegalMoves(s)) > 0
}

// Turn is a complete sequence of atomic moves for one roll.
type Turn []Move

// Turns enumerates every complete turn playable from the current state:
// depth-first over legal moves until none remain. Only turns of maximum
// length survive (play as many dice as possible); when only a single die can
// be played and two distinct values remain, turns consuming the higher die
// win. Sequences reaching identical endpoints are deduplicated. Recursion is
// bounded by the dice remainder, which never exceeds four.
func Turns(s *GameState) []Turn {
	var leaves []Turn
	var dfs func(st *GameState, prefix []Move)
	dfs = func(st *GameState, prefix []Move) {
		moves := LegalMoves(st)
		if len(moves) == 0 {
			leaves = append(leaves, append(Turn(nil), prefix...))
			return
		}
		for _, m := range moves {
			ns, err := Apply(st, m)
			if err != nil {
				continue
			}
			dfs(ns, append(prefix, m))
		}
	}
	dfs(s, nil)

	maxLen := 0
	for _, t := range leaves {
		if len(t) > maxLen {
			maxLen = len(t)
		}
	}
	kept := leaves[:0]
	for _, t := range leaves {
		if len(t) == maxLen {
			kept = append(kept, t)
		}
	}

	if maxLen == 1 && s.Dice != nil && len(s.Dice.distinct()) == 2 {
		hi := s.Dice.max()
		var higher []Turn
		for _, t := range kept {
			if d, err := consumedDie(t[0], s.Current, s.Dice); err == nil && d == hi {
				higher = append(higher, t)
			}
		}
		if len(higher) > 0 {
			kept = higher
		}
	}

	seen := make(map[string]bool)
	var out []Turn
	for _, t := range kept {
		k := ""
		for _, m := range t {
			k += m.key() + ";"
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, t)
		}
	}
	return out
}

// ConstrainedMoves restricts LegalMoves to moves that begin at least one
// maximum-length turn: the mover is forced to use as many dice as possible,
// and to prefer the higher die when only one can be played.
func ConstrainedMoves(s *GameState) []Move {
	seen := make(map[string]bool)
	var out []Move
	for _, t := range Turns(s) {
		if len(t) == 0 {
			continue
		}
		m := t[0]
		if !seen[m.key()] {
			seen[m.key()] = true
			out = append(out, m)
		}
	}
	return out
}
