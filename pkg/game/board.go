package game

// CheckersPerSide is the number of checkers each player starts with.
const CheckersPerSide = 15

// NumPoints is the number of board points.
const NumPoints = 24

// Point is one board position. An empty point has Count == 0 and its Owner
// is meaningless; an occupied point always has Count >= 1.
type Point struct {
	Owner Player `json:"owner"`
	Count int    `json:"count"`
}

// Board holds the 24 points plus the bar and borne-off counters for both
// sides (indexed by Player).
type Board struct {
	Points [NumPoints]Point `json:"points"`
	Bar    [2]int           `json:"bar"`
	Off    [2]int           `json:"off"`
}

// StartingBoard returns the standard backgammon starting position.
func StartingBoard() Board {
	var b Board
	b.Points[0] = Point{Gold, 2}
	b.Points[5] = Point{Red, 5}
	b.Points[7] = Point{Red, 3}
	b.Points[11] = Point{Gold, 5}
	b.Points[12] = Point{Red, 5}
	b.Points[16] = Point{Gold, 3}
	b.Points[18] = Point{Gold, 5}
	b.Points[23] = Point{Red, 2}
	return b
}

// owns reports whether point i holds at least one of p's checkers.
func (b *Board) owns(i int, p Player) bool {
	return b.Points[i].Count > 0 && b.Points[i].Owner == p
}

// landable reports whether p may land on point i: empty, own point, or an
// opponent blot.
func (b *Board) landable(i int, p Player) bool {
	pt := b.Points[i]
	return pt.Count == 0 || pt.Owner == p || pt.Count == 1
}

// allHome reports whether every one of p's checkers still on the board is in
// p's home board and none are on the bar. This is the bear-off precondition.
func (b *Board) allHome(p Player) bool {
	if b.Bar[p] > 0 {
		return false
	}
	lo, hi := p.Home()
	for i := 0; i < NumPoints; i++ {
		if i >= lo && i <= hi {
			continue
		}
		if b.owns(i, p) {
			return false
		}
	}
	return true
}

// offDistance is the number of pips needed to bear off from point i.
func offDistance(i int, p Player) int {
	if p == Gold {
		return NumPoints - i
	}
	return i + 1
}

// CheckerCount returns p's total checkers: on points, on the bar and borne
// off. It is CheckersPerSide for any reachable state.
func (b *Board) CheckerCount(p Player) int {
	n := b.Bar[p] + b.Off[p]
	for i := 0; i < NumPoints; i++ {
		if b.owns(i, p) {
			n += b.Points[i].Count
		}
	}
	return n
}

// PipCount returns the total distance p's checkers must still travel to bear
// off. Checkers on the bar count the full board length plus one.
func (b *Board) PipCount(p Player) int {
	pips := b.Bar[p] * (NumPoints + 1)
	for i := 0; i < NumPoints; i++ {
		if b.owns(i, p) {
			pips += b.Points[i].Count * offDistance(i, p)
		}
	}
	return pips
}
