package game

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SlotKind discriminates the Slot variant.
type SlotKind int8

const (
	SlotPoint SlotKind = iota
	SlotBar
	SlotOff
)

// Slot is a move endpoint: a board point, the bar, or off the board. On the
// wire it is a 0-based point index or the string "bar" / "off".
type Slot struct {
	Kind  SlotKind
	Index int // valid only when Kind == SlotPoint
}

// PointSlot returns the Slot for board point i.
func PointSlot(i int) Slot { return Slot{Kind: SlotPoint, Index: i} }

// BarSlot is the bar endpoint.
var BarSlot = Slot{Kind: SlotBar}

// OffSlot is the borne-off endpoint.
var OffSlot = Slot{Kind: SlotOff}

func (s Slot) String() string {
	switch s.Kind {
	case SlotBar:
		return "bar"
	case SlotOff:
		return "off"
	}
	return strconv.Itoa(s.Index)
}

// MarshalJSON encodes point slots as numbers and bar/off as strings.
func (s Slot) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SlotBar:
		return json.Marshal("bar")
	case SlotOff:
		return json.Marshal("off")
	}
	return json.Marshal(s.Index)
}

// UnmarshalJSON accepts a point index or "bar" / "off".
func (s *Slot) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		if i < 0 || i >= NumPoints {
			return fmt.Errorf("point index %d out of range", i)
		}
		*s = PointSlot(i)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "bar":
		*s = BarSlot
	case "off":
		*s = OffSlot
	default:
		return fmt.Errorf("invalid slot %q", str)
	}
	return nil
}

// Move is a single checker move, uniquely determined by its endpoints. The
// die it consumes is derived from them (see consumedDie).
type Move struct {
	From Slot `json:"from"`
	To   Slot `json:"to"`
}

func (m Move) String() string {
	return m.From.String() + "/" + m.To.String()
}

// key is a compact endpoint encoding used for de-duplication.
func (m Move) key() string { return m.String() }

// consumedDie derives the die value a move consumes for the given mover and
// dice remainder. Only bear-off overshoot is ambiguous; there the smallest
// remaining die that clears the distance is chosen.
func consumedDie(m Move, mover Player, d *Dice) (int, error) {
	switch {
	case m.From.Kind == SlotBar:
		if m.To.Kind != SlotPoint {
			return 0, fmt.Errorf("bar move must land on a point")
		}
		if mover == Gold {
			return m.To.Index + 1, nil
		}
		return NumPoints - m.To.Index, nil
	case m.To.Kind == SlotOff:
		if m.From.Kind != SlotPoint {
			return 0, fmt.Errorf("bear-off must start on a point")
		}
		need := offDistance(m.From.Index, mover)
		if d.has(need) {
			return need, nil
		}
		// Overshoot: smallest remaining die above the needed distance.
		best := 0
		for _, r := range d.Remaining {
			if r > need && (best == 0 || r < best) {
				best = r
			}
		}
		if best == 0 {
			return 0, fmt.Errorf("no die can bear off from %d", m.From.Index)
		}
		return best, nil
	case m.From.Kind == SlotPoint && m.To.Kind == SlotPoint:
		step := (m.To.Index - m.From.Index) * mover.Direction()
		if step <= 0 {
			return 0, fmt.Errorf("move %s goes backwards", m)
		}
		return step, nil
	}
	return 0, fmt.Errorf("invalid move %s", m)
}
