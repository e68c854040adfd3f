package game

import (
	"crypto/rand"
	"math/big"
)

// Dice is a rolled pair plus the multiset of die values still unplayed this
// turn. Doubles yield four copies of the value.
type Dice struct {
	Values    [2]int `json:"values"`
	Remaining []int  `json:"remaining"`
}

// NewDice builds the dice state for a roll of v1 and v2.
func NewDice(v1, v2 int) *Dice {
	d := &Dice{Values: [2]int{v1, v2}}
	if v1 == v2 {
		d.Remaining = []int{v1, v1, v1, v1}
	} else {
		d.Remaining = []int{v1, v2}
	}
	return d
}

// RollDie draws one uniform die value in [1..6].
func RollDie() int {
	n, err := rand.Int(rand.Reader, big.NewInt(6))
	if err != nil {
		// crypto/rand only fails when the platform's entropy source is
		// broken, at which point nothing else works either.
		panic(err)
	}
	return int(n.Int64()) + 1
}

// RollDice rolls a fresh pair. A forced pair may be supplied as a test seam:
// RollDice(3, 1) returns that exact roll.
func RollDice(forced ...int) *Dice {
	if len(forced) >= 2 {
		return NewDice(forced[0], forced[1])
	}
	return NewDice(RollDie(), RollDie())
}

// has reports whether value v is still unplayed.
func (d *Dice) has(v int) bool {
	for _, r := range d.Remaining {
		if r == v {
			return true
		}
	}
	return false
}

// consume removes one occurrence of v from the remainder.
// Reports whether v was present.
func (d *Dice) consume(v int) bool {
	for i, r := range d.Remaining {
		if r == v {
			d.Remaining = append(d.Remaining[:i:i], d.Remaining[i+1:]...)
			return true
		}
	}
	return false
}

// distinct returns the distinct unplayed die values.
func (d *Dice) distinct() []int {
	var out []int
	for _, r := range d.Remaining {
		found := false
		for _, o := range out {
			if o == r {
				found = true
				break
			}
		}
		if !found {
			out = append(out, r)
		}
	}
	return out
}

// max returns the highest unplayed die value, or 0 when none remain.
func (d *Dice) max() int {
	m := 0
	for _, r := range d.Remaining {
		if r > m {
			m = r
		}
	}
	return m
}
