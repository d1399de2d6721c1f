package server

import "github.com/example/starhold/internal/game"

// RoundBarrier tracks which human seats still owe a submission for the
// current round. It lives beside the game snapshot rather than inside it so
// published state stays pure data; the host re-arms it after every resolve.
type RoundBarrier struct {
	round    int
	expected map[game.Owner]bool
	ready    map[game.Owner]bool
}

func NewRoundBarrier() *RoundBarrier {
	return &RoundBarrier{expected: map[game.Owner]bool{}, ready: map[game.Owner]bool{}}
}

// Arm resets the barrier for a new round with the set of seats whose orders
// are awaited.
func (b *RoundBarrier) Arm(round int, expected []game.Owner) {
	b.round = round
	b.expected = make(map[game.Owner]bool, len(expected))
	b.ready = map[game.Owner]bool{}
	for _, o := range expected {
		b.expected[o] = true
	}
}

func (b *RoundBarrier) Round() int { return b.round }

// MarkReady records a seat's submission for the given round. It reports
// whether the mark was accepted; a stale round or an unexpected seat is
// refused so a late arrival can be queued for the next round instead.
func (b *RoundBarrier) MarkReady(owner game.Owner, round int) bool {
	if round != b.round || !b.expected[owner] {
		return false
	}
	b.ready[owner] = true
	return true
}

// Drop removes a seat from the expected set, e.g. when its player
// disconnects mid-round.
func (b *RoundBarrier) Drop(owner game.Owner) {
	delete(b.expected, owner)
	delete(b.ready, owner)
}

// AllReady reports whether every expected seat has submitted.
func (b *RoundBarrier) AllReady() bool {
	for o := range b.expected {
		if !b.ready[o] {
			return false
		}
	}
	return true
}

// Ready lists the seats that have submitted, for display.
func (b *RoundBarrier) Ready() []game.Owner {
	out := make([]game.Owner, 0, len(b.ready))
	for o := range b.ready {
		out = append(out, o)
	}
	return out
}
