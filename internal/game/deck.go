// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/unolabs/uno-service/internal/models"
)

// Stack is an ordered pile of cards. The top of the pile is the last element;
// Push, Pop and Peek all operate on that end. Both the draw deck and the
// discard pile use this convention.
type Stack []models.Card

// Push places a card on top of the stack.
func (s *Stack) Push(c models.Card) {
	*s = append(*s, c)
}

// Pop removes and returns the top card. The second return is false when the
// stack is empty.
func (s *Stack) Pop() (models.Card, bool) {
	old := *s
	if len(old) == 0 {
		return models.Card{}, false
	}
	c := old[len(old)-1]
	*s = old[:len(old)-1]
	return c, true
}

// Peek returns the top card without removing it.
func (s Stack) Peek() (models.Card, bool) {
	if len(s) == 0 {
		return models.Card{}, false
	}
	return s[len(s)-1], true
}

// PushBottom inserts a card at the bottom of the stack. Used when the first
// flipped discard is a wild and must be buried before the retry.
func (s *Stack) PushBottom(c models.Card) {
	*s = append(Stack{c}, *s...)
}

// Len returns the number of cards in the stack.
func (s Stack) Len() int {
	return len(s)
}

// Shuffle permutes the stack in place with an unbiased Fisher-Yates shuffle.
func (s Stack) Shuffle(r *rand.Rand) {
	r.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}

// BuildDeck composes the full 108-card deck: per color one 0 and two each of
// 1-9 (76 number cards), two each of skip/reverse/draw2 per color (24 action
// cards), plus four wilds and four wild draw-fours. Order is deterministic;
// callers shuffle.
func BuildDeck() Stack {
	deck := make(Stack, 0, 108)

	for _, color := range models.Colors {
		deck = append(deck, models.Card{Color: color, Kind: models.KindNumber, Value: 0})
		for v := 1; v <= 9; v++ {
			deck = append(deck, models.Card{Color: color, Kind: models.KindNumber, Value: v})
			deck = append(deck, models.Card{Color: color, Kind: models.KindNumber, Value: v})
		}
	}

	actions := []models.Kind{models.KindSkip, models.KindReverse, models.KindDraw2}
	for _, color := range models.Colors {
		for _, kind := range actions {
			deck = append(deck, models.Card{Color: color, Kind: kind})
			deck = append(deck, models.Card{Color: color, Kind: kind})
		}
	}

	for i := 0; i < 4; i++ {
		deck = append(deck, models.Card{Color: models.ColorWild, Kind: models.KindWild})
		deck = append(deck, models.Card{Color: models.ColorWild, Kind: models.KindWildDraw4})
	}

	return deck
}
