// internal/models/card.go
package models

import (
	"encoding/json"
	"fmt"
)

// Color is a card face color. Wilds carry ColorWild until played, at which
// point the chooser's color replaces it on the discard copy.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorWild   Color = "wild"
)

// Colors lists the four choosable face colors, in deck-build order.
var Colors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

// ParseColor maps a client-supplied color string onto a choosable Color.
// "wild" is not choosable and parses false.
func ParseColor(s string) (Color, bool) {
	switch Color(s) {
	case ColorRed, ColorBlue, ColorGreen, ColorYellow:
		return Color(s), true
	}
	return "", false
}

// Kind is a card face kind. The wire name is "type" for client compatibility.
type Kind string

const (
	KindNumber    Kind = "number"
	KindSkip      Kind = "skip"
	KindReverse   Kind = "reverse"
	KindDraw2     Kind = "draw2"
	KindWild      Kind = "wild"
	KindWildDraw4 Kind = "wild_draw4"
)

// Card is a single UNO card. Value is meaningful only for KindNumber and is
// omitted from the wire form for every other kind so a zero-valued action
// card never reads as the number 0.
type Card struct {
	Color Color `json:"color"`
	Kind  Kind  `json:"type"`
	Value int   `json:"value"`
}

// IsWild reports whether the card is a wild or wild draw-four.
func (c Card) IsWild() bool {
	return c.Kind == KindWild || c.Kind == KindWildDraw4
}

// Matches reports whether the card is legal on the given discard top. Wilds
// always play; otherwise the card's color or kind must match the top's. A
// kind match alone is sufficient, so any number card plays on any other
// number card.
func (c Card) Matches(top Card) bool {
	if c.IsWild() {
		return true
	}
	return c.Color == top.Color || c.Kind == top.Kind
}

// String renders the card for narration, e.g. "red 5" or "blue skip".
func (c Card) String() string {
	if c.Kind == KindNumber {
		return fmt.Sprintf("%s %d", c.Color, c.Value)
	}
	return fmt.Sprintf("%s %s", c.Color, c.Kind)
}

// MarshalJSON drops the value field for non-number kinds.
func (c Card) MarshalJSON() ([]byte, error) {
	if c.Kind == KindNumber {
		type full Card
		return json.Marshal(full(c))
	}
	return json.Marshal(struct {
		Color Color `json:"color"`
		Kind  Kind  `json:"type"`
	}{c.Color, c.Kind})
}
