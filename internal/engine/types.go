package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"tabletop/internal/condition"
	"tabletop/internal/flow"
)

// Card effects with built-in behavior on play.
const (
	EffectDiscard = "discard"
	EffectReverse = "reverse"
)

// Card is one card instance. A card belongs to exactly one of a player's
// hand, the deck, the discard pile, or the played cards at any time.
type Card struct {
	ID             string                `json:"id"`
	Name           string                `json:"name,omitempty"`
	Tags           []string              `json:"tags,omitempty"`
	Effect         string                `json:"effect,omitempty"`
	PlayConditions []condition.Condition `json:"playConditions,omitempty"`
}

// Player is one seat in a session. Turn ownership is positional: a player
// is identified by index, not by user id.
type Player struct {
	Name       string `json:"name"`
	UserID     string `json:"userId,omitempty"`
	Hand       []Card `json:"hand"`
	Eliminated bool   `json:"eliminated"`
	Score      int    `json:"score"`
}

// RuleSet holds the data-driven rules of a published game.
type RuleSet struct {
	HandSize      int                   `json:"handSize,omitempty"`
	WinConditions []condition.Condition `json:"winConditions,omitempty"`
}

const defaultHandSize = 5

// Definition is a published game as produced by the editor: an opaque
// canvas, a rule set, a flow graph, and a deck.
type Definition struct {
	Name    string          `json:"name"`
	RuleSet RuleSet         `json:"ruleSet"`
	Flow    []flow.Step     `json:"gameFlow"`
	Deck    []Card          `json:"deck"`
	Canvas  json.RawMessage `json:"canvas,omitempty"`
}

// Validate checks that the definition can drive a session.
func (d *Definition) Validate() error {
	if len(d.Deck) == 0 {
		return fmt.Errorf("%w: definition has no deck", flow.ErrConfiguration)
	}
	_, err := flow.NewGraph(d.Flow)
	return err
}

// Session is the aggregate root for one live game. It is owned exclusively
// by the action processor for the duration of one action; see the session
// manager for the locking discipline.
type Session struct {
	ID             string          `json:"id"`
	GameID         string          `json:"gameId"`
	Players        []Player        `json:"players"`
	Deck           []Card          `json:"deck"`
	DiscardPile    []Card          `json:"discardPile"`
	PlayedCards    []Card          `json:"playedCards"`
	Turn           int             `json:"turn"`
	Direction      int             `json:"direction"`
	Canvas         json.RawMessage `json:"canvas,omitempty"`
	RuleSet        RuleSet         `json:"ruleSet"`
	Flow           *flow.Graph     `json:"gameFlow"`
	CurrentStepID  string          `json:"currentStepId"`
	LastPlayedTags []string        `json:"lastPlayedTags,omitempty"`
	LastPlayedName string          `json:"lastPlayedName,omitempty"`
	WinnerIndex    int             `json:"winnerIndex"`
	Logs           []string        `json:"logs"`
}

// Finished reports whether a win has been recorded.
func (s *Session) Finished() bool {
	return s.WinnerIndex >= 0
}

func (s *Session) currentPlayer() *Player {
	return &s.Players[s.Turn]
}

// advanceTurn moves the turn pointer by offset seats, wrapping at either
// boundary.
func (s *Session) advanceTurn(offset int) {
	n := len(s.Players)
	s.Turn = ((s.Turn+offset)%n + n) % n
}

func (s *Session) logf(format string, args ...any) {
	s.Logs = append(s.Logs, fmt.Sprintf(format, args...))
}

// ActionType names a player-submitted action. Values match the interactive
// step types, since the step graph is the sole source of legal actions.
type ActionType string

const (
	ActionDrawCard       ActionType = "draw_card"
	ActionPlayCard       ActionType = "play_card"
	ActionEndTurn        ActionType = "end_turn"
	ActionReverseOrder   ActionType = "reverse_order"
	ActionSkipNextPlayer ActionType = "skip_next_player"
)

// Action is one player-submitted move.
type Action struct {
	Type     ActionType `json:"type"`
	CardID   string     `json:"cardId,omitempty"`
	Position int        `json:"position,omitempty"`
}

// shuffled returns a shuffled copy of the deck.
func shuffled(deck []Card) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// removeCard removes the card with the given id from hand, returning the
// card and the remaining hand.
func removeCard(hand []Card, id string) (Card, []Card, bool) {
	for i, c := range hand {
		if c.ID == id {
			rest := make([]Card, 0, len(hand)-1)
			rest = append(rest, hand[:i]...)
			rest = append(rest, hand[i+1:]...)
			return c, rest, true
		}
	}
	return Card{}, hand, false
}

// insertCard inserts c into pile at pos, clamped to the pile bounds.
func insertCard(pile []Card, c Card, pos int) []Card {
	if pos < 0 {
		pos = 0
	}
	if pos > len(pile) {
		pos = len(pile)
	}
	pile = append(pile, Card{})
	copy(pile[pos+1:], pile[pos:])
	pile[pos] = c
	return pile
}
