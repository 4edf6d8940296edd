package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration marks a flow graph that cannot drive a session: a step
// referencing an id that does not exist, an empty graph, or an automatic
// cycle that never reaches an interactive step.
var ErrConfiguration = errors.New("flow configuration error")

// StepType identifies what a step does. Interactive types await a player
// action; start_turn and check_win execute automatically.
type StepType string

const (
	StepStartTurn      StepType = "start_turn"
	StepDrawCard       StepType = "draw_card"
	StepPlayCard       StepType = "play_card"
	StepEndTurn        StepType = "end_turn"
	StepReverseOrder   StepType = "reverse_order"
	StepSkipNextPlayer StepType = "skip_next_player"
	StepCheckWin       StepType = "check_win"
)

// Interactive reports whether t awaits a player action. start_turn and
// check_win execute automatically; an empty type (a step whose label matched
// no keyword) counts as automatic and is skipped.
func (t StepType) Interactive() bool {
	switch t {
	case StepDrawCard, StepPlayCard, StepEndTurn, StepReverseOrder, StepSkipNextPlayer:
		return true
	}
	return false
}

// Edge conditions recognized by ResolveNext. The dispatch set is closed;
// unrecognized names evaluate false.
const (
	EdgeDeckEmpty       = "deck_empty"
	EdgeNoPlayableCards = "no_playable_cards"
	EdgeWinConditionMet = "win_condition_met"
)

// ConditionalNext is one conditional edge out of a step. Order in the list
// is authoritative: the first satisfied edge wins.
type ConditionalNext struct {
	Condition  string `json:"condition"`
	NextStepID string `json:"nextStepId"`
}

// Step is one node of the turn's control-flow graph.
type Step struct {
	ID              string            `json:"id"`
	Label           string            `json:"label,omitempty"`
	Type            StepType          `json:"type,omitempty"`
	Next            string            `json:"next,omitempty"`
	ConditionalNext []ConditionalNext `json:"conditionalNext,omitempty"`
}

// inferType derives a step type from a free-text label. Runs once at load
// so graphs authored without explicit types still function; evaluation
// afterwards only ever sees the normalized type.
func inferType(label string) StepType {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "start"):
		return StepStartTurn
	case strings.Contains(l, "draw"):
		return StepDrawCard
	case strings.Contains(l, "play"):
		return StepPlayCard
	case strings.Contains(l, "reverse"):
		return StepReverseOrder
	case strings.Contains(l, "skip"):
		return StepSkipNextPlayer
	case strings.Contains(l, "check"), strings.Contains(l, "win"):
		return StepCheckWin
	case strings.Contains(l, "end"):
		return StepEndTurn
	}
	return ""
}

// Graph is a validated, fully-typed flow graph.
type Graph struct {
	steps []Step
	index map[string]int
}

// NewGraph normalizes step types and validates every edge target. A
// dangling reference is a fatal configuration error, surfaced here rather
// than as a stall mid-session.
func NewGraph(steps []Step) (*Graph, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: empty flow graph", ErrConfiguration)
	}
	g := &Graph{
		steps: make([]Step, len(steps)),
		index: make(map[string]int, len(steps)),
	}
	copy(g.steps, steps)
	for i := range g.steps {
		s := &g.steps[i]
		if s.ID == "" {
			return nil, fmt.Errorf("%w: step %d has no id", ErrConfiguration, i)
		}
		if _, dup := g.index[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate step id %q", ErrConfiguration, s.ID)
		}
		g.index[s.ID] = i
		if s.Type == "" {
			s.Type = inferType(s.Label)
		}
	}
	for _, s := range g.steps {
		if s.Next != "" {
			if _, ok := g.index[s.Next]; !ok {
				return nil, fmt.Errorf("%w: step %q references missing step %q", ErrConfiguration, s.ID, s.Next)
			}
		}
		for _, cn := range s.ConditionalNext {
			if _, ok := g.index[cn.NextStepID]; !ok {
				return nil, fmt.Errorf("%w: step %q references missing step %q", ErrConfiguration, s.ID, cn.NextStepID)
			}
		}
	}
	return g, nil
}

// Step returns the step with the given id.
func (g *Graph) Step(id string) (*Step, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return &g.steps[i], true
}

// StartStepID returns the id of the first start_turn step, falling back to
// the first step in the list.
func (g *Graph) StartStepID() string {
	for _, s := range g.steps {
		if s.Type == StepStartTurn {
			return s.ID
		}
	}
	return g.steps[0].ID
}

// Steps returns the normalized step list in source order.
func (g *Graph) Steps() []Step {
	return g.steps
}

// EdgeContext answers the closed set of edge-condition queries against live
// session state.
type EdgeContext interface {
	DeckEmpty() bool
	NoPlayableCards() bool
	WinConditionMet() bool
}

// ResolveNext returns the id of the step following step: the first
// conditional edge whose condition holds, else the unconditional Next, else
// "" at a terminal node.
func (g *Graph) ResolveNext(step *Step, ctx EdgeContext) string {
	for _, cn := range step.ConditionalNext {
		if edgeHolds(cn.Condition, ctx) {
			return cn.NextStepID
		}
	}
	return step.Next
}

func edgeHolds(name string, ctx EdgeContext) bool {
	switch name {
	case EdgeDeckEmpty:
		return ctx.DeckEmpty()
	case EdgeNoPlayableCards:
		return ctx.NoPlayableCards()
	case EdgeWinConditionMet:
		return ctx.WinConditionMet()
	}
	return false
}

// MarshalJSON serializes the graph as its step list, so a session's flow
// round-trips through the document store as plain JSON.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.steps)
}

// UnmarshalJSON rebuilds (and re-validates) the graph from a step list.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var steps []Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return err
	}
	ng, err := NewGraph(steps)
	if err != nil {
		return err
	}
	*g = *ng
	return nil
}
