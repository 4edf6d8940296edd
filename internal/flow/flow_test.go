package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEdges struct {
	deckEmpty  bool
	noPlayable bool
	winMet     bool
}

func (s stubEdges) DeckEmpty() bool       { return s.deckEmpty }
func (s stubEdges) NoPlayableCards() bool { return s.noPlayable }
func (s stubEdges) WinConditionMet() bool { return s.winMet }

func TestNewGraphInfersTypesFromLabels(t *testing.T) {
	g, err := NewGraph([]Step{
		{ID: "a", Label: "Start of turn", Next: "b"},
		{ID: "b", Label: "Draw a card", Next: "c"},
		{ID: "c", Label: "Play something", Next: "d"},
		{ID: "d", Label: "Check for winner", Next: "e"},
		{ID: "e", Label: "End turn", Next: "a"},
	})
	require.NoError(t, err)

	want := map[string]StepType{
		"a": StepStartTurn,
		"b": StepDrawCard,
		"c": StepPlayCard,
		"d": StepCheckWin,
		"e": StepEndTurn,
	}
	for id, typ := range want {
		step, ok := g.Step(id)
		require.True(t, ok)
		assert.Equal(t, typ, step.Type, "step %s", id)
	}
}

func TestNewGraphExplicitTypeWins(t *testing.T) {
	g, err := NewGraph([]Step{
		{ID: "a", Label: "draw draw draw", Type: StepPlayCard},
	})
	require.NoError(t, err)
	step, _ := g.Step("a")
	assert.Equal(t, StepPlayCard, step.Type)
}

func TestNewGraphRejectsDanglingReference(t *testing.T) {
	_, err := NewGraph([]Step{
		{ID: "a", Type: StepPlayCard, Next: "ghost"},
	})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewGraph([]Step{
		{ID: "a", Type: StepPlayCard, ConditionalNext: []ConditionalNext{
			{Condition: EdgeDeckEmpty, NextStepID: "ghost"},
		}},
	})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewGraphRejectsEmptyAndDuplicates(t *testing.T) {
	_, err := NewGraph(nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewGraph([]Step{
		{ID: "a", Type: StepPlayCard},
		{ID: "a", Type: StepDrawCard},
	})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestResolveNextEmptyConditionalReturnsNext(t *testing.T) {
	g, err := NewGraph([]Step{
		{ID: "a", Type: StepPlayCard, Next: "b"},
		{ID: "b", Type: StepEndTurn},
	})
	require.NoError(t, err)
	step, _ := g.Step("a")
	assert.Equal(t, "b", g.ResolveNext(step, stubEdges{}))

	terminal, _ := g.Step("b")
	assert.Equal(t, "", g.ResolveNext(terminal, stubEdges{}))
}

func TestResolveNextFirstMatchWins(t *testing.T) {
	g, err := NewGraph([]Step{
		{ID: "a", Type: StepPlayCard, Next: "fallback", ConditionalNext: []ConditionalNext{
			{Condition: EdgeDeckEmpty, NextStepID: "first"},
			{Condition: EdgeWinConditionMet, NextStepID: "second"},
		}},
		{ID: "first", Type: StepEndTurn},
		{ID: "second", Type: StepEndTurn},
		{ID: "fallback", Type: StepEndTurn},
	})
	require.NoError(t, err)
	step, _ := g.Step("a")

	// Both edges hold; list order is authoritative.
	assert.Equal(t, "first", g.ResolveNext(step, stubEdges{deckEmpty: true, winMet: true}))
	// Only the later edge holds.
	assert.Equal(t, "second", g.ResolveNext(step, stubEdges{winMet: true}))
	// Neither holds: fall back to next.
	assert.Equal(t, "fallback", g.ResolveNext(step, stubEdges{}))
}

func TestResolveNextUnknownConditionIsFalse(t *testing.T) {
	g, err := NewGraph([]Step{
		{ID: "a", Type: StepPlayCard, Next: "b", ConditionalNext: []ConditionalNext{
			{Condition: "moon_is_full", NextStepID: "b"},
		}},
		{ID: "b", Type: StepEndTurn},
	})
	require.NoError(t, err)
	step, _ := g.Step("a")
	assert.Equal(t, "b", g.ResolveNext(step, stubEdges{deckEmpty: true, noPlayable: true, winMet: true}))
}

func TestStartStepID(t *testing.T) {
	g, err := NewGraph([]Step{
		{ID: "x", Type: StepPlayCard, Next: "y"},
		{ID: "y", Type: StepStartTurn, Next: "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "y", g.StartStepID())

	noStart, err := NewGraph([]Step{{ID: "only", Type: StepPlayCard}})
	require.NoError(t, err)
	assert.Equal(t, "only", noStart.StartStepID())
}

func TestGraphJSONRoundTrip(t *testing.T) {
	g, err := NewGraph([]Step{
		{ID: "a", Label: "draw", Next: "b"},
		{ID: "b", Type: StepEndTurn, ConditionalNext: []ConditionalNext{
			{Condition: EdgeNoPlayableCards, NextStepID: "a"},
		}},
	})
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var back Graph
	require.NoError(t, json.Unmarshal(data, &back))
	step, ok := back.Step("a")
	require.True(t, ok)
	assert.Equal(t, StepDrawCard, step.Type, "inferred type survives the round trip")

	var bad Graph
	err = json.Unmarshal([]byte(`[{"id":"a","next":"ghost"}]`), &bad)
	assert.ErrorIs(t, err, ErrConfiguration, "validation re-runs on load")
}
