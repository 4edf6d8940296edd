package engine

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"tabletop/internal/condition"
	"tabletop/internal/flow"
)

// Engine applies player actions to sessions and drains automatic flow
// steps. It holds no per-session state; callers serialize access to each
// Session.
type Engine struct {
	log  *zap.Logger
	eval *condition.Evaluator
}

func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:  log,
		eval: condition.NewEvaluator(log),
	}
}

// NewSession builds a live session from a published definition: shuffles
// the deck, deals opening hands, normalizes conditions, and drains the flow
// up to the first interactive step.
func (e *Engine) NewSession(id, gameID string, def Definition, playerNames []string) (*Session, error) {
	graph, err := flow.NewGraph(def.Flow)
	if err != nil {
		return nil, err
	}
	if len(playerNames) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 players", ErrInvalidPlayer)
	}

	deck := shuffled(def.Deck)
	for i := range deck {
		deck[i].PlayConditions = condition.Normalize(deck[i].PlayConditions)
	}

	handSize := def.RuleSet.HandSize
	if handSize <= 0 {
		handSize = defaultHandSize
	}
	players := make([]Player, len(playerNames))
	for i, name := range playerNames {
		players[i] = Player{Name: name, Hand: []Card{}}
	}
	for n := 0; n < handSize; n++ {
		for i := range players {
			if len(deck) == 0 {
				break
			}
			players[i].Hand = append(players[i].Hand, deck[0])
			deck = deck[1:]
		}
	}

	ruleSet := def.RuleSet
	ruleSet.WinConditions = condition.Normalize(ruleSet.WinConditions)

	s := &Session{
		ID:            id,
		GameID:        gameID,
		Players:       players,
		Deck:          deck,
		DiscardPile:   []Card{},
		PlayedCards:   []Card{},
		Direction:     1,
		Canvas:        def.Canvas,
		RuleSet:       ruleSet,
		Flow:          graph,
		CurrentStepID: graph.StartStepID(),
		WinnerIndex:   -1,
		Logs:          []string{},
	}
	if err := e.drainAutoSteps(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply processes one player action: enforces turn ownership and step
// legality, mutates the session, then drains automatic steps until the next
// interactive step or a terminal win. Callers must hold the session's lock.
func (e *Engine) Apply(s *Session, playerIndex int, act Action) error {
	if s.Finished() {
		return ErrGameOver
	}
	if playerIndex < 0 || playerIndex >= len(s.Players) {
		return fmt.Errorf("%w: %d", ErrInvalidPlayer, playerIndex)
	}
	if playerIndex != s.Turn {
		return ErrNotYourTurn
	}
	switch act.Type {
	case ActionDrawCard, ActionPlayCard, ActionEndTurn, ActionReverseOrder, ActionSkipNextPlayer:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, act.Type)
	}
	if s.CurrentStepID == "" {
		return fmt.Errorf("%w: flow is terminal", ErrStepMismatch)
	}
	step, ok := s.Flow.Step(s.CurrentStepID)
	if !ok {
		return fmt.Errorf("%w: current step %q not in flow", flow.ErrConfiguration, s.CurrentStepID)
	}
	if ActionType(step.Type) != act.Type {
		return fmt.Errorf("%w: step %q expects %q", ErrStepMismatch, step.ID, step.Type)
	}

	if err := e.applyEffect(s, act); err != nil {
		return err
	}

	s.CurrentStepID = s.Flow.ResolveNext(step, e.edges(s))
	return e.drainAutoSteps(s)
}

func (e *Engine) applyEffect(s *Session, act Action) error {
	switch act.Type {
	case ActionPlayCard:
		return e.playCard(s, act)
	case ActionDrawCard:
		if len(s.Deck) == 0 {
			return ErrDeckEmpty
		}
		p := s.currentPlayer()
		p.Hand = append(p.Hand, s.Deck[0])
		s.Deck = s.Deck[1:]
	case ActionEndTurn:
		s.advanceTurn(s.Direction)
		s.logf("turn passes to %s", s.currentPlayer().Name)
	case ActionReverseOrder:
		s.Direction *= -1
	case ActionSkipNextPlayer:
		s.advanceTurn(2 * s.Direction)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, act.Type)
	}
	return nil
}

func (e *Engine) playCard(s *Session, act Action) error {
	p := s.currentPlayer()
	card, rest, found := removeCard(p.Hand, act.CardID)
	if !found {
		return fmt.Errorf("%w: %q", ErrCardNotInHand, act.CardID)
	}
	if !e.eval.Evaluate(card.PlayConditions, e.contextFor(s, s.Turn, &card)) {
		return fmt.Errorf("%w: card %q", ErrConditionsNotMet, card.ID)
	}
	p.Hand = rest
	if card.Effect == EffectDiscard {
		s.DiscardPile = append(s.DiscardPile, card)
	} else {
		s.PlayedCards = insertCard(s.PlayedCards, card, act.Position)
	}
	s.LastPlayedTags = card.Tags
	s.LastPlayedName = card.Name
	if card.Effect == EffectReverse {
		s.Direction *= -1
		s.logf("%s reversed the turn order", p.Name)
	}
	return nil
}

// maxAutoSteps bounds a single drain so a cyclic automatic subgraph
// surfaces as a configuration error instead of a hung session.
const maxAutoSteps = 64

// drainAutoSteps executes automatic steps (start_turn, check_win, and
// untyped steps) until an interactive step is reached, the flow ends,
// or a win is recorded. Safe to invoke after every action, including ones
// that did not change the step.
func (e *Engine) drainAutoSteps(s *Session) error {
	for i := 0; ; i++ {
		if s.CurrentStepID == "" {
			return nil
		}
		if i >= maxAutoSteps {
			return fmt.Errorf("%w: automatic steps did not settle after %d advances", flow.ErrConfiguration, maxAutoSteps)
		}
		step, ok := s.Flow.Step(s.CurrentStepID)
		if !ok {
			return fmt.Errorf("%w: current step %q not in flow", flow.ErrConfiguration, s.CurrentStepID)
		}
		if step.Type.Interactive() {
			return nil
		}
		switch step.Type {
		case flow.StepStartTurn:
			s.logf("%s's turn begins", s.currentPlayer().Name)
		case flow.StepCheckWin:
			if e.checkWin(s) {
				s.WinnerIndex = s.Turn
				s.logf("%s wins", s.currentPlayer().Name)
				return nil
			}
		}
		s.CurrentStepID = s.Flow.ResolveNext(step, e.edges(s))
	}
}

// checkWin reports whether the current player has won: no card in hand is
// playable and the rule set's win conditions hold.
func (e *Engine) checkWin(s *Session) bool {
	if e.hasPlayableCard(s, s.Turn) {
		return false
	}
	return e.eval.EvaluateWin(s.RuleSet.WinConditions, e.contextFor(s, s.Turn, nil))
}

func (e *Engine) hasPlayableCard(s *Session, playerIndex int) bool {
	for i := range s.Players[playerIndex].Hand {
		card := &s.Players[playerIndex].Hand[i]
		if e.eval.Evaluate(card.PlayConditions, e.contextFor(s, playerIndex, card)) {
			return true
		}
	}
	return false
}

// contextFor builds the evaluation context for one player, optionally with
// a candidate card. Player identity is positional.
func (e *Engine) contextFor(s *Session, playerIndex int, card *Card) condition.Context {
	var eliminated []string
	for i := range s.Players {
		if s.Players[i].Eliminated {
			eliminated = append(eliminated, strconv.Itoa(i))
		}
	}
	ctx := condition.Context{
		HandSize:            len(s.Players[playerIndex].Hand),
		Score:               s.Players[playerIndex].Score,
		PlayerID:            strconv.Itoa(playerIndex),
		TotalPlayers:        len(s.Players),
		EliminatedPlayerIDs: eliminated,
		LastPlayedTags:      s.LastPlayedTags,
		LastPlayedName:      s.LastPlayedName,
	}
	if card != nil {
		ctx.CardTags = card.Tags
		ctx.CardName = card.Name
	}
	return ctx
}

// edges adapts a session to the flow resolver's closed edge-condition set.
type edgeContext struct {
	e *Engine
	s *Session
}

func (e *Engine) edges(s *Session) edgeContext {
	return edgeContext{e: e, s: s}
}

func (c edgeContext) DeckEmpty() bool {
	return len(c.s.Deck) == 0
}

func (c edgeContext) NoPlayableCards() bool {
	return !c.e.hasPlayableCard(c.s, c.s.Turn)
}

func (c edgeContext) WinConditionMet() bool {
	return c.e.eval.EvaluateWin(c.s.RuleSet.WinConditions, c.e.contextFor(c.s, c.s.Turn, nil))
}
