package condition

import "go.uber.org/zap"

// Context carries the live session state a condition closes over. Player
// identity is positional: PlayerID and EliminatedPlayerIDs hold stringified
// player indexes.
type Context struct {
	HandSize            int
	Score               int
	PlayerID            string
	TotalPlayers        int
	EliminatedPlayerIDs []string
	LastPlayedTags      []string
	LastPlayedName      string
	CardTags            []string
	CardName            string
}

// Evaluator evaluates condition lists against a context. Unknown types,
// attributes, and comparisons log a warning and evaluate false, so a
// malformed rule makes an action illegal instead of crashing the session.
type Evaluator struct {
	log *zap.Logger
}

func NewEvaluator(log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{log: log}
}

// Evaluate reports whether every condition in the list holds. An empty list
// is vacuously true.
func (e *Evaluator) Evaluate(conds []Condition, ctx Context) bool {
	for _, c := range conds {
		if !e.evaluateOne(c, ctx) {
			return false
		}
	}
	return true
}

// EvaluateWin is Evaluate restricted to attribute conditions; card
// conditions are skipped rather than vetoing, since they describe play
// legality, not victory.
func (e *Evaluator) EvaluateWin(conds []Condition, ctx Context) bool {
	for _, c := range conds {
		if c.Type != KindAttribute {
			continue
		}
		if !e.evaluateAttribute(c, ctx) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(c Condition, ctx Context) bool {
	switch c.Type {
	case KindAttribute:
		return e.evaluateAttribute(c, ctx)
	case KindCard:
		return e.evaluateCard(c, ctx)
	default:
		e.log.Warn("unknown condition type", zap.String("type", string(c.Type)))
		return false
	}
}

func (e *Evaluator) evaluateAttribute(c Condition, ctx Context) bool {
	switch c.Attribute {
	case AttrCardCount:
		return e.compareNumber(float64(ctx.HandSize), c)
	case AttrScoreEquals:
		// The attribute names the operand; the comparison still applies.
		return e.compareNumber(float64(ctx.Score), c)
	case AttrLastPlayerStanding:
		return lastPlayerStanding(ctx)
	default:
		e.log.Warn("unknown condition attribute", zap.String("attribute", c.Attribute))
		return false
	}
}

func lastPlayerStanding(ctx Context) bool {
	for _, id := range ctx.EliminatedPlayerIDs {
		if id == ctx.PlayerID {
			return false
		}
	}
	return ctx.TotalPlayers-len(ctx.EliminatedPlayerIDs) == 1
}

func (e *Evaluator) compareNumber(actual float64, c Condition) bool {
	want, ok := numberValue(c.Value)
	if !ok {
		e.log.Warn("condition value is not a number", zap.Any("value", c.Value))
		return false
	}
	switch c.Comparison {
	case CmpEquals, CmpMatches:
		return actual == want
	case CmpDoesNotMatch:
		return actual != want
	case CmpGreaterThan:
		return actual > want
	case CmpLessThan:
		return actual < want
	case CmpMatchesOneOrMore:
		return actual >= want
	default:
		e.log.Warn("unknown comparison", zap.String("comparison", c.Comparison))
		return false
	}
}

// evaluateCard compares the candidate card against the previously played
// card. With no prior play there is nothing to compare against, so the
// condition is satisfied; this bootstraps the first move of a round.
func (e *Evaluator) evaluateCard(c Condition, ctx Context) bool {
	switch c.ConditionType {
	case CardTag:
		if len(ctx.LastPlayedTags) == 0 {
			return true
		}
		return e.compareTags(c, ctx)
	case CardName:
		if ctx.LastPlayedName == "" {
			return true
		}
		return e.compareName(c, ctx)
	default:
		e.log.Warn("unknown card condition", zap.String("conditionType", c.ConditionType))
		return false
	}
}

func (e *Evaluator) compareTags(c Condition, ctx Context) bool {
	shared := 0
	for _, tag := range ctx.CardTags {
		for _, last := range ctx.LastPlayedTags {
			if tag == last {
				shared++
				break
			}
		}
	}
	switch c.Comparison {
	case CmpEquals, CmpMatches, CmpMatchesOneOrMore:
		return shared >= 1
	case CmpDoesNotMatch:
		return shared == 0
	case CmpGreaterThan:
		want, ok := numberValue(c.Value)
		return ok && float64(shared) > want
	case CmpLessThan:
		want, ok := numberValue(c.Value)
		return ok && float64(shared) < want
	default:
		e.log.Warn("unknown comparison", zap.String("comparison", c.Comparison))
		return false
	}
}

func (e *Evaluator) compareName(c Condition, ctx Context) bool {
	switch c.Comparison {
	case CmpEquals, CmpMatches:
		return ctx.CardName == ctx.LastPlayedName
	case CmpDoesNotMatch:
		return ctx.CardName != ctx.LastPlayedName
	default:
		e.log.Warn("unknown comparison", zap.String("comparison", c.Comparison))
		return false
	}
}
