package condition

// Kind discriminates the two condition families.
type Kind string

const (
	KindAttribute Kind = "attribute"
	KindCard      Kind = "card"
)

// Attribute names recognized by attribute conditions.
const (
	AttrCardCount          = "card_count"
	AttrScoreEquals        = "score_equals"
	AttrLastPlayerStanding = "last_player_standing"
)

// Card condition properties.
const (
	CardTag  = "tag"
	CardName = "name"
)

// Comparison operators. "equals" and "matches" are aliases in authored data.
const (
	CmpEquals           = "equals"
	CmpMatches          = "matches"
	CmpDoesNotMatch     = "does_not_match"
	CmpGreaterThan      = "greater_than"
	CmpLessThan         = "less_than"
	CmpMatchesOneOrMore = "matches_one_or_more"
)

// Condition is a declarative predicate attached to cards (play conditions)
// and rule sets (win conditions). The editor emits a loose shape where Type
// is often absent; Normalize infers it once when a definition is loaded.
type Condition struct {
	Type          Kind   `json:"type,omitempty"`
	Attribute     string `json:"attribute,omitempty"`
	ConditionType string `json:"conditionType,omitempty"`
	Comparison    string `json:"comparison,omitempty"`
	Value         any    `json:"value,omitempty"`
}

// Normalize fills in the Type tag for conditions that were authored without
// one: a condition with an attribute field is an attribute condition,
// anything else is a card condition.
func Normalize(conds []Condition) []Condition {
	out := make([]Condition, len(conds))
	copy(out, conds)
	for i := range out {
		if out[i].Type != "" {
			continue
		}
		if out[i].Attribute != "" {
			out[i].Type = KindAttribute
		} else {
			out[i].Type = KindCard
		}
	}
	return out
}

// numberValue coerces the condition value to a float64. JSON decoding
// produces float64 for numbers; ints appear when conditions are built in Go.
func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
