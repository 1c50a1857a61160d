// Package condition implements the predicate evaluator shared by the
// permission checker and the workflow engine. Conditions gate which approval
// level an instance enters and whether a level applies when advancing.
package condition

import (
	"strconv"
	"strings"
)

// Operator enumerates the supported comparison operators.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpLt         Operator = "lt"
	OpGte        Operator = "gte"
	OpLte        Operator = "lte"
	OpBetween    Operator = "between"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpIn         Operator = "in"
	OpEmpty      Operator = "empty"
	OpNotEmpty   Operator = "not_empty"
)

// Known reports whether op is one of the supported operators. Evaluate treats
// unknown operators as permissive; callers that care should check first and
// log.
func (op Operator) Known() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpLt, OpGte, OpLte, OpBetween,
		OpContains, OpStartsWith, OpEndsWith, OpIn, OpEmpty, OpNotEmpty:
		return true
	}
	return false
}

// FieldKind tags what a condition inspects. KindAmount reads the distinguished
// monetary amount threaded separately from the entity payload; everything else
// resolves Field against the payload map.
type FieldKind string

const (
	KindAmount   FieldKind = "amount"
	KindCategory FieldKind = "category"
	KindAccount  FieldKind = "account"
	KindUser     FieldKind = "user"
	KindSchedule FieldKind = "schedule"
	KindCustom   FieldKind = "custom"
)

// Condition is a single typed predicate. SecondValue is only meaningful for
// OpBetween (inclusive upper bound).
type Condition struct {
	ID          string    `json:"id"`
	Kind        FieldKind `json:"kind"`
	Field       string    `json:"field,omitempty"`
	Operator    Operator  `json:"operator"`
	Value       any       `json:"value"`
	SecondValue any       `json:"second_value,omitempty"`
}

// Evaluate applies the condition against the payload and the distinguished
// amount. It is total: missing fields compare as empty values and unknown
// operators evaluate permissively to true.
func Evaluate(c Condition, payload map[string]any, amount *float64) bool {
	var value any
	switch c.Kind {
	case KindAmount:
		if amount != nil {
			value = *amount
		}
	default:
		key := c.Field
		if key == "" {
			key = string(c.Kind)
		}
		if payload != nil {
			value = payload[key]
		}
	}

	switch c.Operator {
	case OpEq:
		return equal(value, c.Value)
	case OpNe:
		return !equal(value, c.Value)
	case OpGt:
		return compareNumeric(value, c.Value, func(a, b float64) bool { return a > b })
	case OpLt:
		return compareNumeric(value, c.Value, func(a, b float64) bool { return a < b })
	case OpGte:
		return compareNumeric(value, c.Value, func(a, b float64) bool { return a >= b })
	case OpLte:
		return compareNumeric(value, c.Value, func(a, b float64) bool { return a <= b })
	case OpBetween:
		return compareNumeric(value, c.Value, func(a, b float64) bool { return a >= b }) &&
			compareNumeric(value, c.SecondValue, func(a, b float64) bool { return a <= b })
	case OpContains:
		return strings.Contains(lower(value), lower(c.Value))
	case OpStartsWith:
		return strings.HasPrefix(lower(value), lower(c.Value))
	case OpEndsWith:
		return strings.HasSuffix(lower(value), lower(c.Value))
	case OpIn:
		return contains(c.Value, value)
	case OpEmpty:
		return stringify(value) == ""
	case OpNotEmpty:
		return stringify(value) != ""
	default:
		// Unknown operators are permissive by design; see Known.
		return true
	}
}

// EvaluateAll reports whether every condition holds. An empty slice holds
// vacuously.
func EvaluateAll(conds []Condition, payload map[string]any, amount *float64) bool {
	for _, c := range conds {
		if !Evaluate(c, payload, amount) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return stringify(a) == stringify(b)
}

func compareNumeric(a, b any, cmp func(a, b float64) bool) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return false
	}
	return cmp(fa, fb)
}

func contains(list any, value any) bool {
	items, ok := list.([]any)
	if !ok {
		if strs, okS := list.([]string); okS {
			for _, s := range strs {
				if strings.EqualFold(s, stringify(value)) {
					return true
				}
			}
		}
		return false
	}
	for _, item := range items {
		if equal(item, value) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func lower(v any) string { return strings.ToLower(stringify(v)) }
