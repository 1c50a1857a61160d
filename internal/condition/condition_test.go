package condition_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"chronos/internal/condition"
)

type EvaluateSuite struct {
	suite.Suite
}

func TestEvaluateSuite(t *testing.T) {
	suite.Run(t, new(EvaluateSuite))
}

func fptr(f float64) *float64 { return &f }

func (s *EvaluateSuite) TestAmountOperators() {
	tests := []struct {
		name   string
		cond   condition.Condition
		amount *float64
		want   bool
	}{
		{
			name:   "gt holds strictly above",
			cond:   condition.Condition{Kind: condition.KindAmount, Operator: condition.OpGt, Value: 10000.0},
			amount: fptr(10001),
			want:   true,
		},
		{
			name:   "gt fails at bound",
			cond:   condition.Condition{Kind: condition.KindAmount, Operator: condition.OpGt, Value: 10000.0},
			amount: fptr(10000),
			want:   false,
		},
		{
			name:   "gte holds at bound",
			cond:   condition.Condition{Kind: condition.KindAmount, Operator: condition.OpGte, Value: 50000.0},
			amount: fptr(50000),
			want:   true,
		},
		{
			name:   "between is inclusive on both ends",
			cond:   condition.Condition{Kind: condition.KindAmount, Operator: condition.OpBetween, Value: 10000.0, SecondValue: 50000.0},
			amount: fptr(50000),
			want:   true,
		},
		{
			name:   "between rejects outside range",
			cond:   condition.Condition{Kind: condition.KindAmount, Operator: condition.OpBetween, Value: 10000.0, SecondValue: 50000.0},
			amount: fptr(50001),
			want:   false,
		},
		{
			name:   "lt fails with nil amount",
			cond:   condition.Condition{Kind: condition.KindAmount, Operator: condition.OpLt, Value: 100.0},
			amount: nil,
			want:   false,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, condition.Evaluate(tt.cond, nil, tt.amount))
		})
	}
}

func (s *EvaluateSuite) TestStringOperators() {
	payload := map[string]any{
		"categoria": "Transferencia",
		"cuenta":    "boveda_monte",
	}

	tests := []struct {
		name string
		cond condition.Condition
		want bool
	}{
		{
			name: "eq is case insensitive",
			cond: condition.Condition{Kind: condition.KindCategory, Field: "categoria", Operator: condition.OpEq, Value: "transferencia"},
			want: true,
		},
		{
			name: "ne negates eq",
			cond: condition.Condition{Kind: condition.KindCategory, Field: "categoria", Operator: condition.OpNe, Value: "Transferencia"},
			want: false,
		},
		{
			name: "contains matches substring",
			cond: condition.Condition{Kind: condition.KindAccount, Field: "cuenta", Operator: condition.OpContains, Value: "MONTE"},
			want: true,
		},
		{
			name: "starts_with",
			cond: condition.Condition{Kind: condition.KindAccount, Field: "cuenta", Operator: condition.OpStartsWith, Value: "boveda"},
			want: true,
		},
		{
			name: "ends_with rejects mismatch",
			cond: condition.Condition{Kind: condition.KindAccount, Field: "cuenta", Operator: condition.OpEndsWith, Value: "usa"},
			want: false,
		},
		{
			name: "in matches any element",
			cond: condition.Condition{Kind: condition.KindAccount, Field: "cuenta", Operator: condition.OpIn, Value: []any{"profit", "boveda_monte"}},
			want: true,
		},
		{
			name: "in with string slice",
			cond: condition.Condition{Kind: condition.KindAccount, Field: "cuenta", Operator: condition.OpIn, Value: []string{"profit", "leftie"}},
			want: false,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, condition.Evaluate(tt.cond, payload, nil))
		})
	}
}

func (s *EvaluateSuite) TestEmptiness() {
	payload := map[string]any{"notas": ""}

	s.Run("empty holds for blank string", func() {
		c := condition.Condition{Kind: condition.KindCustom, Field: "notas", Operator: condition.OpEmpty}
		s.True(condition.Evaluate(c, payload, nil))
	})

	s.Run("empty holds for missing field", func() {
		c := condition.Condition{Kind: condition.KindCustom, Field: "referencia", Operator: condition.OpEmpty}
		s.True(condition.Evaluate(c, payload, nil))
	})

	s.Run("not_empty fails for missing field", func() {
		c := condition.Condition{Kind: condition.KindCustom, Field: "referencia", Operator: condition.OpNotEmpty}
		s.False(condition.Evaluate(c, payload, nil))
	})
}

func (s *EvaluateSuite) TestUnknownOperatorIsPermissive() {
	c := condition.Condition{Kind: condition.KindAmount, Operator: "matches_regex", Value: ".*"}
	s.True(condition.Evaluate(c, nil, fptr(1)))
	s.False(condition.Operator("matches_regex").Known())
	s.True(condition.OpBetween.Known())
}

func (s *EvaluateSuite) TestNumericCoercion() {
	payload := map[string]any{"intentos": "3"}
	c := condition.Condition{Kind: condition.KindCustom, Field: "intentos", Operator: condition.OpGte, Value: 3}
	s.True(condition.Evaluate(c, payload, nil))
}

func (s *EvaluateSuite) TestEvaluateAll() {
	conds := []condition.Condition{
		{Kind: condition.KindAmount, Operator: condition.OpGte, Value: 10000.0},
		{Kind: condition.KindAmount, Operator: condition.OpLte, Value: 50000.0},
	}

	s.Run("all hold", func() {
		s.True(condition.EvaluateAll(conds, nil, fptr(25000)))
	})

	s.Run("one fails", func() {
		s.False(condition.EvaluateAll(conds, nil, fptr(60000)))
	})

	s.Run("empty set holds vacuously", func() {
		s.True(condition.EvaluateAll(nil, nil, nil))
	})
}
