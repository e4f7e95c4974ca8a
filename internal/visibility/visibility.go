// Package visibility evaluates the declarative conditions attached to
// sections and fields against the current form values.
//
// Unknown operators are treated as satisfied, for sections and fields
// alike. Callers that want to surface bad form definitions can check
// KnownOperator.
package visibility

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// KnownOperator reports whether op is understood by Section.
func KnownOperator(op types.Operator) bool {
	switch op {
	case "", types.OpEquals, types.OpNotEquals, types.OpContains, types.OpExists:
		return true
	}
	return false
}

// Field reports whether a field-level condition holds. Only equals and
// not_equals are field operators; anything else passes.
func Field(rule types.ConditionRule, values types.FormValues) bool {
	if rule.DependsOn == "" {
		return true
	}
	actual, _ := values.Get(rule.DependsOn)
	switch rule.Operator {
	case "", types.OpEquals:
		return Equal(actual, rule.ShowWhen)
	case types.OpNotEquals:
		return !Equal(actual, rule.ShowWhen)
	default:
		return true
	}
}

// Fields reports whether every rule holds.
func Fields(rules []types.ConditionRule, values types.FormValues) bool {
	for _, r := range rules {
		if !Field(r, values) {
			return false
		}
	}
	return true
}

// Section reports whether a section condition holds. A nil rule or a rule
// without dependsOn is always visible.
func Section(rule *types.ConditionRule, values types.FormValues) bool {
	if rule == nil || rule.DependsOn == "" {
		return true
	}
	actual, _ := values.Get(rule.DependsOn)
	switch rule.Operator {
	case "", types.OpEquals:
		return Equal(actual, rule.ShowWhen)
	case types.OpNotEquals:
		return !Equal(actual, rule.ShowWhen)
	case types.OpContains:
		return strings.Contains(Stringify(actual), Stringify(rule.ShowWhen))
	case types.OpExists:
		return Exists(actual)
	default:
		return true
	}
}

// Exists reports whether v is set: not nil and not the empty string.
func Exists(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// Equal compares two form values. Numbers compare numerically whatever
// their Go type; other values must have the same type and value.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return Stringify(a) == Stringify(b)
	}
}

// Stringify renders v the way loose comparisons see it.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
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
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
