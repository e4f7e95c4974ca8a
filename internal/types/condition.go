package types

// Operator is a condition comparison operator. Values outside the known set
// are kept as-is so evaluators can apply their fail-open policy.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpContains  Operator = "contains"
	OpExists    Operator = "exists"
)

// ConditionRule shows its owner when the value under DependsOn satisfies
// Operator against ShowWhen. An empty Operator means equals.
type ConditionRule struct {
	DependsOn string   `json:"dependsOn"`
	Operator  Operator `json:"operator,omitempty"`
	ShowWhen  any      `json:"showWhen,omitempty"`
}

// FormValues is a flat, string-keyed snapshot of the form state, including
// namespaced repeater keys and mirror keys.
type FormValues map[string]any

// Get returns the value stored under key.
func (v FormValues) Get(key string) (any, bool) {
	if v == nil {
		return nil, false
	}
	val, ok := v[key]
	return val, ok
}

// Set stores value under key. It lets a FormValues act as the setter of the
// mirror synchronizer.
func (v FormValues) Set(key string, value any) {
	v[key] = value
}

// Clone returns a shallow copy of v.
func (v FormValues) Clone() FormValues {
	out := make(FormValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
