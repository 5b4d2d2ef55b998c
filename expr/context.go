package expr

// EvaluationContext supplies variable bindings to an evaluation. It is
// cheap to clone because lambda bodies run against a shallow copy with one
// parameter shadowed, never a full deep copy of $input/$outputs.
type EvaluationContext struct {
	vars map[string]any
}

// NewContext builds an evaluation context from the given variable bindings.
// Callers conventionally set "$input" and "$outputs" here; workflow
// variables are merged in alongside them.
func NewContext(vars map[string]any) *EvaluationContext {
	if vars == nil {
		vars = map[string]any{}
	}
	return &EvaluationContext{vars: vars}
}

// Get returns the bound value for name and whether it was found.
func (c *EvaluationContext) Get(name string) (any, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// With returns a new context identical to c but with name bound to value.
// Used to bind lambda parameters and the reduce accumulator without
// mutating the parent context (so sibling elements in a map/filter see the
// original bindings).
func (c *EvaluationContext) With(name string, value any) *EvaluationContext {
	next := make(map[string]any, len(c.vars)+1)
	for k, v := range c.vars {
		next[k] = v
	}
	next[name] = value
	return &EvaluationContext{vars: next}
}
