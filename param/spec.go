package param

// Kind tags how a parameter's raw definition should be resolved.
type Kind string

const (
	KindLiteral    Kind = "literal"
	KindExpression Kind = "expression"
	KindTemplate   Kind = "template"
	KindReference  Kind = "reference"
)

// Reference points at another node's output, optionally drilling into it
// with a dotted path (e.g. "result.items").
type Reference struct {
	NodeID string
	Path   string
}

// Rule is one declarative validation constraint applied after resolution.
// Pattern and Custom are accepted in definitions and carried through but
// are not evaluated here — regex/custom-predicate validation is deferred
// to a future revision, matching the same property the expression
// evaluator's =~ operator already exposes for ad-hoc checks in node
// expressions.
type Rule struct {
	MinLength *int
	MaxLength *int
	Min       *float64
	Max       *float64
	OneOf     []any
	MinItems  *int
	MaxItems  *int
	Pattern   string
	Custom    string
}

// Definition describes how a single parameter is produced and validated.
type Definition struct {
	Name       string
	Kind       Kind
	Literal    any
	Expression string
	Template   string
	Ref        *Reference
	Required   bool
	Default    any
	Rules      []Rule
}
