// Package expr implements a small, pure expression language used to bind
// node parameters to upstream outputs, workflow variables, and literal
// templates. Evaluation has no side effects and is bounded in recursion
// depth so a malformed or hostile expression cannot run away.
package expr

// Node is the closed set of AST node kinds the parser produces.
//
// The set is closed at the Go type-system level (an unexported marker
// method) so new expression forms must be added here rather than smuggled
// in through an external implementation, mirroring the teacher's closed
// Next/Edge variant style.
type Node interface {
	exprNode()
}

// Literal is a constant value: null, bool, number, or string.
type Literal struct {
	Value any
}

func (Literal) exprNode() {}

// ArrayLit is an array literal: [a, b, c].
type ArrayLit struct {
	Items []Node
}

func (ArrayLit) exprNode() {}

// ObjectLit is an object literal: {k: v, ...}.
type ObjectLit struct {
	Keys   []string
	Values []Node
}

func (ObjectLit) exprNode() {}

// Var references a bound variable: $input, $outputs, a workflow variable,
// or a lambda parameter such as $acc.
type Var struct {
	Name string
}

func (Var) exprNode() {}

// BinaryOp applies a binary operator, e.g. a + b, a and b, a =~ b.
type BinaryOp struct {
	Op    string
	Left  Node
	Right Node
}

func (BinaryOp) exprNode() {}

// UnaryOp applies a unary operator: -x or not x.
type UnaryOp struct {
	Op      string
	Operand Node
}

func (UnaryOp) exprNode() {}

// Property accesses obj.field.
type Property struct {
	Object Node
	Name   string
}

func (Property) exprNode() {}

// Index accesses obj[expr], supporting negative array indices.
type Index struct {
	Object Node
	Key    Node
}

func (Index) exprNode() {}

// Call invokes a named function with positional arguments.
type Call struct {
	Func string
	Args []Node
}

func (Call) exprNode() {}

// Pipeline represents `x |> f(a, b)`, equivalent to f(x, a, b).
type Pipeline struct {
	Source Node
	Next   Call
}

func (Pipeline) exprNode() {}

// Conditional is `cond ? then : else`.
type Conditional struct {
	Cond Node
	Then Node
	Else Node
}

func (Conditional) exprNode() {}

// Lambda is an anonymous single-parameter function used by higher-order
// functions such as filter/map/reduce: `x => x.value > 0`.
type Lambda struct {
	Param string
	Body  Node
}

func (Lambda) exprNode() {}
