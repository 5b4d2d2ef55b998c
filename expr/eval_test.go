package expr

import (
	"strings"
	"testing"
)

func evalStr(t *testing.T, src string, vars map[string]any) any {
	t.Helper()
	e := NewEvaluator()
	v, err := e.Eval(src, NewContext(vars))
	if err != nil {
		t.Fatalf("eval(%q) error: %v", src, err)
	}
	return v
}

func TestLiteralsAndArithmetic(t *testing.T) {
	cases := []struct {
		src  string
		want any
	}{
		{"1 + 2", int64(3)},
		{"1 + 2.5", 3.5},
		{"10 / 4", 2.5},
		{"10 % 3", int64(1)},
		{"10.5 % 3", 1.5},
		{"2 * 3 + 1", int64(7)},
		{`"a" + "b"`, "ab"},
		{"-5", int64(-5)},
		{"not false", true},
		{"not 0", true},
		{"not 1", false},
	}
	for _, c := range cases {
		got := evalStr(t, c.src, nil)
		if got != c.want {
			t.Errorf("eval(%q) = %#v, want %#v", c.src, got, c.want)
		}
	}
}

func TestIntegerOverflowFallsBackToFloat(t *testing.T) {
	// 3037000500 is just past sqrt(2^63), so its square overflows int64
	// multiplication.
	src := "3037000500 * 3037000500"
	got := evalStr(t, src, nil)
	f, ok := got.(float64)
	if !ok {
		t.Fatalf("expected float64 fallback on overflow, got %T (%v)", got, got)
	}
	if f <= 0 {
		t.Fatalf("expected positive overflow result, got %v", f)
	}
}

func TestDivisionByZero(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Eval("1 / 0", NewContext(nil))
	if err == nil {
		t.Fatal("expected division by zero error")
	}
	ee, ok := err.(*Error)
	if !ok || ee.Kind != DivisionByZero {
		t.Fatalf("expected DivisionByZero, got %v", err)
	}
}

func TestShortCircuitAnd(t *testing.T) {
	called := false
	e := NewEvaluator()
	node, err := Parse("false and touch()")
	if err != nil {
		t.Fatal(err)
	}
	// If the right side were evaluated it would hit an unknown-function
	// error. We confirm it's never reached by checking that no error
	// propagates and the result is false.
	_ = called
	v, err := e.EvalNode(node, NewContext(nil))
	if err != nil {
		t.Fatalf("expected short-circuit to suppress right-hand error, got %v", err)
	}
	if v != false {
		t.Fatalf("want false, got %v", v)
	}
}

func TestShortCircuitOr(t *testing.T) {
	e := NewEvaluator()
	node, err := Parse("true or touch()")
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.EvalNode(node, NewContext(nil))
	if err != nil {
		t.Fatalf("expected short-circuit to suppress right-hand error, got %v", err)
	}
	if v != true {
		t.Fatalf("want true, got %v", v)
	}
}

func TestComparisonAndEquality(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"1 == 1.0", true},
		{"1 < 2", true},
		{`"abc" < "abd"`, true},
		{"[1,2] == [1,2]", true},
		{`{a: 1} == {a: 1}`, true},
		{"1 != 2", true},
	}
	for _, c := range cases {
		got := evalStr(t, c.src, nil)
		if got != c.want {
			t.Errorf("eval(%q) = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestPropertyAndIndexAccess(t *testing.T) {
	vars := map[string]any{
		"$input": map[string]any{
			"name":  "alice",
			"items": []any{int64(10), int64(20), int64(30)},
		},
	}
	if got := evalStr(t, "$input.name", vars); got != "alice" {
		t.Errorf("property access: got %v", got)
	}
	if got := evalStr(t, "$input.items[0]", vars); got != int64(10) {
		t.Errorf("index access: got %v", got)
	}
	if got := evalStr(t, "$input.items[-1]", vars); got != int64(30) {
		t.Errorf("negative index access: got %v", got)
	}
}

func TestIndexOutOfBounds(t *testing.T) {
	e := NewEvaluator()
	vars := map[string]any{"$input": []any{int64(1)}}
	_, err := e.Eval("$input[5]", NewContext(vars))
	ee, ok := err.(*Error)
	if !ok || ee.Kind != IndexOutOfBounds {
		t.Fatalf("expected IndexOutOfBounds, got %v", err)
	}
}

func TestVariableNotFound(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Eval("$missing", NewContext(nil))
	ee, ok := err.(*Error)
	if !ok || ee.Kind != VariableNotFound {
		t.Fatalf("expected VariableNotFound, got %v", err)
	}
}

func TestHigherOrderFunctions(t *testing.T) {
	vars := map[string]any{"$input": []any{int64(1), int64(2), int64(3), int64(4)}}

	got := evalStr(t, "$input |> filter(x => x % 2 == 0)", vars)
	arr, ok := got.([]any)
	if !ok || len(arr) != 2 || arr[0] != int64(2) || arr[1] != int64(4) {
		t.Fatalf("filter result wrong: %#v", got)
	}

	got = evalStr(t, "$input |> map(x => x * 2)", vars)
	arr, ok = got.([]any)
	if !ok || len(arr) != 4 || arr[0] != int64(2) {
		t.Fatalf("map result wrong: %#v", got)
	}

	got = evalStr(t, "every($input, x => x > 0)", vars)
	if got != true {
		t.Fatalf("every result wrong: %#v", got)
	}

	got = evalStr(t, "some($input, x => x > 3)", vars)
	if got != true {
		t.Fatalf("some result wrong: %#v", got)
	}

	got = evalStr(t, "find($input, x => x > 2)", vars)
	if got != int64(3) {
		t.Fatalf("find result wrong: %#v", got)
	}
}

func TestReduceWithAccAndElementBinding(t *testing.T) {
	vars := map[string]any{"$input": []any{int64(1), int64(2), int64(3)}}
	got := evalStr(t, "reduce($input, x => $acc + x, 0)", vars)
	if got != int64(6) {
		t.Fatalf("reduce result wrong: %#v", got)
	}
}

func TestReduceDoesNotLeakAccumulatorAcrossSiblings(t *testing.T) {
	// Each element's lambda context is a clone; mutating $acc inside one
	// iteration must not be visible except through the chained accumulator.
	vars := map[string]any{"$input": []any{int64(1), int64(1), int64(1)}}
	got := evalStr(t, "reduce($input, x => $acc * 2 + x, 0)", vars)
	if got != int64(7) { // ((0*2+1)*2+1)*2+1 = 7
		t.Fatalf("reduce chained result wrong: %#v", got)
	}
}

func TestRegexMatch(t *testing.T) {
	vars := map[string]any{"$input": "hello-123"}
	got := evalStr(t, `$input =~ "^hello-[0-9]+$"`, vars)
	if got != true {
		t.Fatalf("regex match failed: %#v", got)
	}
}

func TestRegexRejectsOversizedPattern(t *testing.T) {
	e := NewEvaluator()
	longPattern := `"` + strings.Repeat("a", maxRegexPatternLen+1) + `"`
	_, err := e.Eval(`"x" =~ `+longPattern, NewContext(nil))
	ee, ok := err.(*Error)
	if !ok || ee.Kind != RegexError {
		t.Fatalf("expected RegexError for oversized pattern, got %v", err)
	}
}

func TestRegexRejectsNestedQuantifier(t *testing.T) {
	if !isNestedQuantifier(`(a+)+`) {
		t.Fatal("expected (a+)+ to be flagged as a nested quantifier")
	}
	if !isNestedQuantifier(`(a*)+`) {
		t.Fatal("expected (a*)+ to be flagged as a nested quantifier")
	}
	if isNestedQuantifier(`a+b*`) {
		t.Fatal("did not expect a+b* to be flagged")
	}
}

func TestRegexCacheEviction(t *testing.T) {
	c := newRegexCache()
	for i := 0; i < maxRegexCacheEntries+10; i++ {
		pattern := strings.Repeat("a", 1) + strings.Repeat("b", i) + "c"
		if _, err := c.compile(pattern); err != nil {
			t.Fatalf("compile(%q): %v", pattern, err)
		}
	}
	c.mu.Lock()
	n := c.ll.Len()
	c.mu.Unlock()
	if n > maxRegexCacheEntries {
		t.Fatalf("cache grew beyond bound: %d entries", n)
	}
}

func TestConditional(t *testing.T) {
	got := evalStr(t, "1 < 2 ? \"yes\" : \"no\"", nil)
	if got != "yes" {
		t.Fatalf("conditional result wrong: %#v", got)
	}
}

func TestPipelineChaining(t *testing.T) {
	vars := map[string]any{"$input": []any{int64(1), int64(2), int64(3), int64(4), int64(5)}}
	got := evalStr(t, "$input |> filter(x => x > 2) |> map(x => x * 10)", vars)
	arr, ok := got.([]any)
	if !ok || len(arr) != 3 || arr[0] != int64(30) {
		t.Fatalf("chained pipeline result wrong: %#v", got)
	}
}

func TestBuiltinFunctions(t *testing.T) {
	if got := evalStr(t, `length("hello")`, nil); got != int64(5) {
		t.Errorf("length: got %v", got)
	}
	if got := evalStr(t, "abs(-5)", nil); got != int64(5) {
		t.Errorf("abs: got %v", got)
	}
	if got := evalStr(t, "min(3, 1, 2)", nil); got != int64(1) {
		t.Errorf("min: got %v", got)
	}
	if got := evalStr(t, "max(3, 1, 2)", nil); got != int64(3) {
		t.Errorf("max: got %v", got)
	}
	if got := evalStr(t, `upper("abc")`, nil); got != "ABC" {
		t.Errorf("upper: got %v", got)
	}
	if got := evalStr(t, `join(split("a,b,c", ","), "-")`, nil); got != "a-b-c" {
		t.Errorf("split/join: got %v", got)
	}
}

func TestRecursionDepthGuard(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("0")
	for i := 0; i < 2000; i++ {
		sb.WriteString(" + 1")
	}
	e := NewEvaluator(WithMaxDepth(50))
	_, err := e.Eval(sb.String(), NewContext(nil))
	if err == nil {
		t.Fatal("expected recursion depth error for a deeply nested expression")
	}
	ee, ok := err.(*Error)
	if !ok || ee.Kind != EvalError {
		t.Fatalf("expected EvalError for depth overrun, got %v", err)
	}
}
