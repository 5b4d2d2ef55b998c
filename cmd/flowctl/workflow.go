package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nebula-run/flow/engine"
	"github.com/nebula-run/flow/param"
)

// workflowFile is the on-disk JSON shape of a workflow definition.
// It exists as a translation layer in front of engine.WorkflowDefinition
// so the engine package itself carries no serialization concerns.
type workflowFile struct {
	ID          string           `json:"id"`
	Nodes       []nodeSpec       `json:"nodes"`
	Connections []connectionSpec `json:"connections"`
	Variables   map[string]any   `json:"variables"`
}

type nodeSpec struct {
	ID         string          `json:"id"`
	ActionID   string          `json:"action_id"`
	Parameters []paramSpec     `json:"parameters"`
	Policy     *nodePolicySpec `json:"policy"`
}

type paramSpec struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"` // literal | expression | template | reference
	Literal    any      `json:"literal"`
	Expression string   `json:"expression"`
	Template   string   `json:"template"`
	Ref        *refSpec `json:"ref"`
	Required   bool     `json:"required"`
	Default    any      `json:"default"`
}

type refSpec struct {
	NodeID string `json:"node_id"`
	Path   string `json:"path"`
}

type nodePolicySpec struct {
	TimeoutMS   int64            `json:"timeout_ms"`
	RetryPolicy *retryPolicySpec `json:"retry_policy"`
}

type retryPolicySpec struct {
	MaxAttempts int   `json:"max_attempts"`
	BaseDelayMS int64 `json:"base_delay_ms"`
	MaxDelayMS  int64 `json:"max_delay_ms"`
}

type connectionSpec struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	FromPort  string         `json:"from_port"`
	ToPort    string         `json:"to_port"`
	BranchKey string         `json:"branch_key"`
	Condition *conditionSpec `json:"condition"`
}

type conditionSpec struct {
	Kind       string       `json:"kind"` // always | on_result | on_error | expression
	Result     *matcherSpec `json:"result"`
	Error      *matcherSpec `json:"error"`
	Expression string       `json:"expression"`
}

type matcherSpec struct {
	Kind       string `json:"kind"` // success | field_equals | expression | any | code
	Field      string `json:"field"`
	Value      any    `json:"value"`
	Expression string `json:"expression"`
	Code       string `json:"code"`
}

// loadWorkflow reads and translates a workflow definition file.
func loadWorkflow(path string) (engine.WorkflowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return engine.WorkflowDefinition{}, fmt.Errorf("flowctl: reading %s: %w", path, err)
	}

	var wf workflowFile
	if err := json.Unmarshal(raw, &wf); err != nil {
		return engine.WorkflowDefinition{}, fmt.Errorf("flowctl: parsing %s: %w", path, err)
	}

	def := engine.WorkflowDefinition{
		ID:        wf.ID,
		Variables: wf.Variables,
	}

	def.Nodes = make([]engine.NodeDefinition, len(wf.Nodes))
	for i, n := range wf.Nodes {
		params := make([]param.Definition, len(n.Parameters))
		for j, p := range n.Parameters {
			pd, err := convertParam(p)
			if err != nil {
				return engine.WorkflowDefinition{}, fmt.Errorf("flowctl: node %s parameter %s: %w", n.ID, p.Name, err)
			}
			params[j] = pd
		}
		def.Nodes[i] = engine.NodeDefinition{
			ID:         n.ID,
			ActionID:   n.ActionID,
			Parameters: params,
			Policy:     convertPolicy(n.Policy),
		}
	}

	def.Connections = make([]engine.Connection, len(wf.Connections))
	for i, c := range wf.Connections {
		cond, err := convertCondition(c.Condition)
		if err != nil {
			return engine.WorkflowDefinition{}, fmt.Errorf("flowctl: connection %s->%s: %w", c.From, c.To, err)
		}
		def.Connections[i] = engine.Connection{
			From:      c.From,
			To:        c.To,
			FromPort:  c.FromPort,
			ToPort:    c.ToPort,
			BranchKey: c.BranchKey,
			Condition: cond,
		}
	}

	return def, nil
}

func convertParam(p paramSpec) (param.Definition, error) {
	var kind param.Kind
	switch p.Kind {
	case "", "literal":
		kind = param.KindLiteral
	case "expression":
		kind = param.KindExpression
	case "template":
		kind = param.KindTemplate
	case "reference":
		kind = param.KindReference
	default:
		return param.Definition{}, fmt.Errorf("unknown parameter kind %q", p.Kind)
	}

	var ref *param.Reference
	if p.Ref != nil {
		ref = &param.Reference{NodeID: p.Ref.NodeID, Path: p.Ref.Path}
	}

	return param.Definition{
		Name:       p.Name,
		Kind:       kind,
		Literal:    p.Literal,
		Expression: p.Expression,
		Template:   p.Template,
		Ref:        ref,
		Required:   p.Required,
		Default:    p.Default,
	}, nil
}

func convertPolicy(p *nodePolicySpec) engine.NodePolicy {
	if p == nil {
		return engine.NodePolicy{}
	}
	policy := engine.NodePolicy{Timeout: time.Duration(p.TimeoutMS) * time.Millisecond}
	if p.RetryPolicy != nil {
		policy.RetryPolicy = &engine.RetryPolicy{
			MaxAttempts: p.RetryPolicy.MaxAttempts,
			BaseDelay:   time.Duration(p.RetryPolicy.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(p.RetryPolicy.MaxDelayMS) * time.Millisecond,
		}
	}
	return policy
}

func convertCondition(c *conditionSpec) (engine.EdgeCondition, error) {
	if c == nil {
		return engine.Always(), nil
	}
	switch c.Kind {
	case "", "always":
		return engine.Always(), nil
	case "on_result":
		m, err := convertMatcher(c.Result)
		if err != nil {
			return engine.EdgeCondition{}, err
		}
		return engine.OnResult(m), nil
	case "on_error":
		m, err := convertMatcher(c.Error)
		if err != nil {
			return engine.EdgeCondition{}, err
		}
		return engine.OnError(m), nil
	case "expression":
		return engine.Expression(c.Expression), nil
	default:
		return engine.EdgeCondition{}, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

func convertMatcher(m *matcherSpec) (engine.Matcher, error) {
	if m == nil {
		return engine.Matcher{}, fmt.Errorf("condition requires a matcher")
	}
	var kind engine.MatcherKind
	switch m.Kind {
	case "success":
		kind = engine.MatchSuccess
	case "field_equals":
		kind = engine.MatchFieldEquals
	case "expression":
		kind = engine.MatchExpression
	case "any":
		kind = engine.MatchAny
	case "code":
		kind = engine.MatchCode
	default:
		return engine.Matcher{}, fmt.Errorf("unknown matcher kind %q", m.Kind)
	}
	return engine.Matcher{
		Kind:       kind,
		Field:      m.Field,
		Value:      m.Value,
		Expression: m.Expression,
		Code:       m.Code,
	}, nil
}
