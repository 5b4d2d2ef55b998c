// Command flowctl loads a workflow definition from JSON, registers the
// built-in action handlers, runs it once through the engine, and prints
// the resulting status. It exists to exercise the wiring between
// engine, tool, model, and cred end to end — not as a production
// runner (see Non-goals: no scheduler, no persistence, no API server).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nebula-run/flow/cred"
	"github.com/nebula-run/flow/cred/store"
	"github.com/nebula-run/flow/engine"
	"github.com/nebula-run/flow/engine/emit"
	"github.com/nebula-run/flow/model"
	"github.com/nebula-run/flow/model/anthropic"
	"github.com/nebula-run/flow/model/google"
	"github.com/nebula-run/flow/model/openai"
	"github.com/nebula-run/flow/respool"
	"github.com/nebula-run/flow/tool"
)

func main() {
	var (
		workflowPath = flag.String("workflow", "", "path to a workflow definition JSON file")
		inputPath    = flag.String("input", "", "path to a JSON file used as the workflow's initial input (default: null)")
		workflowID   = flag.String("workflow-id", "cli", "workflow identifier to pass to the engine")
		scope        = flag.String("scope", "cli", "credential scope this run is authorized for")
		maxConc      = flag.Int("max-concurrent-nodes", 8, "maximum nodes executing at once")
		jsonLogs     = flag.Bool("json-logs", false, "emit engine lifecycle events as JSON lines instead of text")
		metricsAddr  = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	)
	flag.Parse()

	if *workflowPath == "" {
		fmt.Fprintln(os.Stderr, "flowctl: -workflow is required")
		os.Exit(2)
	}

	def, err := loadWorkflow(*workflowPath)
	if err != nil {
		fatal(err)
	}
	input, err := loadInput(*inputPath)
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	registry := engine.NewRegistry()
	registry.Register("http_request", tool.NewHTTPHandler())
	registry.Register("mock", &tool.MockHandler{})

	credentials := cred.NewManagerBuilder().WithStorage(store.NewMemStore()).Build()
	rctx := cred.Context{Owner: "flowctl", Scope: cred.Scope(*scope)}
	if err := registerModelHandlers(ctx, registry, credentials, rctx); err != nil {
		fatal(err)
	}

	promRegistry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(promRegistry)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "flowctl: metrics server: %v\n", err)
			}
		}()
	}

	eng := engine.New(registry,
		engine.WithMaxConcurrentNodes(*maxConc),
		engine.WithEmitter(emit.NewLogEmitter(os.Stderr, *jsonLogs)),
		engine.WithMetrics(metrics),
	)

	result, err := eng.Run(ctx, def, *workflowID, "", input)
	if err != nil {
		fatal(err)
	}

	printResult(result)
	if result.Status != engine.StatusCompleted {
		os.Exit(1)
	}
}

// modelProvider describes one LLM provider's environment-driven wiring:
// which env var carries its API key, which action id its handler is
// registered under, and how to build its handler once a key is found.
type modelProvider struct {
	actionID string
	envVar   string
	modelEnv string
	newHandler func(ctx context.Context, credentials *cred.Manager, id cred.ID, rctx cred.Context, modelName string, cfg respool.Config[model.ChatModel]) (*model.Handler, error)
}

var modelProviders = []modelProvider{
	{actionID: "anthropic_chat", envVar: "ANTHROPIC_API_KEY", modelEnv: "ANTHROPIC_MODEL", newHandler: anthropic.NewHandler},
	{actionID: "openai_chat", envVar: "OPENAI_API_KEY", modelEnv: "OPENAI_MODEL", newHandler: openai.NewHandler},
	{actionID: "google_chat", envVar: "GOOGLE_API_KEY", modelEnv: "GOOGLE_MODEL", newHandler: google.NewHandler},
}

// registerModelHandlers wires an LLM provider's handler under its
// action id only when an API key is present in the environment, so
// running flowctl against a workflow with no LLM nodes needs no
// credentials configured at all. The key is stored in the credential
// manager under the provider's action id and retrieved from there by
// the handler's pool Factory on every client creation, so rotating it
// (cred.Manager.RotateAtomic et al.) takes effect without restarting
// flowctl.
func registerModelHandlers(ctx context.Context, registry *engine.Registry, credentials *cred.Manager, rctx cred.Context) error {
	for _, p := range modelProviders {
		apiKey := os.Getenv(p.envVar)
		if apiKey == "" {
			continue
		}
		id := cred.ID(p.actionID)
		if err := credentials.Store(ctx, id, cred.EncryptedData(apiKey), cred.Metadata{}, rctx); err != nil {
			return fmt.Errorf("flowctl: storing %s credential: %w", p.actionID, err)
		}
		handler, err := p.newHandler(ctx, credentials, id, rctx, os.Getenv(p.modelEnv), respool.Config[model.ChatModel]{MaxSize: 4})
		if err != nil {
			return fmt.Errorf("flowctl: building %s handler: %w", p.actionID, err)
		}
		registry.Register(p.actionID, handler)
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "flowctl:", err)
	os.Exit(1)
}

// loadInput reads the JSON file at path as the workflow's initial
// input. An empty path is not an error — it means the workflow runs
// with a nil input.
func loadInput(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flowctl: reading %s: %w", path, err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("flowctl: parsing %s: %w", path, err)
	}
	return input, nil
}

// printResult reports the outcome of a single execution: final status,
// and on failure, which node failed and why.
func printResult(result *engine.Result) {
	fmt.Printf("execution %s: %s (%s)\n", result.ExecutionID, result.Status, result.Duration)
	if result.Status != engine.StatusCompleted {
		fmt.Printf("failed node: %s\n", result.FailedNode)
		fmt.Printf("failure: %s\n", result.FailureMessage)
	}
	for nodeID, out := range result.NodeOutputsSoFar {
		fmt.Printf("  %s -> %v\n", nodeID, out.Raw())
	}
}
