package model

import (
	"context"

	"github.com/nebula-run/flow/engine"
	"github.com/nebula-run/flow/respool"
)

// Handler adapts a pool of ChatModel clients to engine.Handler. It is
// provider-agnostic: each provider package supplies a respool.Config
// whose Factory retrieves a scoped credential and builds a ChatModel
// bound to it, then hands the Config to NewHandler.
type Handler struct {
	pool *respool.Pool[ChatModel]
}

// NewHandler builds a Handler backed by a pool of ChatModel clients.
func NewHandler(ctx context.Context, cfg respool.Config[ChatModel], opts ...respool.Option) (*Handler, error) {
	pool, err := respool.New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Handler{pool: pool}, nil
}

func (h *Handler) Handle(ctx engine.Context, input any) (engine.ActionResult, error) {
	messages, tools, err := ParseChatInput(input)
	if err != nil {
		return engine.ActionResult{}, err
	}

	guard, err := h.pool.Acquire(ctx)
	if err != nil {
		return engine.ActionResult{}, err
	}
	healthy := true
	defer func() { guard.Release(healthy) }()

	out, err := guard.Instance().Chat(ctx, messages, tools)
	if err != nil {
		healthy = false
		return engine.ActionResult{}, err
	}
	return ChatOutResult(out), nil
}

// Shutdown releases every pooled client. Call once the workflow that
// owns this handler will never dispatch to it again.
func (h *Handler) Shutdown() {
	h.pool.Shutdown()
}
