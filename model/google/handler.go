package google

import (
	"context"

	"github.com/nebula-run/flow/cred"
	"github.com/nebula-run/flow/model"
	"github.com/nebula-run/flow/respool"
)

// NewHandler builds a model.Handler whose pooled ChatModel clients are
// created lazily, each retrieving the current Gemini API key through
// credentials.RetrieveScoped at creation time.
func NewHandler(ctx context.Context, credentials *cred.Manager, credentialID cred.ID, rctx cred.Context, modelName string, cfg respool.Config[model.ChatModel], opts ...respool.Option) (*model.Handler, error) {
	cfg.Factory = func(fctx context.Context) (model.ChatModel, error) {
		data, _, err := credentials.RetrieveScoped(fctx, credentialID, rctx)
		if err != nil {
			return nil, err
		}
		return NewChatModel(string(data), modelName), nil
	}
	return model.NewHandler(ctx, cfg, opts...)
}
