package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"

	logx "github.com/Chative-order-agent/server/pkg/logger"
)

// newNodeHandler traces graph node lifecycle and surfaces node errors.
func newNodeHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			logx.Ctx(ctx).Trace().Str("node", info.Name).Str("component", string(info.Component)).Msg("Node start")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Ctx(ctx).Warn().Err(err).Str("node", info.Name).Str("component", string(info.Component)).Msg("Node failed")
			return ctx
		}).
		Build()
}
