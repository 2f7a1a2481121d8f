package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"

	logx "github.com/voice-agent-core/server/pkg/logger"
)

type nodeStartKey struct{ name string }

// newNodeHandler logs how long each graph node and the graph itself took.
func newNodeHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			if !tracked(info) {
				return ctx
			}
			return context.WithValue(ctx, nodeStartKey{name: info.Name}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			if !tracked(info) {
				return ctx
			}
			ev := logx.Debug().Str("component", string(info.Component)).Str("node", info.Name)
			if started, ok := ctx.Value(nodeStartKey{name: info.Name}).(time.Time); ok {
				ev = ev.Dur("elapsed", time.Since(started))
			}
			ev.Msg("Node finished")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			if !tracked(info) {
				return ctx
			}
			logx.Error().Err(err).Str("component", string(info.Component)).Str("node", info.Name).Msg("Node failed")
			return ctx
		}).
		Build()
}

func tracked(info *einocb.RunInfo) bool {
	if info == nil {
		return false
	}
	return info.Component == compose.ComponentOfLambda || info.Component == compose.ComponentOfGraph
}
