package bridge

import (
	"context"

	"github.com/morezero/message-bridge/pkg/requesting"
	"github.com/morezero/message-bridge/pkg/value"
)

// Functions every bridge exposes to the host.
const (
	FunctionPing    = "bridge.ping"
	FunctionEcho    = "bridge.echo"
	FunctionInfo    = "bridge.info"
	FunctionPending = "bridge.pending"
)

func registerBuiltins(b *Bridge) error {
	builtins := map[string]requesting.RemoteFunction{
		FunctionPing: func(context.Context, []value.Value) (value.Value, error) {
			return value.NewString("pong"), nil
		},
		FunctionEcho: func(_ context.Context, args []value.Value) (value.Value, error) {
			return value.NewArray(args...), nil
		},
		FunctionInfo: func(context.Context, []value.Value) (value.Value, error) {
			return value.NewDict(map[string]value.Value{
				"instance_id":      value.NewString(b.gc.InstanceID()),
				"protocol_version": value.NewString(b.cfg.ProtocolVersion),
				"channel":          value.NewString(b.cfg.Channel),
			}), nil
		},
		FunctionPending: func(context.Context, []value.Value) (value.Value, error) {
			return value.NewInt(int64(b.requester.PendingCount())), nil
		},
	}
	for name, fn := range builtins {
		if err := b.functions.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}
