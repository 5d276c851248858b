package executor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type executeFunc func(req *structpb.Struct) (*structpb.Struct, error)

// startTaskService serves ExecuteMethod over an in-memory listener.
func startTaskService(t *testing.T, fn executeFunc) *GRPCInvoker {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "relihub.executor.v1.TaskExecutor",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Execute",
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := &structpb.Struct{}
				if err := dec(in); err != nil {
					return nil, err
				}
				return fn(in)
			},
		}},
	}, struct{}{})

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	inv, err := NewGRPCInvoker("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inv.Close() })
	return inv
}

func TestGRPCInvoker_Success(t *testing.T) {
	inv := startTaskService(t, func(req *structpb.Struct) (*structpb.Struct, error) {
		fields := req.GetFields()
		if fields["task_name"].GetStringValue() != "assemble_video" {
			return nil, status.Error(codes.InvalidArgument, "wrong task")
		}
		if fields["params"].GetStructValue().GetFields()["video"].GetStringValue() != "a.mp4" {
			return nil, status.Error(codes.InvalidArgument, "missing param")
		}
		return structpb.NewStruct(map[string]any{
			"success":        true,
			"result_summary": "rendered locally",
		})
	})

	summary, err := inv.Invoke(context.Background(), "assemble_video", map[string]any{"video": "a.mp4"}, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "rendered locally", summary)
}

func TestGRPCInvoker_TaskFailure(t *testing.T) {
	inv := startTaskService(t, func(req *structpb.Struct) (*structpb.Struct, error) {
		return structpb.NewStruct(map[string]any{"success": false, "error": "ffmpeg crashed"})
	})

	_, err := inv.Invoke(context.Background(), "assemble_video", nil, time.Second)
	require.Error(t, err)
	assert.Equal(t, "ffmpeg crashed", err.Error())
}

func TestGRPCInvoker_StatusError(t *testing.T) {
	inv := startTaskService(t, func(req *structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "worker pool drained")
	})

	_, err := inv.Invoke(context.Background(), "assemble_video", nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unavailable")
	assert.Contains(t, err.Error(), "worker pool drained")
}
