package executor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ExecuteMethod is the unary method the local task service exposes. Request
// and response are google.protobuf.Struct values mirroring TaskRequest and
// TaskResponse.
const ExecuteMethod = "/relihub.executor.v1.TaskExecutor/Execute"

// GRPCConfig configures the local-service tier.
type GRPCConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

// GRPCInvoker runs tasks on the local task service.
type GRPCInvoker struct {
	conn *grpc.ClientConn
}

// NewGRPCInvoker creates a client for the service at endpoint. The connection
// is established lazily on the first call.
func NewGRPCInvoker(endpoint string, opts ...grpc.DialOption) (*GRPCInvoker, error) {
	target := endpoint
	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return &GRPCInvoker{conn: conn}, nil
}

// Invoke calls the Execute method and interprets the returned struct.
func (g *GRPCInvoker) Invoke(ctx context.Context, taskName string, params map[string]any, timeout time.Duration) (string, error) {
	paramStruct, err := structpb.NewStruct(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"task_name":       structpb.NewStringValue(taskName),
		"params":          structpb.NewStructValue(paramStruct),
		"timeout_seconds": structpb.NewNumberValue(timeout.Seconds()),
	}}
	resp := &structpb.Struct{}

	if err := g.conn.Invoke(ctx, ExecuteMethod, req, resp); err != nil {
		if st, ok := status.FromError(err); ok {
			return "", fmt.Errorf("local service %s: %s", st.Code(), st.Message())
		}
		return "", fmt.Errorf("local service call: %w", err)
	}

	fields := resp.GetFields()
	if !fields["success"].GetBoolValue() {
		msg := fields["error"].GetStringValue()
		if msg == "" {
			msg = "task reported failure"
		}
		return "", errors.New(msg)
	}
	return fields["result_summary"].GetStringValue(), nil
}

// Close cleans up resources.
func (g *GRPCInvoker) Close() error {
	return g.conn.Close()
}
