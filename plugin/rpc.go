package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/rpc"
	"time"

	"nlcp/aitools"
)

// CallRequest is the call frame sent to a provider.
type CallRequest struct {
	ToolName  string
	Arguments json.RawMessage
	// TimeoutMillis bounds the provider-side work; zero means unbounded.
	TimeoutMillis int64
}

// CallResponse is the response frame: a JSON result or a structured error.
type CallResponse struct {
	Result json.RawMessage
	Error  *aitools.ToolError
}

// RPCServer is the net/rpc server half that runs inside the provider process.
type RPCServer struct {
	Impl Provider
}

func (s *RPCServer) ListTools(_ interface{}, resp *[]byte) error {
	tools, err := s.Impl.ListTools(context.Background())
	if err != nil {
		return err
	}
	b, err := encodeDescriptors(tools)
	if err != nil {
		return err
	}
	*resp = b
	return nil
}

func (s *RPCServer) Call(req CallRequest, resp *CallResponse) error {
	ctx := context.Background()
	if req.TimeoutMillis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMillis)*time.Millisecond)
		defer cancel()
	}
	res := s.Impl.Call(ctx, req.ToolName, string(req.Arguments))
	resp.Result = res.Data
	resp.Error = res.Err
	return nil
}

// RPCClient is the host half. net/rpc tags each call with a sequence number,
// so concurrent calls share the connection safely.
type RPCClient struct {
	client *rpc.Client
}

func NewRPCClient(c *rpc.Client) *RPCClient {
	return &RPCClient{client: c}
}

func (c *RPCClient) ListTools(ctx context.Context) ([]aitools.ToolDescriptor, error) {
	var raw []byte
	if err := c.await(ctx, "Plugin.ListTools", new(interface{}), &raw); err != nil {
		return nil, err
	}
	return decodeDescriptors(raw)
}

func (c *RPCClient) Call(ctx context.Context, toolName string, payload string) aitools.Result {
	req := CallRequest{ToolName: toolName, Arguments: json.RawMessage(payload)}
	if deadline, ok := ctx.Deadline(); ok {
		req.TimeoutMillis = max(time.Until(deadline).Milliseconds(), 1)
	}

	var resp CallResponse
	if err := c.await(ctx, "Plugin.Call", req, &resp); err != nil {
		return aitools.Fail(err)
	}
	if resp.Error != nil {
		return aitools.Result{Err: resp.Error}
	}
	return aitools.Result{Data: resp.Result}
}

// await issues an asynchronous call and gives up when ctx ends. A late reply
// is discarded by net/rpc.
func (c *RPCClient) await(ctx context.Context, method string, args, reply any) error {
	call := c.client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return contextError(ctx, method)
	case done := <-call.Done:
		if done.Error != nil {
			return aitools.Errorf(aitools.KindProviderUnavailable, "%s: %v", method, done.Error)
		}
		return nil
	}
}

func contextError(ctx context.Context, op string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return aitools.Errorf(aitools.KindProviderTimeout, "%s: provider did not respond in time", op)
	}
	return aitools.Errorf(aitools.KindProviderUnavailable, "%s: %v", op, ctx.Err())
}

// Close closes the underlying connection.
func (c *RPCClient) Close() error {
	if err := c.client.Close(); err != nil && !errors.Is(err, rpc.ErrShutdown) {
		return fmt.Errorf("close rpc client: %w", err)
	}
	return nil
}
