package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a daemon's control socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Status(ctx context.Context) (*StatusInfo, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodStatus, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var info StatusInfo
	return &info, fromStruct(out, &info)
}

// RunNow starts a pass, or joins the running one, and waits for its report.
func (c *Client) RunNow(ctx context.Context) (*RunInfo, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodRunNow, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var info RunInfo
	return &info, fromStruct(out, &info)
}

func (c *Client) SetFilter(ctx context.Context, filter string) (*StatusInfo, error) {
	in, err := toStruct(filterRequest{Filter: filter})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodSetFilter, in, out); err != nil {
		return nil, err
	}
	var info StatusInfo
	return &info, fromStruct(out, &info)
}

func (c *Client) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	in, err := toStruct(listRunsRequest{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodListRuns, in, out); err != nil {
		return nil, err
	}
	var list runList
	if err := fromStruct(out, &list); err != nil {
		return nil, err
	}
	return list.Runs, nil
}
