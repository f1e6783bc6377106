package api

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/davidbalbert/spfd/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Client struct {
	*grpc.ClientConn
	rpcClient *rpc.ShowClient
}

func NewClient(socket string) (*Client, error) {
	return Dial(fmt.Sprintf("unix://%s", socket))
}

func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		ClientConn: conn,
		rpcClient:  rpc.NewShowClient(conn),
	}, nil
}

func (c *Client) GetVersion(ctx context.Context) (string, error) {
	resp, err := c.rpcClient.GetVersion(ctx)
	if err != nil {
		return "", err
	}

	return resp.GetValue(), nil
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.rpcClient.Shutdown(ctx)
}

func (c *Client) RoutingTable(ctx context.Context) ([]Route, error) {
	resp, err := c.rpcClient.RoutingTable(ctx)
	if err != nil {
		return nil, err
	}

	routes := make([]Route, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		route, err := routeFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}

	return routes, nil
}

func (c *Client) Database(ctx context.Context) ([]LSA, error) {
	resp, err := c.rpcClient.Database(ctx)
	if err != nil {
		return nil, err
	}

	lsas := make([]LSA, len(resp.GetValues()))
	for i, v := range resp.GetValues() {
		lsas[i] = lsaFromStruct(v.GetStructValue())
	}

	return lsas, nil
}

func (c *Client) Lookup(ctx context.Context, addr netip.Addr) (Route, error) {
	resp, err := c.rpcClient.Lookup(ctx, addr.String())
	if err != nil {
		return Route{}, err
	}

	return routeFromStruct(resp)
}
