package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the stock service using the JSON codec.
type Client struct {
	conn *grpc.ClientConn
}

func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) GetStock(ctx context.Context, productID string) (*GetStockResponse, error) {
	out := new(GetStockResponse)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/GetStock", &GetStockRequest{ProductID: productID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CheckAvailability(ctx context.Context, items []Item) (*CheckAvailabilityResponse, error) {
	out := new(CheckAvailabilityResponse)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/CheckAvailability", &CheckAvailabilityRequest{Items: items}, out); err != nil {
		return nil, err
	}
	return out, nil
}
