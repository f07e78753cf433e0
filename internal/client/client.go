// Package client dials a running worker.
package client

import (
	"fmt"

	"github.com/matheus3301/chatnotify/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the worker.
type Client struct {
	conn   *grpc.ClientConn
	Worker *api.WorkerClient
}

// New dials the worker's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial worker: %w", err)
	}
	return &Client{conn: conn, Worker: api.NewWorkerClient(conn)}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
