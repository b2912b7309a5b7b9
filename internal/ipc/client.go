package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"path/filepath"
	"time"

	"eva/internal/config"
)

// SocketPath returns the daemon control socket location for a config.
func SocketPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "evad.sock")
}

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Eva.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sessions lists stored session history.
func (c *Client) Sessions(meetingID string) (*SessionsResponse, error) {
	var resp SessionsResponse
	if err := c.client.Call("Eva.Sessions", SessionsRequest{MeetingID: meetingID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tasks lists stored agent tasks for a meeting.
func (c *Client) Tasks(meetingID string) (*TasksResponse, error) {
	var resp TasksResponse
	if err := c.client.Call("Eva.Tasks", TasksRequest{MeetingID: meetingID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Actions lists stored action items, optionally filtered by status.
func (c *Client) Actions(status string) (*ActionsResponse, error) {
	var resp ActionsResponse
	if err := c.client.Call("Eva.Actions", ActionsRequest{Status: status}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateAction edits a stored action item.
func (c *Client) UpdateAction(id, status, owner string) (*UpdateActionResponse, error) {
	var resp UpdateActionResponse
	req := UpdateActionRequest{ID: id, Status: status, Owner: owner}
	if err := c.client.Call("Eva.UpdateAction", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Eva.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
