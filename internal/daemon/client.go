package daemon

import (
	"fmt"
	"net"
	"time"
)

// Client is a short-lived connection to a running daemon, used by the
// `skein` CLI to issue one request and read its reply (or stream of
// replies, for the subscribe verbs).
type Client struct {
	conn net.Conn
}

// Dial connects to the daemon listening on sockPath.
func Dial(sockPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", sockPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial daemon at %s: %w", sockPath, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Call sends req and reads exactly one Response (used for every verb
// except the subscribe streams).
func (c *Client) Call(req Request) (*Response, error) {
	if err := WriteMessage(c.conn, req); err != nil {
		return nil, err
	}
	var resp Response
	if err := ReadMessage(c.conn, &resp); err != nil {
		return nil, err
	}
	if resp.Kind == RespError {
		return &resp, fmt.Errorf("daemon: %s", resp.Message)
	}
	return &resp, nil
}

// Stream sends req, then invokes onResponse for every Response the
// daemon sends until it returns an error (including io.EOF on
// disconnect) or onResponse itself returns one.
func (c *Client) Stream(req Request, onResponse func(Response) error) error {
	if err := WriteMessage(c.conn, req); err != nil {
		return err
	}
	for {
		var resp Response
		if err := ReadMessage(c.conn, &resp); err != nil {
			return err
		}
		if err := onResponse(resp); err != nil {
			return err
		}
	}
}
