package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
)

// Client is the CLI side of the socket protocol. Not safe for concurrent
// use; the protocol is strictly request/response.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to a running daemon.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", socketPath, err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one request and waits for its response. A Response carrying an
// Error field is returned as-is, not as a Go error; the error return covers
// transport failures only.
func (c *Client) Do(command string, args ...string) (*Response, error) {
	req := Request{Command: command, Args: args}
	payload, err := json.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := c.conn.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}
