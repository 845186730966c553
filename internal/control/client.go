package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends commands to a running watchdog
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for socketPath with a 10s timeout
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 10 * time.Second}
}

// SetTimeout sets the per-command timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends cmd and waits for the response
func (c *Client) SendCommand(ctx context.Context, cmd Command) (*Response, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to watchdog (is it running?): %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}
	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if !resp.Success {
		return &resp, fmt.Errorf("watchdog rejected %s: %s", cmd.Type, resp.Error)
	}
	return &resp, nil
}

// Status requests the live state of every service, or just one
func (c *Client) Status(ctx context.Context, service string) (*Response, error) {
	return c.SendCommand(ctx, Command{Type: CommandStatus, Service: service})
}

// Transitions requests the most recent phase transitions
func (c *Client) Transitions(ctx context.Context, service string, limit int) (*Response, error) {
	return c.SendCommand(ctx, Command{Type: CommandTransitions, Service: service, Limit: limit})
}
