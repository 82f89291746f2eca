package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/aesthetic-engine/grb/internal/protocol"
)

// client is a grb/1 wire client: one TCP connection, newline-delimited JSON
// request/response, matched by id. Modeled on the corpus's transport.Client —
// a thin wrapper with one method per thing the CLI needs to say — but over a
// raw socket instead of HTTP-over-unix-socket, since grb/1 is its own framing.
type client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	nextID  uint64
	token   string
}

func dial(addr, token string, timeout time.Duration) (*client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &client{
		conn:    conn,
		scanner: protocol.ScanLines(conn),
		token:   token,
	}, nil
}

func (c *client) Close() error { return c.conn.Close() }

// call sends cmd with args and blocks for the single matching response line.
// grb/1 responses are not guaranteed to come back in request order over a
// busy connection, so call reads until it sees its own id.
func (c *client) call(cmd string, args map[string]any) (map[string]any, error) {
	id := fmt.Sprintf("grbctl-%d", atomic.AddUint64(&c.nextID, 1))
	req := map[string]any{
		"id":    id,
		"proto": protocol.ProtoVersion,
		"cmd":   cmd,
		"token": c.token,
	}
	if len(args) > 0 {
		req["args"] = args
	}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	line = append(line, '\n')
	if _, err := c.conn.Write(line); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	for c.scanner.Scan() {
		var resp map[string]any
		if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
			continue
		}
		if resp["id"] != id {
			continue
		}
		if ok, _ := resp["ok"].(bool); !ok {
			return nil, errorFromResponse(resp)
		}
		return resp, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return nil, fmt.Errorf("connection closed before response to %s", cmd)
}

func errorFromResponse(resp map[string]any) error {
	errObj, _ := resp["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	message, _ := errObj["message"].(string)
	if code == "" {
		code = "unknown_error"
	}
	return fmt.Errorf("%s: %s", code, message)
}
