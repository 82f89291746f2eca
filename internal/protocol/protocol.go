// Package protocol implements the grb/1 wire format: newline-delimited JSON
// request/response envelopes over a TCP socket.
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// ProtoVersion is the only protocol literal this server accepts.
const ProtoVersion = "grb/1"

// MaxLineBytes bounds the unconsumed read buffer. It is a malformed-client
// safety cap, not a protocol limit — legitimate requests are small.
const MaxLineBytes = 10 * 1024 * 1024

// Request is a parsed request envelope.
type Request struct {
	ID    string
	Proto string
	Cmd   string
	Args  map[string]any
	Token string
}

// ParseError carries a best-effort id alongside a framing-level error code.
type ParseError struct {
	ID      string
	Code    string // "bad_json" or "bad_proto"
	Message string
}

func (e *ParseError) Error() string { return e.Message }

type rawEnvelope struct {
	ID    string `json:"id"`
	Proto string `json:"proto"`
	Cmd   string `json:"cmd"`
	Args  any    `json:"args"`
	Token string `json:"token"`
}

// ParseLine parses a single line (no embedded newline) into a Request, or
// returns a *ParseError describing why it could not be dispatched.
func ParseLine(line []byte) (*Request, *ParseError) {
	var raw rawEnvelope
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, &ParseError{Code: "bad_json", Message: "request is not a JSON object: " + err.Error()}
	}
	if raw.Cmd == "" {
		return nil, &ParseError{ID: raw.ID, Code: "bad_json", Message: "cmd is missing or empty"}
	}
	if raw.Proto != "" && raw.Proto != ProtoVersion {
		return nil, &ParseError{ID: raw.ID, Code: "bad_proto", Message: "unsupported proto: " + raw.Proto}
	}

	args, _ := raw.Args.(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	return &Request{
		ID:    raw.ID,
		Proto: raw.Proto,
		Cmd:   raw.Cmd,
		Args:  args,
		Token: raw.Token,
	}, nil
}

// Ok builds a success response: {id, ok: true, ...data}.
func Ok(id string, data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = id
	out["ok"] = true
	return out
}

// Err builds an error response: {id, ok: false, error: {code, message, ...extra}}.
func Err(id, code, message string, extra map[string]any) map[string]any {
	errObj := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		errObj[k] = v
	}
	errObj["code"] = code
	errObj["message"] = message
	return map[string]any{
		"id":    id,
		"ok":    false,
		"error": errObj,
	}
}

// Marshal serializes a response envelope with a trailing newline.
func Marshal(envelope map[string]any) ([]byte, error) {
	b, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// LineReader accumulates partial reads off a connection and yields complete
// lines, enforcing MaxLineBytes. It does not itself block on I/O; the caller
// feeds bytes read off the socket via Feed and drains complete lines with
// Lines.
type LineReader struct {
	buf []byte
}

// ErrBufferExceeded is returned by Feed when the unconsumed prefix exceeds
// MaxLineBytes without a terminator.
type ErrBufferExceeded struct{ Size int }

func (e *ErrBufferExceeded) Error() string {
	return fmt.Sprintf("line buffer exceeded %s (got %s)",
		humanize.IBytes(MaxLineBytes), humanize.IBytes(uint64(e.Size)))
}

// Feed appends newly read bytes and reports an error if the buffer grew past
// the cap without ever seeing a newline.
func (r *LineReader) Feed(chunk []byte) error {
	r.buf = append(r.buf, chunk...)
	if len(r.buf) > MaxLineBytes && !hasNewline(r.buf) {
		return &ErrBufferExceeded{Size: len(r.buf)}
	}
	return nil
}

func hasNewline(b []byte) bool {
	for _, c := range b {
		if c == '\n' {
			return true
		}
	}
	return false
}

// Lines extracts all complete (newline-terminated) lines currently buffered,
// skipping empty ones, leaving any trailing partial line buffered.
func (r *LineReader) Lines() [][]byte {
	var lines [][]byte
	for {
		idx := indexByte(r.buf, '\n')
		if idx < 0 {
			break
		}
		line := r.buf[:idx]
		r.buf = r.buf[idx+1:]
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	return lines
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// ScanLines is a convenience used by tests and the CLI client to read
// newline-delimited JSON responses off a stream with bufio.Scanner, bounded
// by the same framing cap as the server side.
func ScanLines(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return s
}
