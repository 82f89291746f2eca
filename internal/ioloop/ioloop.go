// Package ioloop is the background I/O worker: it owns the TCP listener,
// the at-most-one-client accept loop, and the per-connection read/write
// loops that feed and drain the dispatcher's queues. It never touches the
// engine or the scene graph — only sockets and bytes (spec.md §4.E, §5).
//
// The lifecycle shape (errCh raced against ctx.Done(), deferred cleanup on
// every exit path) is grounded on the corpus's context-scoped listener
// pattern, adapted here from an HTTP mux over a Unix socket to a raw
// newline-framed loop over TCP.
package ioloop

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/aesthetic-engine/grb/internal/dispatch"
	"github.com/aesthetic-engine/grb/internal/grblog"
	"github.com/aesthetic-engine/grb/internal/protocol"
	"github.com/aesthetic-engine/grb/internal/queue"
	"github.com/google/uuid"
)

// readBufSize is the per-Read chunk size fed into protocol.LineReader.
const readBufSize = 64 * 1024

// idleSleep is the cadence between write-loop drains, per spec.md §4.E
// ("sleep 1 ms to avoid a busy loop").
const idleSleep = time.Millisecond

// Loop is the background worker. Zero value is not usable; build one with
// Listen.
type Loop struct {
	ln net.Listener

	mu         sync.Mutex
	conn       net.Conn
	generation uint64
	closed     bool
}

// Listen binds addr (use ":0" or "127.0.0.1:0" to let the kernel choose a
// port) and returns a ready-to-run Loop.
func Listen(addr string) (*Loop, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ioloop: listen %s: %w", addr, err)
	}
	return &Loop{ln: ln}, nil
}

// Port reports the bound TCP port, resolved even when the caller asked for
// port 0.
func (l *Loop) Port() uint16 {
	return uint16(l.ln.Addr().(*net.TCPAddr).Port)
}

// Run drives the accept loop until ctx is cancelled or the listener fails.
// Every line successfully split off an active connection is parsed and
// pushed onto inbound; outbound is drained and written back on the same
// connection, 1ms between polls.
func (l *Loop) Run(ctx context.Context, inbound *queue.FIFO[dispatch.InboundItem], outbound *queue.FIFO[map[string]any]) error {
	errCh := make(chan error, 1)
	go func() { errCh <- l.acceptLoop(inbound, outbound) }()

	select {
	case <-ctx.Done():
		l.Shutdown()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown closes the listener and the active connection, if any,
// unblocking Accept and any in-flight Read.
func (l *Loop) Shutdown() {
	l.mu.Lock()
	l.closed = true
	if l.conn != nil {
		l.conn.Close()
	}
	l.mu.Unlock()
	l.ln.Close()
}

func (l *Loop) acceptLoop(inbound *queue.FIFO[dispatch.InboundItem], outbound *queue.FIFO[map[string]any]) error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("ioloop: accept: %w", err)
		}
		l.adopt(conn, inbound, outbound)
	}
}

// adopt installs conn as the one live client, per spec.md §4.E: "if a new
// connection arrives while one is active, the old one is closed... new
// connection wins." Closing the superseded conn unblocks its readLoop's
// blocking Read, which tears the rest of that connection's goroutines down.
func (l *Loop) adopt(conn net.Conn, inbound *queue.FIFO[dispatch.InboundItem], outbound *queue.FIFO[map[string]any]) {
	l.mu.Lock()
	if l.conn != nil {
		l.conn.Close()
	}
	l.conn = conn
	l.generation++
	gen := l.generation
	l.mu.Unlock()

	connID := uuid.NewString()
	grblog.Log.Info("grb client connected", "conn_id", connID, "remote", conn.RemoteAddr().String())
	go l.serve(conn, gen, connID, inbound, outbound)
}

func (l *Loop) isCurrent(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation == gen && !l.closed
}

func (l *Loop) serve(conn net.Conn, gen uint64, connID string, inbound *queue.FIFO[dispatch.InboundItem], outbound *queue.FIFO[map[string]any]) {
	defer conn.Close()

	stop := make(chan struct{})
	var closeOnce sync.Once
	closeStop := func() { closeOnce.Do(func() { close(stop) }) }

	go func() {
		defer closeStop()
		l.readLoop(conn, inbound)
	}()

	l.writeLoop(conn, gen, outbound, stop)
	closeStop()
	grblog.Log.Info("grb client disconnected", "conn_id", connID)
}

func (l *Loop) readLoop(conn net.Conn, inbound *queue.FIFO[dispatch.InboundItem]) {
	var lr protocol.LineReader
	buf := make([]byte, readBufSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := lr.Feed(buf[:n]); ferr != nil {
				grblog.Log.Warn("grb connection exceeded framing limit", "error", ferr)
				return
			}
			for _, line := range lr.Lines() {
				req, perr := protocol.ParseLine(line)
				inbound.Push(dispatch.InboundItem{Request: req, ParseErr: perr})
			}
		}
		if err != nil {
			return
		}
	}
}

func (l *Loop) writeLoop(conn net.Conn, gen uint64, outbound *queue.FIFO[map[string]any], stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		for _, envelope := range outbound.DrainAll() {
			line, err := protocol.Marshal(envelope)
			if err != nil {
				grblog.Log.Error("grb failed to marshal response envelope", "error", err)
				continue
			}
			if _, err := conn.Write(line); err != nil {
				return
			}
		}

		if !l.isCurrent(gen) {
			return
		}
		time.Sleep(idleSleep)
	}
}
