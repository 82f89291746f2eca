package main

import (
	"fmt"
	"strings"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/vt"
)

// dashboard renders runtime_info + the diagnostic ring through a vt.Emulator,
// the same render-buffer pattern the corpus uses for its terminal session
// capture: feed it plain text plus a handful of cursor/clear escapes, then
// ask it to Render() the resulting grid back out as a flat string. It isn't
// driving an interactive PTY here, just using the emulator to lay out a
// fixed-size grid of text deterministically.
type dashboard struct {
	emu        *vt.Emulator
	cols, rows int
}

func newDashboard(cols, rows int) *dashboard {
	d := &dashboard{emu: vt.NewEmulator(cols, rows), cols: cols, rows: rows}
	d.emu.SetCallbacks(vt.Callbacks{
		ScrollOut:        func(lines []uv.Line) {},
		ScrollbackClear:  func() {},
		AltScreen:        func(on bool) {},
		CursorVisibility: func(visible bool) {},
	})
	return d
}

func (d *dashboard) Resize(cols, rows int) {
	d.cols, d.rows = cols, rows
	d.emu.Resize(cols, rows)
}

func (d *dashboard) Close() error { return d.emu.Close() }

// render lays out runtime info, the diagnostic ring, and any call error,
// feeds it to the emulator, and returns the emulator's redrawn grid plus the
// escape sequence needed to repaint a real terminal from the top.
func (d *dashboard) render(info map[string]any, errors []any, callErr error, since time.Time) string {
	var body strings.Builder
	fmt.Fprintf(&body, "\x1b[2J\x1b[Hgrbctl watch — %s\r\n\r\n", time.Now().Format("15:04:05"))

	if callErr != nil {
		fmt.Fprintf(&body, "connection error: %v\r\n", callErr)
	} else {
		fmt.Fprintf(&body, "scene:        %v\r\n", info["current_scene_name"])
		fmt.Fprintf(&body, "fps:          %v\r\n", info["fps"])
		fmt.Fprintf(&body, "frame:        %v\r\n", info["process_frames"])
		fmt.Fprintf(&body, "time_scale:   %v\r\n", info["time_scale"])
		fmt.Fprintf(&body, "nodes:        %v\r\n", info["node_count"])
		fmt.Fprintf(&body, "errors:       %v\r\n", info["error_count"])
		fmt.Fprintf(&body, "warnings:     %v\r\n", info["warning_count"])
		fmt.Fprintf(&body, "\r\nrecent diagnostics (%d):\r\n", len(errors))
		limit := len(errors)
		if limit > d.rows-10 {
			limit = d.rows - 10
		}
		if limit < 0 {
			limit = 0
		}
		for i := 0; i < limit; i++ {
			fmt.Fprintf(&body, "  %v\r\n", errors[i])
		}
	}
	fmt.Fprintf(&body, "\r\nconnected since %s — ctrl-c to quit\r\n", since.Format("15:04:05"))

	d.emu.Write([]byte(body.String()))
	return "\x1b[2J\x1b[H" + d.emu.Render()
}
