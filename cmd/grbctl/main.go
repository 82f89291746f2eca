// Command grbctl is a grb/1 protocol client: a small cobra CLI for talking
// to a running bridge over its newline-delimited JSON socket, in the same
// spirit as the corpus's wt CLI talking to its daemon over a unix socket.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	saved, err := loadFileConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "grbctl: loading ~/.grbctl.yaml:", err)
		os.Exit(1)
	}
	if saved.Addr == "" {
		saved.Addr = "127.0.0.1:0"
	}

	var addr string
	var token string
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "grbctl",
		Short: "grbctl — command-line client for the grb runtime debug bridge",
	}
	root.PersistentFlags().StringVar(&addr, "addr", saved.Addr, "bridge address, host:port (see the GDRB_READY banner)")
	root.PersistentFlags().StringVar(&token, "token", saved.Token, "shared-secret token (see the GDRB_READY banner)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "connection timeout")

	root.AddCommand(
		pingCmd(&addr, &token, &timeout),
		treeCmd(&addr, &token, &timeout),
		getCmd(&addr, &token, &timeout),
		evalCmd(&addr, &token, &timeout),
		watchCmd(&addr, &token, &timeout),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func pingCmd(addr, token *string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the bridge is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(*addr, *token, *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.call("ping", nil)
			if err != nil {
				return err
			}
			fmt.Println(jsonLine(resp))
			if err := saveFileConfig(&fileConfig{Addr: *addr, Token: *token}); err != nil {
				fmt.Fprintln(os.Stderr, "grbctl: could not remember addr/token:", err)
			}
			return nil
		},
	}
}

func treeCmd(addr, token *string, timeout *time.Duration) *cobra.Command {
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Dump the scene tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(*addr, *token, *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.call("scene_tree", map[string]any{"max_depth": maxDepth})
			if err != nil {
				return err
			}
			delete(resp, "id")
			delete(resp, "ok")
			fmt.Println(jsonLine(resp))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 8, "maximum tree depth to dump")
	return cmd
}

func getCmd(addr, token *string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "get [node] [property]",
		Short: "Read a single node property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(*addr, *token, *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.call("get_property", map[string]any{"node": args[0], "property": args[1]})
			if err != nil {
				return err
			}
			fmt.Println(jsonLine(resp["value"]))
			return nil
		},
	}
}

func evalCmd(addr, token *string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "eval [expr]",
		Short: "Evaluate an expression in the engine (danger tier)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(*addr, *token, *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.call("eval", map[string]any{"expr": args[0]})
			if err != nil {
				return err
			}
			fmt.Println(jsonLine(resp["result"]))
			return nil
		},
	}
}

func watchCmd(addr, token *string, timeout *time.Duration) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Render a live dashboard of runtime_info and the diagnostic ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(*addr, *token, *timeout)
			if err != nil {
				return err
			}
			defer c.Close()

			cols, rows := 100, 30
			if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 0 {
				cols, rows = w, h
			}
			dash := newDashboard(cols, rows)
			defer dash.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			since := time.Now()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					info, errs, callErr := pollOnce(c)
					fmt.Print(dash.render(info, errs, callErr, since))
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "poll interval")
	return cmd
}

func pollOnce(c *client) (map[string]any, []any, error) {
	info, err := c.call("runtime_info", nil)
	if err != nil {
		return nil, nil, err
	}
	errResp, err := c.call("get_errors", nil)
	if err != nil {
		return info, nil, err
	}
	errs, _ := errResp["errors"].([]any)
	return info, errs, nil
}

func jsonLine(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
