// Package main is the entry point for the proxy server.
package main

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/artpar/llmproxy/bootstrap"
	"github.com/artpar/llmproxy/config"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

// run is the recover-wrapped body of main: it owns the process's exit
// code contract (0 normal, 1 config failure, 2 bind failure, 3 panic).
func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
			code = 3
		}
	}()

	var cfgPath string
	rootCmd := &cobra.Command{
		Use:   "llmproxy",
		Short: "Protocol-aware reverse proxy for OpenAI/Anthropic-dialect LLM clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				path = config.ConfigPathFromEnv()
			}

			a, err := bootstrap.New(path)
			if err != nil {
				return exitErr{code: 1, err: err}
			}

			if err := a.Run(); err != nil {
				var opErr *net.OpError
				if errors.As(err, &opErr) {
					return exitErr{code: 2, err: err}
				}
				return exitErr{code: 1, err: err}
			}
			return nil
		},
	}
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (defaults to $CONFIG_PATH)")

	if err := rootCmd.Execute(); err != nil {
		var ee exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.err)
			return ee.code
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// exitErr carries the exit code a RunE failure should produce.
type exitErr struct {
	code int
	err  error
}

func (e exitErr) Error() string { return e.err.Error() }
func (e exitErr) Unwrap() error { return e.err }
