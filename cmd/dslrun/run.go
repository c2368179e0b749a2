// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/bassosimone/dsl"
	"github.com/bassosimone/dsl/engine"
	"github.com/bassosimone/dsl/script"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run SCRIPT",
	Short: "Run a pipeline script",
	Long:  `Runs the pipeline described by a YAML or JSON script and prints the JSON result.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runMain,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("log-level", "info", "Minimum level of the logs written to the standard error")
	runCmd.Flags().Bool("indent", false, "Indent the JSON result")
	runCmd.Flags().Duration("timeout", 0, "Overall timeout (zero means no timeout)")
}

func runMain(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	indent, _ := cmd.Flags().GetBool("indent")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return err
	}

	parsed, err := script.Load(args[0])
	if err != nil {
		return err
	}
	pipeline, err := parsed.Build()
	if err != nil {
		return err
	}

	cfg := engine.NewConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	zeroTime := cfg.TimeNow()
	fmt.Fprintf(cmd.ErrOrStderr(), "current time: %s\n", zeroTime.Format(time.RFC3339Nano))

	result, err := dsl.Run(ctx, engine.New(cfg), pipeline, zeroTime)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	if indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(result)
}
