// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"log/slog"

	"github.com/bassosimone/dsl/engine"
	"github.com/spf13/cobra"
)

var probeIPCmd = &cobra.Command{
	Use:   "probeip",
	Short: "Discover the probe public IP address using STUN",
	Long:  `Sends STUN binding requests to a STUN server and prints the mapped address.`,
	Args:  cobra.NoArgs,
	RunE:  probeIPMain,
}

func init() {
	rootCmd.AddCommand(probeIPCmd)

	probeIPCmd.Flags().String("endpoint", engine.DefaultSTUNEndpoint, "STUN server endpoint (domain:port)")
	probeIPCmd.Flags().Bool("ipv6", false, "Discover the IPv6 address instead of the IPv4 address")
	probeIPCmd.Flags().String("log-level", "info", "Minimum level of the logs written to the standard error")
}

func probeIPMain(cmd *cobra.Command, args []string) error {
	endpoint, _ := cmd.Flags().GetString("endpoint")
	ipv6, _ := cmd.Flags().GetBool("ipv6")
	logLevel, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return err
	}

	cfg := engine.NewConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	lookup := engine.NewProbeIPLookup(cfg, endpoint)

	lookupFunc := lookup.LookupIPv4
	if ipv6 {
		lookupFunc = lookup.LookupIPv6
	}
	addr, err := lookupFunc(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", addr)
	return nil
}
