// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "dslrun",
	Short:         "Runs network measurement pipeline scripts",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dslrun: %s\n", err.Error())
		os.Exit(1)
	}
}
