// SPDX-License-Identifier: GPL-3.0-or-later

// Command dslrun runs network measurement pipeline scripts.
//
// Usage:
//
//	dslrun run [--log-level LEVEL] [--indent] [--timeout DURATION] SCRIPT
//
// The script is a YAML or JSON file (see package script). The command
// prints the reference time to the standard error, runs the pipeline
// with the reference engine, and prints the JSON result to the standard
// output.
package main

func main() {
	Execute()
}
