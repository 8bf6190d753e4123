// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command nmo validates and dumps Virtools composition files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	nmoparser "github.com/saferwall/nmo"
)

var (
	wantHeader   bool
	wantObjects  bool
	wantPlugins  bool
	wantJSON     bool
	strictDeps   bool
	validateLoad bool
)

func main() {
	root := &cobra.Command{
		Use:           "nmo",
		Short:         "Virtools composition file toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	dumpCmd := &cobra.Command{
		Use:   "dump [files...]",
		Short: "Dump header, object table and plugin dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	dumpCmd.Flags().BoolVar(&wantHeader, "header", false, "Dump the file header")
	dumpCmd.Flags().BoolVar(&wantObjects, "objects", false, "Dump the object descriptor table")
	dumpCmd.Flags().BoolVar(&wantPlugins, "plugins", false, "Dump the plugin dependency list")
	dumpCmd.Flags().BoolVar(&wantJSON, "json", false, "Emit JSON instead of tables")

	validateCmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Load each file fully and report failures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args)
		},
	}
	validateCmd.Flags().BoolVar(&strictDeps, "strict", false,
		"Fail on unresolved plugin dependencies")
	validateCmd.Flags().BoolVar(&validateLoad, "schema", false,
		"Run schema validation on every decoded object")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the library version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(nmoparser.Version)
		},
	}

	root.AddCommand(dumpCmd, validateCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
