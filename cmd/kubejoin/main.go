// Package main is the entry point for the kubejoin CLI.
//
// kubejoin initializes a single kubeadm control plane over SSH, publishes
// the join credential it produces and joins an elastic pool of workers to
// it concurrently. Workers may also join themselves from user data with
// "kubejoin agent join".
//
// Commands: init, bootstrap, control-plane, join, agent, credential, status.
//
// For detailed usage information, run:
//
//	kubejoin --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/kubejoin/cmd/kubejoin/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
