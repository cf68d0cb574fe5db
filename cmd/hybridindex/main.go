// Command hybridindex indexes a workspace for hybrid code search and serves
// it over MCP and local HTTP.
package main

import (
	"os"

	"github.com/dshills/hybridindex/cmd/hybridindex/cmd"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.SetVersion(version, buildTime)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
