// Command anscanner sweeps a host or /24 subnet with nmap and prints the live
// hosts with their open ports and operating system.
package main

import (
	"github.com/anstrom/anscanner/cmd/cli"
)

// Build information, set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
