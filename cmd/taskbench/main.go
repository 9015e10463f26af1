// Package main is the entrypoint for taskbench.
package main

import "github.com/Swind/go-task-manager/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
