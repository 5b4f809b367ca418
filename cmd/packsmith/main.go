// Packsmith is an incremental add-on pack builder.
package main

import "github.com/packsmith/packsmith/cmd/packsmith/internal/cli"

func main() {
	cli.Execute()
}
