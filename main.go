// The main package for the callify-backend executable.
package main

import (
	"github.com/JakeFAU/callify-backend/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
