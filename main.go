// The main package for the catalogpulse executable.
package main

import (
	"github.com/nmoreyra/catalogpulse/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
