// Command gqljit compiles GraphQL operations to WebAssembly and runs them
// against YAML, JSON or SQLite data.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
