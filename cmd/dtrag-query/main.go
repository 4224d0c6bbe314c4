// Command dtrag-query is a thin demo CLI over the dynamic-taxonomy
// retrieval core, wiring a fixture-backed store and the core package
// together for manual smoke-testing. It is not an ingestion pipeline or
// a serving surface.
package main

import (
	"fmt"
	"os"

	"github.com/dtrag/retrieval-core/cmd/dtrag-query/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
