// Command precogs-audit inspects a grounding database offline: it re-derives
// fact identities from stored components and replays validation without
// touching the serving daemon.
package main

import (
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
