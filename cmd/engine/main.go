// Command engine ingests job feeds, scores and deduplicates the postings,
// and serves matches against user preferences.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
