// Bidrag answers Vietnamese procurement-law questions from a curated
// corpus of legal passages with citations.
//
// Usage:
//
//	# One-shot question
//	bidrag ask --mode balanced "Thời hạn hiệu lực bảo đảm dự thầu là bao lâu?"
//
//	# Health snapshot
//	bidrag health
//
// Configuration is loaded from an optional YAML file (--config) and
// BIDRAG_* environment variables. See internal/config for the full list.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
