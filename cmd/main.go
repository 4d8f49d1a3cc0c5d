// careerwatch-service polls company career pages, detects the ATS behind
// each one, and alerts on new postings that match the configured filters.
package main

import (
	"fmt"
	"os"

	"jobmate/careerwatch-service/internal/cli"
)

const version = "1.0.0"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "[careerwatch] %v\n", err)
		os.Exit(1)
	}
}
