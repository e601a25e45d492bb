// Admin CLI for the ideation study database.
package main

import (
	"fmt"
	"os"

	"github.com/ashureev/ideation-study/cmd/studyctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
