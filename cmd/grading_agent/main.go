// Package main provides the entry point for the company grading HTTP API
// server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grading_agent",
	Short: "Company Grading HTTP API Server",
	Long:  "Company Grading retrieves a fixed questionnaire and per-question evidence from a vector index, grades each question with a language model, and serves the persisted results via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
