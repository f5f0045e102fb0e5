package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "campusrag",
	Short: "Administrative assistant answering from official university documents",
	Long: `campusrag indexes official PDF documents and answers student questions
from their content, streaming the answer with the documents it cites.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("campusrag: %v", err)
	}
}
