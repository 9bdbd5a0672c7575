package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const configEnv = "RAGCHAT_CONFIG"

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Answer questions about a document with retrieval augmented chat",
		Long: `ragchat indexes a source document into embedded chunks and answers
questions about it, keeping a short conversation history per session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv(configEnv),
		"Path to config file (json or yaml), defaults to $"+configEnv+" or config.json")

	root.AddCommand(newServeCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newAskCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
