// Command lucerna is a minimal REPL demonstrating the orchestrator against
// a live OpenAI-compatible endpoint: it registers a couple of illustrative
// tools, opens a session, and streams every reply to the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lucerna",
		Short: "A minimal LLM conversation orchestrator CLI",
	}
	root.AddCommand(newChatCmd())
	return root
}
