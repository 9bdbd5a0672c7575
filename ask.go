package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Chat with the indexed document in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			idx, err := a.loadIndex(ctx)
			if err != nil {
				return err
			}
			if err := a.startAssistant(ctx, idx); err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s, empty line or Ctrl-D to quit\n", sessionID)
			for {
				question, err := line.Prompt("> ")
				if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("read prompt: %w", err)
				}
				question = strings.TrimSpace(question)
				if question == "" {
					return nil
				}
				line.AppendHistory(question)

				answer, err := a.assistant.Answer(ctx, sessionID, question)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				fmt.Fprintln(out, answer)
			}
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to continue, a new one by default")
	return cmd
}
