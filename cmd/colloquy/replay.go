package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/colloquy/internal/chatstore"
	"github.com/capitalize-ai/colloquy/internal/model"
	"github.com/capitalize-ai/colloquy/pkg/logger"
)

func newReplayCmd() *cobra.Command {
	var collapsed bool

	cmd := &cobra.Command{
		Use:   "replay [file|-]",
		Short: "Render a saved frame stream",
		Long: "Reads a newline-delimited frame stream, as written by the chat endpoint or\n" +
			"'colloquy ask --raw', and renders every question with its discussion.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			store := chatstore.NewStore(chatstore.New())
			if _, err := chatstore.Ingest(cmd.Context(), in, store, logger.Global()); err != nil {
				return err
			}

			state := store.Snapshot()
			if !collapsed {
				for _, t := range state.Threads() {
					state = store.Dispatch(toggle(t.ParentMessageID))
				}
			}
			renderReplay(cmd.OutOrStdout(), newTheme(cmd.OutOrStdout()), state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&collapsed, "collapsed", false, "hide the discussion panels")
	return cmd
}

func toggle(parentMessageID string) chatstore.Reducer {
	return func(s chatstore.State) chatstore.State { return s.ToggleThread(parentMessageID) }
}

// renderReplay prints the timeline with each expanded discussion placed
// right before the answer it produced.
func renderReplay(w io.Writer, th theme, state chatstore.State) {
	views := map[string]chatstore.ThreadView{}
	for _, v := range chatstore.BuildThreadViews(state.Messages) {
		views[v.ParentMessageID] = v
	}

	for _, m := range chatstore.Timeline(state.Messages) {
		if m.IsFinal {
			if t, ok := state.Thread(m.ParentMessageID); ok && t.Expanded {
				if v, ok := views[m.ParentMessageID]; ok {
					renderThread(w, th, v)
					fmt.Fprintln(w)
				}
			}
		}
		renderTimeline(w, th, []model.Message{m})
	}
}
