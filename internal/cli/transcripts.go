package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"super-mouse-ai/internal/domain"
)

var errNoTranscript = errors.New("no transcript selected")

func newTranscriptsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transcripts",
		Aliases: []string{"tx"},
		Short:   "Browse and edit the transcript history",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List transcripts; the current one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withState(cmd.Context(), false, func(s *session) error {
				current := s.reg.Index.Get()
				for i, rec := range s.reg.Transcripts().Records() {
					mark := " "
					if i == current {
						mark = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %3d  %s\n", mark, i, describe(rec))
				}
				return nil
			})
		},
	}

	var model string
	add := &cobra.Command{
		Use:   "add TEXT",
		Short: "Append a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withState(cmd.Context(), true, func(s *session) error {
				s.reg.AddTranscription(domain.TranscriptRecord{
					Text:     args[0],
					Model:    model,
					Provider: domain.ProviderLocal,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "%d transcripts\n", s.reg.TranscriptCount())
				return nil
			})
		},
	}
	add.Flags().StringVar(&model, "model", "", "model file that produced the text")

	edit := &cobra.Command{
		Use:   "edit TEXT",
		Short: "Replace the current transcript's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withState(cmd.Context(), true, func(s *session) error {
				if !s.reg.EditTranscription(args[0]) {
					return errNoTranscript
				}
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Delete the current transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withState(cmd.Context(), true, func(s *session) error {
				if !s.reg.RemoveCurrentTranscription() {
					return errNoTranscript
				}
				return nil
			})
		},
	}

	move := func(use, short string, step func(s *session) bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return flags.withState(cmd.Context(), true, func(s *session) error {
					if !step(s) {
						fmt.Fprintln(cmd.ErrOrStderr(), "already at the boundary")
					}
					rec, ok := s.reg.CurrentTranscript()
					if !ok {
						return errNoTranscript
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d  %s\n", s.reg.Index.Get(), describe(rec))
					return nil
				})
			},
		}
	}

	cmd.AddCommand(
		list, add, edit, remove,
		move("next", "Select the next transcript", func(s *session) bool { return s.reg.NextIndex() }),
		move("prev", "Select the previous transcript", func(s *session) bool { return s.reg.PrevIndex() }),
	)
	return cmd
}

func describe(rec domain.TranscriptRecord) string {
	text := strings.Join(strings.Fields(rec.Text), " ")
	if rec.Model == "" {
		return text
	}
	return fmt.Sprintf("%s  [%s]", text, rec.Model)
}
