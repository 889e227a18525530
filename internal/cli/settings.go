package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"super-mouse-ai/internal/domain"
	"super-mouse-ai/internal/migrate"
)

type showOutput struct {
	Version     int             `yaml:"version"`
	Transcripts int             `yaml:"transcripts"`
	Settings    domain.Settings `yaml:"settings"`
}

func newShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every setting as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withState(cmd.Context(), false, func(s *session) error {
				version, _ := s.reg.Version(cmd.Context())
				out, err := yaml.Marshal(showOutput{
					Version:     version,
					Transcripts: s.reg.TranscriptCount(),
					Settings:    s.reg.Snapshot(),
				})
				if err != nil {
					return fmt.Errorf("encode settings: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
}

func newGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one setting as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withState(cmd.Context(), false, func(s *session) error {
				v, err := s.reg.Value(args[0])
				if err != nil {
					return err
				}
				out, err := json.Marshal(v)
				if err != nil {
					return fmt.Errorf("encode %s: %w", args[0], err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}

func newSetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "set KEY JSON",
		Short:   "Set one setting from a JSON value",
		Example: "  smctl set theme '\"dark\"'\n  smctl set threads 4",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], []byte(args[1])
			if !json.Valid(raw) {
				return fmt.Errorf("value for %s is not valid JSON: %s", key, raw)
			}
			return flags.withState(cmd.Context(), true, func(s *session) error {
				if err := s.reg.SetJSON(key, raw); err != nil {
					return err
				}
				s.logger.Debug("setting changed", zap.String("key", key))
				return nil
			})
		},
	}
}

func newKeysCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List setting names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withState(cmd.Context(), false, func(s *session) error {
				for _, k := range s.reg.Keys() {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			})
		},
	}
}

func newEntriesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "entries",
		Short: "Dump the raw key-value store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withState(cmd.Context(), false, func(s *session) error {
				entries, err := s.sub.Store.Entries(cmd.Context())
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", e.Key, e.Value)
				}
				return nil
			})
		},
	}
}

func newResetCmd(flags *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every persisted setting",
		Long: `Delete every key in the settings store. The transcript file is kept.
Defaults apply on the next start and the legacy migration runs again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear settings without --yes")
			}
			return flags.withState(cmd.Context(), false, func(s *session) error {
				if err := s.reg.ClearData(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "settings cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print smctl and schema versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "smctl %s (schema %d)\n", Version, migrate.CurrentVersion)
		},
	}
}
