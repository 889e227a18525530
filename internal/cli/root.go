// Package cli implements smctl, a command line view of the persisted settings
// and transcript history.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"super-mouse-ai/internal/config"
	"super-mouse-ai/internal/logging"
	"super-mouse-ai/internal/state"
)

// Version is stamped at build time.
var Version = "dev"

type rootFlags struct {
	optionsPath string
	verbose     bool
}

// NewRootCommand builds the smctl command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "smctl",
		Short:        "Inspect and edit super-mouse-ai settings",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.optionsPath, "options", "", "path to options.yaml (default: $XDG_CONFIG_HOME/super-mouse-ai/options.yaml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level to stderr")

	root.AddCommand(
		newShowCmd(flags),
		newGetCmd(flags),
		newSetCmd(flags),
		newKeysCmd(flags),
		newEntriesCmd(flags),
		newTranscriptsCmd(flags),
		newRecommendCmd(flags),
		newDoctorCmd(flags),
		newResetCmd(flags),
		newVersionCmd(),
	)
	return root
}

func (f *rootFlags) options() (config.Options, error) {
	return config.LoadOptions(config.ResolveOptionsPath(f.optionsPath))
}

// session is an opened and loaded subsystem for one command.
type session struct {
	opts   config.Options
	sub    *state.Subsystem
	reg    *config.Registry
	logger *zap.Logger
}

// withState opens the subsystem, loads it, runs fn and saves on the way out.
// When save is false the store is released without writing memory back.
func (f *rootFlags) withState(ctx context.Context, save bool, fn func(s *session) error) (err error) {
	opts, err := f.options()
	if err != nil {
		return err
	}

	level := opts.LogLevel
	if f.verbose {
		level = "debug"
	}
	logs, err := logging.New(logging.Config{Level: level, Path: opts.LogFile, Console: f.verbose})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logs.Close()

	sub, err := state.Open(opts, logs.Logger)
	if err != nil {
		return err
	}
	defer func() {
		var closeErr error
		if save {
			closeErr = sub.Close(ctx)
		} else {
			closeErr = sub.Release()
		}
		if err == nil {
			err = closeErr
		}
	}()

	sub.Registry.Init(ctx)
	return fn(&session{opts: opts, sub: sub, reg: sub.Registry, logger: logs.Logger.Named("cli")})
}
