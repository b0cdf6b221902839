// Package cli implements the rosterctl command line.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rostersync/config"
	"rostersync/logging"
)

type app struct {
	cfg config.Config
	log *logrus.Logger

	envFiles  []string
	logLevel  string
	logFormat string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "rosterctl",
		Short: "Follow a minigame lobby roster from a live event stream",
		Long: `rosterctl keeps a local roster of lobby participants in sync with the
roster events pushed by a game server, from a websocket, a Redis channel or
a recorded JSON lines file, and can serve that roster over HTTP.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := cmd.PersistentFlags()
	pf.StringSliceVar(&a.envFiles, "env-file", nil, ".env files to load (default .env)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level, overrides ROSTER_LOG_LEVEL")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format text or json, overrides ROSTER_LOG_FORMAT")

	cmd.AddCommand(newWatchCmd(a), newRelayCmd(a), newReplayCmd(a), newPublishCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	l, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, l
	return nil
}

// stringFlag returns the flag value when it was set explicitly, fallback otherwise.
func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}

func boolFlag(cmd *cobra.Command, name string, fallback bool) bool {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetBool(name)
		return v
	}
	return fallback
}
