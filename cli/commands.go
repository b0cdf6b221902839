package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"rostersync/network"
	"rostersync/protocol"
)

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().String("origin", "", "Origin tag of the local player, overrides ROSTER_ORIGIN")
	cmd.Flags().Bool("network-tracking", false, "Track PLAYER_MOVED network state, overrides ROSTER_NETWORK_TRACKING")
	cmd.Flags().String("http", "", "Serve the roster on this address, overrides ROSTER_HTTP_ADDR")
	cmd.Flags().String("format", "text", "Output format: text or json")
}

func (a *app) sessionOptions(cmd *cobra.Command, follow bool) (sessionOptions, error) {
	format, err := parseFormat(stringFlag(cmd, "format", string(FormatText)))
	if err != nil {
		return sessionOptions{}, err
	}
	return sessionOptions{
		origin:          stringFlag(cmd, "origin", a.cfg.Origin),
		networkTracking: boolFlag(cmd, "network-tracking", a.cfg.NetworkTracking),
		httpAddr:        stringFlag(cmd, "http", a.cfg.HTTPAddr),
		format:          format,
		follow:          follow,
	}, nil
}

func newWatchCmd(a *app) *cobra.Command {
	var reconnect time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the roster from a game server websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := stringFlag(cmd, "url", a.cfg.WSURL)
			if url == "" {
				return fmt.Errorf("--url or ROSTER_WS_URL is required")
			}
			opts, err := a.sessionOptions(cmd, true)
			if err != nil {
				return err
			}
			src := &network.WSSource{
				URL:       url,
				Log:       a.log.WithField("component", "ws"),
				Reconnect: reconnect,
			}
			return a.runSession(cmd.Context(), cmd.OutOrStdout(), src, opts)
		},
	}
	cmd.Flags().String("url", "", "Websocket URL, overrides ROSTER_WS_URL")
	cmd.Flags().DurationVar(&reconnect, "reconnect", 2*time.Second, "Pause before redialing a dropped connection (0 disables)")
	addSessionFlags(cmd)
	return cmd
}

func newRelayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Follow the roster from a Redis pub/sub channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.sessionOptions(cmd, true)
			if err != nil {
				return err
			}
			rdb := redis.NewClient(&redis.Options{Addr: stringFlag(cmd, "redis-addr", a.cfg.RedisAddr)})
			defer rdb.Close()
			src := &network.RedisSource{
				Client:  rdb,
				Channel: stringFlag(cmd, "channel", a.cfg.RedisChannel),
				Log:     a.log.WithField("component", "redis"),
			}
			return a.runSession(cmd.Context(), cmd.OutOrStdout(), src, opts)
		},
	}
	cmd.Flags().String("redis-addr", "", "Redis address, overrides ROSTER_REDIS_ADDR")
	cmd.Flags().String("channel", "", "Redis channel, overrides ROSTER_REDIS_CHANNEL")
	addSessionFlags(cmd)
	return cmd
}

func newReplayCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Apply a recorded JSON lines event file and print the roster",
		Long: `Reads one envelope per line ({"t":KIND,"p":PAYLOAD,"o":ORIGIN}) from FILE,
or stdin when FILE is "-", and prints the resulting roster.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.sessionOptions(cmd, follow)
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open replay: %w", err)
				}
				defer f.Close()
				r = f
			}
			src := &network.ReplaySource{Reader: r, Log: a.log.WithField("component", "replay")}
			return a.runSession(cmd.Context(), cmd.OutOrStdout(), src, opts)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Print every roster change instead of the final roster")
	addSessionFlags(cmd)
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish KIND [PAYLOAD]",
		Short: "Publish one roster event on the Redis channel",
		Example: `  rosterctl publish PLAYER_JOINED '{"id":1,"displayName":"Ada"}'
  rosterctl publish GENERIC_MINIGAME_SEQUENCE_RESET`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := protocol.Envelope{T: protocol.Kind(args[0]), V: protocol.Version}
			if len(args) == 2 {
				env.P = json.RawMessage(args[1])
			}
			payload, err := protocol.Decode(env)
			if err != nil {
				return err
			}
			rdb := redis.NewClient(&redis.Options{Addr: stringFlag(cmd, "redis-addr", a.cfg.RedisAddr)})
			defer rdb.Close()
			channel := stringFlag(cmd, "channel", a.cfg.RedisChannel)
			n, err := network.Publish(cmd.Context(), rdb, channel, env.T, payload, stringFlag(cmd, "origin", a.cfg.Origin))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s (%d subscribers)\n", env.T, channel, n)
			return nil
		},
	}
	cmd.Flags().String("redis-addr", "", "Redis address, overrides ROSTER_REDIS_ADDR")
	cmd.Flags().String("channel", "", "Redis channel, overrides ROSTER_REDIS_CHANNEL")
	cmd.Flags().String("origin", "", "Origin tag stamped on the event, overrides ROSTER_ORIGIN")
	return cmd
}
