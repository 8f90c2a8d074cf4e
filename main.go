package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/model"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configFlag   string
		dbFlag       string
		serverFlag   string
		portFlag     int
		tlsFlag      bool
		nickFlag     string
		channelsFlag []string
		verboseFlag  bool
	)

	rootCmd := &cobra.Command{
		Use:           "cascade-core",
		Short:         "Headless IRC session core",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag {
				logger.SetLevel(zerolog.DebugLevel)
			}

			desc, err := resolveDescriptor(configFlag, serverFlag, portFlag, tlsFlag, nickFlag, channelsFlag)
			if err != nil {
				return err
			}

			dbPath := dbFlag
			if dbPath == "" {
				dbPath = filepath.Join(DefaultDataDir(), "prefs.db")
			}

			app, err := NewApp(dbPath)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := app.Connect(desc); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			sig := <-sigChan
			logger.Log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Connection descriptor TOML file")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Preferences database path")
	rootCmd.Flags().StringVar(&serverFlag, "server", "", "Server hostname")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Server port")
	rootCmd.Flags().BoolVar(&tlsFlag, "tls", false, "Connect with TLS")
	rootCmd.Flags().StringVar(&nickFlag, "nick", "", "Nickname")
	rootCmd.Flags().StringSliceVar(&channelsFlag, "join", nil, "Channels to join after connecting")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	return rootCmd
}

// resolveDescriptor builds the connection descriptor from the config file
// (when given) with flags layered on top
func resolveDescriptor(configPath, server string, port int, useTLS bool, nick string, channels []string) (model.Descriptor, error) {
	var desc model.Descriptor
	if configPath != "" {
		loaded, err := LoadDescriptor(configPath)
		if err != nil {
			return desc, err
		}
		desc = loaded
	}

	if server != "" {
		desc.Server = server
	}
	if port != 0 {
		desc.Port = port
	}
	if useTLS {
		desc.TLS = true
	}
	if nick != "" {
		desc.Nickname = nick
	}
	if len(channels) > 0 {
		desc.AutoJoin = channels
	}

	if desc.Port == 0 {
		if desc.TLS {
			desc.Port = 6697
		} else {
			desc.Port = 6667
		}
	}
	if desc.Username == "" {
		desc.Username = desc.Nickname
	}
	if desc.Realname == "" {
		desc.Realname = desc.Nickname
	}

	if desc.Server == "" || desc.Nickname == "" {
		return desc, fmt.Errorf("server and nickname are required (use --config or --server/--nick)")
	}
	return desc, nil
}
