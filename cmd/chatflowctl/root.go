package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/chatflow-backend/internal/chatflow/generation"
)

const (
	keyServer  = "server"
	keyTimeout = "timeout"
	keyConfig  = "config"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "chatflowctl",
		Short:         "Manage chatflows on a chatflow server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v)
		},
	}
	root.PersistentFlags().String(keyServer, "http://localhost:8080", "chatflow server base URL")
	root.PersistentFlags().Duration(keyTimeout, 30*time.Second, "per-request timeout")
	root.PersistentFlags().String(keyConfig, "", "config file (default ./chatflowctl.yaml or $HOME/.chatflowctl.yaml)")
	_ = v.BindPFlag(keyServer, root.PersistentFlags().Lookup(keyServer))
	_ = v.BindPFlag(keyTimeout, root.PersistentFlags().Lookup(keyTimeout))
	_ = v.BindPFlag(keyConfig, root.PersistentFlags().Lookup(keyConfig))

	clientFor := func() *apiClient {
		return newAPIClient(v.GetString(keyServer), v.GetDuration(keyTimeout))
	}
	root.AddCommand(
		newCreateCmd(clientFor),
		newStatusCmd(clientFor),
		newWaitCmd(clientFor),
		newPublishCmd(clientFor),
		newSubmissionsCmd(clientFor),
	)
	return root
}

// loadConfig layers flags over CHATFLOWCTL_* env over an optional config file.
func loadConfig(v *viper.Viper) error {
	v.SetEnvPrefix("CHATFLOWCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString(keyConfig); file != "" {
		v.SetConfigFile(file)
		return v.ReadInConfig()
	}
	v.SetConfigName("chatflowctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

// exitCode separates "still running" from real failures so scripts can retry.
func exitCode(err error) int {
	if errors.Is(err, generation.ErrPollTimeout) {
		return 2
	}
	return 1
}
