package main

import (
	"github.com/goliatone/go-console-auth/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	inMemory   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "console",
		Short:         "Paints company business console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "console.yaml", "config file")
	cmd.PersistentFlags().BoolVar(&opts.inMemory, "in-memory", false, "use in memory identity and profile stores")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newAdminCmd(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}
