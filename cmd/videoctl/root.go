package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

type commandContext struct {
	server  string
	token   string
	asJSON  bool
	timeout int
}

func (c *commandContext) client() *apiClient {
	return newAPIClient(c.server, c.token, c.timeout)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "videoctl",
		Short:         "Manage Sora video jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	server := os.Getenv("VIDEOCTL_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&ctx.server, "server", server, "Base URL of the sorastudio API")
	rootCmd.PersistentFlags().StringVar(&ctx.token, "token", os.Getenv("VIDEOCTL_TOKEN"), "Bearer token when the API requires auth")
	rootCmd.PersistentFlags().BoolVar(&ctx.asJSON, "json", false, "Print raw JSON instead of tables")
	rootCmd.PersistentFlags().IntVar(&ctx.timeout, "timeout", 60, "Request timeout in seconds")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newGetCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newRenameCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newRefreshCommand(ctx))
	rootCmd.AddCommand(newDownloadCommand(ctx))
	rootCmd.AddCommand(newCostCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))

	return rootCmd
}
