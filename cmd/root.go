package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hubcull",
		Short:         "Cull idle hub sessions and accounts",
		Long:          "hubcull reconciles a hub's running sessions and their accounts against an idleness/age policy, stopping sessions and deleting accounts that exceed it.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newCullCmd(),
	)

	return rootCmd
}
