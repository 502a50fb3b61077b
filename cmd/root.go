package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "collab",
		Short:         "collab: inspect and exercise the collaborative editing core",
		Long:          "collab hosts the real-time collaborative editing core from the terminal: list stored documents, replay scripted multi-editor sessions against a live session registry, and inspect the resulting session state.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newDocsCmd(app),
		newSimulateCmd(app),
	)

	return rootCmd
}
