package main

import(
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sunstack",
		Short:         "Stack solar/lunar SER captures into a single registered, derotated image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newStackCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newThreshTestCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the sunstack version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("sunstack", version)
		},
	})

	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sunstack:", err)
		os.Exit(1)
	}
}
