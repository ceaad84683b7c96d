package cli

import (
	"github.com/spf13/cobra"

	"github.com/talentbridge/livesession/internal/config"
)

// Dependencies carries the wiring shared by every subcommand.
type Dependencies struct {
	Config *config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "livesession",
		Short: "Real-time interview rooms and webinars",
		Long:  "Session client for the placement portal: run the reference relay, host or join an interview room, or attend a webinar from the terminal.",
	}

	rootCmd.AddCommand(NewRelayCmd(deps))
	rootCmd.AddCommand(NewInterviewCmd(deps))
	rootCmd.AddCommand(NewWebinarCmd(deps))

	return rootCmd
}
