package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/conveyr/conveyr/internal/build"
)

// NewVersionCommand returns the command to get the conveyr version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Return the conveyr version",
		Long:  "Return the conveyr version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}
}

func version(_ *cobra.Command, _ []string) error {
	log.Printf("conveyr version %s date %s commit id %s", build.Version, build.Date, build.Commit)
	return nil
}
