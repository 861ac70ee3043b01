package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the server credentials",
		Long: `Check connects to the configured server, logs in and disconnects
without transferring anything. It reports whether the credentials and
TLS settings are usable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.resolve()
			if err != nil {
				return err
			}
			opts, err := s.publisherOptions(0)
			if err != nil {
				return err
			}
			uploader, err := newUploader(opts...)
			if err != nil {
				return err
			}
			result := uploader.TestConnection(cmd.Context(), s.creds)
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			if !result.OK {
				return errors.New("connection test failed")
			}
			return nil
		},
	}
}
