package main

import (
	"github.com/spf13/cobra"

	"github.com/sitepush/sitepush/publish"
)

// newUploader builds the Uploader the commands run against. Tests swap
// it for a publish.Fake.
var newUploader = func(opts ...publish.Option) (publish.Uploader, error) {
	return publish.New(opts...)
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "sitepush",
		Short: "Publish static-site exports over FTP/FTPS",
		Long: `sitepush uploads the files of an exported static site to an FTP or
FTPS server, creating the remote directory if needed.

Connection settings come from flags, the SITEPUSH_PASSWORD environment
variable, and an INI config file (default ~/.sitepush.ini), in that
order of precedence:

    [remote]
    host = ftp.example.com
    port = 21
    user = deploy
    password = hunter2
    dir = /public_html
    tls = true`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(g.jsonLog, g.verbose)
		},
	}

	g.bind(root.PersistentFlags())
	root.AddCommand(
		newPushCommand(g),
		newCheckCommand(g),
		newVersionCommand(),
	)
	return root
}
