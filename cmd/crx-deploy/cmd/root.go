package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/crx-deploy/internal/config"
	"github.com/oshokin/crx-deploy/internal/service/deployer"
	"github.com/oshokin/crx-deploy/internal/version"
)

// flags holds the persistent flag values shared by every subcommand.
type flags struct {
	configPath string
	host       string
	user       string
	password   string
	retry      int
	logLevel   string
	recompile  bool
}

// newRootCmd builds the command tree. Building it per call keeps flag state
// out of package globals, which lets tests run commands side by side.
func newRootCmd() *cobra.Command {
	f := new(flags)

	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "Deploy content packages to a CRX package manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	persistent := root.PersistentFlags()
	persistent.StringVarP(&f.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	persistent.StringVar(&f.host, "host", "", "server host[:port], e.g. localhost:4502")
	persistent.StringVarP(&f.user, "user", "u", "", "user name")
	persistent.StringVarP(&f.password, "password", "p", "", "password (prefer "+config.EnvPrefix+"_PASSWORD)")
	persistent.IntVar(&f.retry, "retry", 0, "how many times to re-send a timed out request")
	persistent.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newUploadCmd(f),
		newInstallCmd(f),
		newEasyInstallCmd(f),
		newRecompileCmd(f),
	)

	version.AttachCobraVersionCommand(root)

	return root
}

// Execute runs the crx-deploy CLI and exits with non-zero status on error.
func Execute() {
	root := newRootCmd()

	if err := root.Execute(); err != nil {
		printFailure(root.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// options turns flags into deployer options. Only flags the user set
// override settings from the file and the environment.
func (f *flags) options(cmd *cobra.Command, action deployer.Action) *deployer.Options {
	opts := &deployer.Options{
		ConfigPath:         f.configPath,
		ConfigPathExplicit: cmd.Flags().Changed("config"),
		Action:             action,
		Recompile:          f.recompile,
		Overrides: deployer.Overrides{
			Host:     f.host,
			User:     f.user,
			Password: f.password,
			LogLevel: f.logLevel,
		},
	}

	if cmd.Flags().Changed("retry") {
		retry := f.retry
		opts.Overrides.Retry = &retry
	}

	return opts
}

// runDeployer executes opts with a signal-aware context and prints the outcome.
func runDeployer(cmd *cobra.Command, opts *deployer.Options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	result, err := deployer.Run(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, message := range result.Messages {
		_, _ = fmt.Fprintln(out, color.GreenString("OK"), message)
	}

	if result.UploadPath != "" {
		_, _ = fmt.Fprintln(out, "package path:", result.UploadPath)
	}

	return nil
}

func printFailure(w io.Writer, err error) {
	_, _ = fmt.Fprintln(w, color.RedString("FAILED"), err)
}
