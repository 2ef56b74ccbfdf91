package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/crx-deploy/internal/service/deployer"
)

func newUploadCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <package.zip>",
		Short: "Upload a package archive without installing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := f.options(cmd, deployer.ActionUpload)
			opts.PackagePath = args[0]

			return runDeployer(cmd, opts)
		},
	}
}

func newInstallCmd(f *flags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "install --path /etc/packages/<group>/<package>.zip",
		Short: "Install a package that is already in the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := f.options(cmd, deployer.ActionInstall)
			opts.InstallPath = path

			return runDeployer(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "repository path of the package")
	cmd.Flags().BoolVar(&f.recompile, "recompile", false, "recompile JSPs after installing")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func newEasyInstallCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "easy-install <package.zip>",
		Short: "Upload a package archive and install it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := f.options(cmd, deployer.ActionEasyInstall)
			opts.PackagePath = args[0]

			return runDeployer(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&f.recompile, "recompile", false, "recompile JSPs after installing")

	return cmd
}

func newRecompileCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "recompile",
		Short: "Recompile JSPs through the Sling JSP console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeployer(cmd, f.options(cmd, deployer.ActionRecompile))
		},
	}
}
