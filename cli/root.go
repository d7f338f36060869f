// Package cli is the xmbuild command line.
package cli

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/runtime"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	args := runtime.NewCliArgs()
	rootCmd := &cobra.Command{
		Use:   common.AppName,
		Short: "Build and install software from easyconfigs",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SilenceUsage = true
		},
		// main prints the error
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&args.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&args.SettingsFile, "settings", "", "Settings file (YAML)")

	rootCmd.AddCommand(
		newInstallCommand(args),
		newSanityCheckCommand(args),
		newListCommand(),
		newParamsCommand(),
		newSettingsCommand(args),
	)
	return rootCmd
}

func loadSettings(args *runtime.CliArgs) (*config.Settings, error) {
	s, err := config.LoadSettings(args.SettingsFile)
	if err != nil {
		return nil, err
	}
	if args.Parallel > 0 {
		s.Parallel = args.Parallel
	}
	return s, nil
}

// setupLogger points the global logger at out and the settings' log dir.
func setupLogger(args *runtime.CliArgs, s *config.Settings, out io.Writer) error {
	return logger.InitGlobalLogger(logger.Options{
		Dir:     s.LogDir,
		Verbose: args.Verbose,
		Level:   logrus.InfoLevel,
		Console: out,
	})
}
