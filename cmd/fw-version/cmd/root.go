package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/logger"
	"github.com/oshokin/fw-release/internal/service/versioner"
	"github.com/oshokin/fw-release/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the release configuration YAML file.
	configPath string
	// printFlag switches the output from the bare token to the compiler define.
	printFlag bool
	// platformIO escapes the define for PlatformIO dynamic build flags.
	platformIO bool
	// existingFlags are build flags to combine with the version define.
	existingFlags []string
	// logLevel is the minimum level written to stderr.
	logLevel string

	// rootCmd represents the base command for querying the firmware version.
	rootCmd = &cobra.Command{
		Use:   "fw-version [project-dir]",
		Short: "Print the firmware version derived from git.",
		Long: `Pre-build hook that asks git for a description of the current commit.

Without flags only the version token is printed. With --flag the output is the compiler
define -D GIT_VERSION_STRING="<version>".

PlatformIO splits dynamic build flags like a shell and strips bare quotes, so use
--platformio there; it prints -D GIT_VERSION_STRING=\"<version>\":

    build_flags = !fw-version --platformio

Every --append value is an existing build flag. The combined set is printed with
the version define present exactly once.

When git is missing, the directory is not a repository or the configuration is
broken, a warning is logged and the build continues.`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: applyLogLevel,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			projectDir := "."
			if len(args) > 0 {
				projectDir = args[0]
			}

			options := &versioner.Options{
				ConfigPath: configPath,
				ProjectDir: projectDir,
				Flag:       printFlag,
				PlatformIO: platformIO,
				Append:     existingFlags,
				Output:     cmd.OutOrStdout(),
			}

			return versioner.Run(ctx, options)
		},
	}
)

// Execute runs the fw-version CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}

// applyLogLevel sets the global level from the --log-level flag.
func applyLogLevel(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default: "+config.DefaultConfigFilename+" in the project directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.Flags().BoolVarP(&printFlag, "flag", "f", false, "print the compiler define instead of the bare version")
	rootCmd.Flags().BoolVar(&platformIO, "platformio", false,
		"print the define escaped for PlatformIO dynamic build flags; implies --flag")
	rootCmd.Flags().StringArrayVarP(&existingFlags, "append", "a", nil,
		"existing build flag to keep; implies --flag (repeatable)")
}
