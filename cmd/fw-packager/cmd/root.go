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
	"github.com/oshokin/fw-release/internal/service/packager"
	"github.com/oshokin/fw-release/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the release configuration YAML file.
	configPath string
	// preset selects a built-in configuration instead of a file.
	preset string
	// versionOverride replaces the token resolved from git.
	versionOverride string
	// logLevel is the minimum level written to stderr.
	logLevel string
	// strict makes packaging failures fail the build.
	strict bool

	// rootCmd represents the base command for packaging a firmware build.
	rootCmd = &cobra.Command{
		Use:   "fw-packager [build-dir] [project-dir] [program-name]",
		Short: "Package a firmware build into a versioned release archive.",
		Long: `Post-build hook that bundles the compiled firmware with its documentation.

The binary <build-dir>/<program-name>.bin is copied into the archive as
<program-name>_<version>.bin together with the manifest files of the project.
The archive lands in the build directory and is named from the configured template,
by default <version>_<YYYYMMDD-HHMMSS>.zip.

Missing manifest files are skipped with a warning. Packaging failures are logged
without failing the build; pass --strict to exit with an error instead.
A missing binary is never an error.`,
		Args:              cobra.ExactArgs(3),
		PersistentPreRunE: applyLogLevel,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ConfigPath: configPath,
				Preset:     preset,
				BuildDir:   args[0],
				ProjectDir: args[1],
				Program:    args[2],
				Version:    versionOverride,
				Strict:     strict,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the fw-packager CLI and exits with non-zero status on error.
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

	rootCmd.Flags().StringVarP(&preset, "preset", "p", "",
		fmt.Sprintf("built-in configuration to use instead of a file %v", config.PresetNames()))
	rootCmd.Flags().StringVar(&versionOverride, "version", "", "version token to use instead of asking git")

	rootCmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when packaging fails")

	rootCmd.AddCommand(historyCmd, initCmd)
}
