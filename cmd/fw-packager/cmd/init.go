package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/logger"
	"github.com/oshokin/fw-release/internal/service/packager"
)

var (
	// initPreset is the preset written to the new configuration file.
	initPreset string
	// initForce allows replacing an existing configuration file.
	initForce bool

	// initCmd writes a starting configuration for a project.
	initCmd = &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Write a release configuration file based on a preset.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithName(cmd.Context(), "fw-packager")

			projectDir := "."
			if len(args) > 0 {
				projectDir = args[0]
			}

			path, err := packager.InitConfig(projectDir, configPath, initPreset, initForce)
			if err != nil {
				return err
			}

			logger.InfoKV(ctx, "Configuration written", "path", path, "preset", initPreset)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initCmd.Flags().StringVarP(&initPreset, "preset", "p", config.DefaultPreset,
		fmt.Sprintf("preset to start from %v", config.PresetNames()))
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing configuration file")
}
