package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/oshokin/fw-release/internal/domain/release"
	"github.com/oshokin/fw-release/internal/logger"
	"github.com/oshokin/fw-release/internal/repository/history"
	"github.com/oshokin/fw-release/internal/service/packager"
)

var errHistoryDisabled = errors.New("release history is not configured (set history.path)")

var (
	// historyLimit caps the number of printed releases.
	historyLimit int
	// historyProgram filters releases by binary name.
	historyProgram string

	// historyCmd prints the release ledger of a project.
	historyCmd = &cobra.Command{
		Use:   "history [project-dir]",
		Short: "List recently packaged releases.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithName(cmd.Context(), "fw-packager")

			projectDir := "."
			if len(args) > 0 {
				projectDir = args[0]
			}

			cfg, err := packager.LoadConfig(projectDir, configPath, "")
			if err != nil {
				return err
			}

			if cfg.History.Path == "" {
				return errHistoryDisabled
			}

			repo, err := history.Open(ctx, packager.ProjectPath(projectDir, cfg.History.Path))
			if err != nil {
				return err
			}

			defer func() {
				_ = repo.Close()
			}()

			records, err := repo.List(ctx, historyProgram, historyLimit)
			if err != nil {
				return err
			}

			return printHistory(cmd, records)
		},
	}
)

// printHistory writes records as an aligned table.
func printHistory(cmd *cobra.Command, records []release.Record) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "CREATED\tPROGRAM\tVERSION\tARCHIVE\tSIZE\tMISSING")

	for _, record := range records {
		missing := "-"
		if files := record.MissingFiles(); len(files) > 0 {
			missing = strings.Join(files, ", ")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			record.CreatedAt,
			record.Program,
			record.Version,
			record.ArchiveName,
			humanize.Bytes(uint64(record.Size)), //nolint:gosec // Sizes are never negative.
			missing)
	}

	return w.Flush()
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultListLimit, "maximum number of releases to print")
	historyCmd.Flags().StringVar(&historyProgram, "program", "", "only show releases of this program")
}
