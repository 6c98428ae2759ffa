package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/domain/release"
	"github.com/oshokin/fw-release/internal/logger"
	"github.com/oshokin/fw-release/internal/metrics"
	"github.com/oshokin/fw-release/internal/repository/history"
	"github.com/oshokin/fw-release/internal/service/versioner"
	"github.com/oshokin/fw-release/internal/storage/objectstore"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to the release configuration.
	// Defaults to fw-release.yaml in ProjectDir; the default preset is used when that file is absent.
	ConfigPath string
	// Preset selects a built-in configuration and ignores any configuration file.
	Preset string
	// BuildDir holds the compiled binary and receives the archive.
	BuildDir string
	// ProjectDir is the project root with the manifest files.
	ProjectDir string
	// Program is the binary base name.
	Program string
	// Version overrides the token; it is resolved from git when empty.
	Version string
	// Strict returns packaging failures instead of only logging them.
	// A missing binary is never a failure.
	Strict bool
}

// Run executes the packaging workflow.
// Failures are logged and swallowed so the build itself still succeeds, unless Strict is set.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fw-packager")
	ctx = logger.WithKV(ctx, "program", opts.Program)

	err := run(ctx, opts)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingBinary):
		logger.ErrorKV(ctx, "Packaging skipped", "error", err)

		return nil
	case opts.Strict:
		return fmt.Errorf("package release: %w", err)
	default:
		logger.ErrorKV(ctx, "Packaging failed, build output left unpackaged", "error", err)

		return nil
	}
}

// run loads the configuration and packages the build.
func run(ctx context.Context, opts *Options) error {
	cfg, err := LoadConfig(opts.ProjectDir, opts.ConfigPath, opts.Preset)
	if err != nil {
		return err
	}

	artifact := release.Artifact{
		Dir:       opts.BuildDir,
		Program:   opts.Program,
		Extension: cfg.BinaryExtension,
	}

	// Checked before any sink is opened so a skipped run writes nothing.
	if err = validateBinary(artifact); err != nil {
		return err
	}

	token := release.Token(opts.Version)
	if token == "" {
		token = versioner.NewResolver(nil, opts.ProjectDir, cfg.Git).Resolve(ctx)
	}

	packagerOptions, closeAll := connectPostSteps(ctx, cfg, opts.ProjectDir)
	defer closeAll()

	req := &Request{
		BuildDir:   opts.BuildDir,
		ProjectDir: opts.ProjectDir,
		Program:    opts.Program,
		Version:    token,
	}

	res, err := New(cfg, packagerOptions...).Package(ctx, req)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Packager completed successfully", "archive", res.Path, "sha512", res.Checksum)

	return nil
}

// LoadConfig picks the configuration for a project: a preset, an explicit file, or the project default.
func LoadConfig(projectDir, configPath, preset string) (*config.Config, error) {
	if preset != "" {
		cfg, err := config.Preset(preset)
		if err != nil {
			return nil, err
		}

		if err = config.Validate(cfg); err != nil {
			return nil, err
		}

		return cfg, nil
	}

	cfg, err := config.Load(config.Resolve(projectDir, configPath), configPath == "")
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	return cfg, nil
}

// ErrConfigExists means InitConfig would overwrite an existing configuration file.
var ErrConfigExists = errors.New("configuration file already exists")

// InitConfig writes the named preset as an editable configuration file and returns its path.
// An existing file is only replaced when force is set.
func InitConfig(projectDir, configPath, preset string, force bool) (string, error) {
	if preset == "" {
		preset = config.DefaultPreset
	}

	cfg, err := config.Preset(preset)
	if err != nil {
		return "", err
	}

	path := config.Resolve(projectDir, configPath)

	if !force {
		if _, err = os.Stat(path); err == nil {
			return "", fmt.Errorf("%s: %w", path, ErrConfigExists)
		}
	}

	if err = config.Save(path, cfg); err != nil {
		return "", err
	}

	return path, nil
}

// ProjectPath resolves a configured path relative to the project directory.
func ProjectPath(projectDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(projectDir, p)
}

// connectPostSteps opens the optional publish, history and metrics sinks.
// Sinks that cannot be opened are skipped with a warning.
func connectPostSteps(ctx context.Context, cfg *config.Config, projectDir string) ([]Option, func()) {
	var (
		options []Option
		closers []func()
	)

	if cfg.Upload.Enabled() {
		store, err := objectstore.New(ctx, cfg.Upload)
		if err != nil {
			logger.WarnKV(ctx, "Object storage unavailable, archive will not be uploaded", "error", err)
		} else {
			options = append(options, WithPublisher(store))
		}
	}

	if cfg.History.Path != "" {
		repo, err := history.Open(ctx, ProjectPath(projectDir, cfg.History.Path))
		if err != nil {
			logger.WarnKV(ctx, "Release history unavailable", "error", err)
		} else {
			options = append(options, WithRecorder(repo))
			closers = append(closers, func() {
				_ = repo.Close()
			})
		}
	}

	if cfg.Metrics.Textfile != "" {
		options = append(options, WithMetrics(metrics.New(ProjectPath(projectDir, cfg.Metrics.Textfile))))
	}

	return options, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}
