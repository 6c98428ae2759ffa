package versioner

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/domain/release"
	"github.com/oshokin/fw-release/internal/logger"
)

// Options contains inputs for the version hook entry point.
type Options struct {
	// ConfigPath is an optional path to the release configuration.
	ConfigPath string
	// ProjectDir is the working tree to describe.
	ProjectDir string
	// Flag prints the compiler define instead of the bare token.
	Flag bool
	// PlatformIO escapes the define for PlatformIO dynamic build flags. Implies Flag.
	PlatformIO bool
	// Append holds existing build flags; the combined set is printed. Implies Flag.
	Append []string
	// Commander runs git. Defaults to ExecCommander.
	Commander Commander
	// Output receives the result line. Defaults to os.Stdout.
	Output io.Writer
}

// Run resolves the version and prints it in the requested form.
// A broken configuration falls back to the defaults so the build is never blocked.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "fw-version")

	cfg, err := config.Load(config.Resolve(opts.ProjectDir, opts.ConfigPath), opts.ConfigPath == "")
	if err != nil {
		logger.WarnKV(ctx, "Configuration unusable, using defaults", "error", err)

		cfg = config.Default()
	}

	token := NewResolver(opts.Commander, opts.ProjectDir, cfg.Git).Resolve(ctx)

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	if _, err = fmt.Fprintln(output, render(token, opts)); err != nil {
		return fmt.Errorf("print version: %w", err)
	}

	return nil
}

// render formats token as requested by opts.
func render(token release.Token, opts *Options) string {
	define := BuildFlag(token)
	if opts.PlatformIO {
		define = PlatformIOFlag(token)
	}

	switch {
	case len(opts.Append) > 0:
		return Flags(opts.Append).withDefine(define).String()
	case opts.Flag, opts.PlatformIO:
		return define
	default:
		return token.String()
	}
}
