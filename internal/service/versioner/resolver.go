package versioner

import (
	"context"
	"strings"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/domain/release"
	"github.com/oshokin/fw-release/internal/logger"
)

// Resolver queries the VCS for the version token of a working tree.
type Resolver struct {
	commander Commander
	dir       string
	binary    string
	args      []string
}

// NewResolver creates a resolver for the project in dir using the git settings from cfg.
func NewResolver(commander Commander, dir string, cfg config.Git) *Resolver {
	binary := cfg.Binary
	if binary == "" {
		binary = config.DefaultGitBinary
	}

	args := cfg.Args
	if len(args) == 0 {
		args = config.DefaultGitArgs()
	}

	if commander == nil {
		commander = ExecCommander{Timeout: cfg.Timeout}
	}

	return &Resolver{
		commander: commander,
		dir:       dir,
		binary:    binary,
		args:      append([]string(nil), args...),
	}
}

// Resolve returns the trimmed describe output.
// Any failure is logged and yields an empty token.
func (r *Resolver) Resolve(ctx context.Context) release.Token {
	result, err := r.commander.Run(ctx, r.dir, r.binary, r.args...)
	if err != nil {
		logger.WarnKV(ctx, "Version query could not run, using empty version",
			"command", r.binary, "error", err)

		return ""
	}

	if !result.Success() {
		logger.WarnKV(ctx, "Version query failed, using empty version",
			"command", r.binary, "exit_code", result.ExitCode, "stderr", result.Stderr)

		return ""
	}

	token := release.Token(strings.TrimSpace(result.Output))
	if token == "" {
		logger.WarnKV(ctx, "Version query returned nothing", "command", r.binary)
	}

	logger.Infof(ctx, "Git-Version: %s", token)

	return token
}
