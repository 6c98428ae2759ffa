package packager

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/domain/release"
	"github.com/oshokin/fw-release/internal/logger"
	"github.com/oshokin/fw-release/internal/metrics"
)

var (
	// ErrMissingBinary means the build produced no binary to package.
	ErrMissingBinary = errors.New("no binary file found")
	// ErrArchiveExists means an archive with the rendered name is already present.
	ErrArchiveExists = errors.New("release archive already exists")
	// ErrTargetClashesWithBinary means a manifest entry would shadow the renamed binary.
	ErrTargetClashesWithBinary = errors.New("manifest target collides with the binary entry")
)

// Publisher uploads a finished archive and returns where it went.
type Publisher interface {
	Publish(ctx context.Context, res *release.Result) (string, error)
}

// Recorder stores a finished archive in the release history.
type Recorder interface {
	Add(ctx context.Context, res *release.Result) (*release.Record, error)
}

// Request names the build to package.
type Request struct {
	// BuildDir holds the compiled binary and receives the archive.
	BuildDir string
	// ProjectDir is the root that manifest sources are relative to.
	ProjectDir string
	// Program is the binary base name.
	Program string
	// Version is the token embedded into the archive and binary names.
	Version release.Token
}

// Packager writes release archives according to a configuration.
type Packager struct {
	cfg       *config.Config
	now       func() time.Time
	publisher Publisher
	recorder  Recorder
	metrics   *metrics.Collector
}

// Option configures the packager.
type Option func(*Packager)

// WithClock overrides the time source used for the archive timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Packager) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPublisher uploads every finished archive.
func WithPublisher(publisher Publisher) Option {
	return func(p *Packager) {
		p.publisher = publisher
	}
}

// WithRecorder appends every finished archive to the release history.
func WithRecorder(recorder Recorder) Option {
	return func(p *Packager) {
		p.recorder = recorder
	}
}

// WithMetrics writes packaging metrics after every finished archive.
func WithMetrics(collector *metrics.Collector) Option {
	return func(p *Packager) {
		p.metrics = collector
	}
}

// New creates a packager for a validated configuration.
func New(cfg *config.Config, opts ...Option) *Packager {
	p := &Packager{
		cfg: cfg,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Package runs the pipeline and returns the finished archive.
func (p *Packager) Package(ctx context.Context, req *Request) (*release.Result, error) {
	artifact := release.Artifact{
		Dir:       req.BuildDir,
		Program:   req.Program,
		Extension: p.cfg.BinaryExtension,
	}

	if err := validateBinary(artifact); err != nil {
		return nil, err
	}

	unlock, err := lockBuildDir(ctx, req.BuildDir, p.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}

	defer unlock()

	createdAt := p.now()
	name := release.ArchiveName(p.cfg.ArchiveName, req.Program, req.Version, createdAt)

	res := &release.Result{
		Path:        filepath.Join(req.BuildDir, name),
		Name:        name,
		Program:     req.Program,
		Version:     req.Version,
		BinaryEntry: artifact.VersionedName(req.Version),
		CreatedAt:   createdAt,
	}

	logger.InfoKV(ctx, "Creating release archive", "path", res.Path)

	if err = p.writeArchive(ctx, artifact, req.ProjectDir, res); err != nil {
		return nil, err
	}

	if err = fillChecksum(res); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Build artifacts and documentation saved",
		"path", res.Path,
		"size", humanize.Bytes(uint64(res.Size)), //nolint:gosec // Sizes are never negative.
		"files", len(res.Added)+1,
		"missing", len(res.Missing))

	p.afterPackaging(ctx, res)

	return res, nil
}

// validateBinary checks that the build produced a regular file to package.
func validateBinary(artifact release.Artifact) error {
	if artifact.Program == "" {
		return fmt.Errorf("empty program name: %w", ErrMissingBinary)
	}

	info, err := os.Stat(artifact.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", artifact.Path(), ErrMissingBinary)
		}

		return fmt.Errorf("stat %s: %w", artifact.Path(), err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file: %w", artifact.Path(), ErrMissingBinary)
	}

	return nil
}

// writeArchive creates the archive and fills it. On failure the partial archive is removed.
func (p *Packager) writeArchive(ctx context.Context, artifact release.Artifact, projectDir string, res *release.Result) error {
	archive, err := createArchive(res.Path)
	if err != nil {
		return err
	}

	if err = p.fillArchive(ctx, archive, artifact, projectDir, res); err != nil {
		archive.abort()
		return err
	}

	if err = archive.Close(); err != nil {
		_ = os.Remove(res.Path)
		return fmt.Errorf("finalize archive: %w", err)
	}

	return nil
}

// fillArchive adds the renamed binary followed by the manifest files.
func (p *Packager) fillArchive(
	ctx context.Context,
	archive *archiveWriter,
	artifact release.Artifact,
	projectDir string,
	res *release.Result,
) error {
	stagedPath := filepath.Join(artifact.Dir, res.BinaryEntry)

	cleanup, err := stageBinary(artifact.Path(), stagedPath)
	if err != nil {
		return err
	}

	// The archive is the only durable copy of the renamed binary.
	defer cleanup()

	if err = archive.AddFile(stagedPath, res.BinaryEntry); err != nil {
		return fmt.Errorf("add binary: %w", err)
	}

	logger.DebugKV(ctx, "Added binary", "entry", res.BinaryEntry)

	for _, entry := range p.cfg.Manifest {
		source := filepath.Join(projectDir, filepath.FromSlash(entry.Source))
		target := entry.ArchivePath()
		if target == res.BinaryEntry {
			return fmt.Errorf("%s: %w", entry.Source, ErrTargetClashesWithBinary)
		}

		info, statErr := os.Stat(source)

		switch {
		case errors.Is(statErr, os.ErrNotExist):
			logger.WarnKV(ctx, "Manifest file not found, skipping", "file", source)
			res.Missing = append(res.Missing, entry.Source)

			continue
		case statErr != nil:
			return fmt.Errorf("stat %s: %w", source, statErr)
		case !info.Mode().IsRegular():
			logger.WarnKV(ctx, "Manifest entry is not a regular file, skipping", "file", source)
			res.Missing = append(res.Missing, entry.Source)

			continue
		}

		if err = archive.AddFile(source, target); err != nil {
			return fmt.Errorf("add %s: %w", entry.Source, err)
		}

		logger.DebugKV(ctx, "Added manifest file", "file", source, "entry", target)
		res.Added = append(res.Added, target)
	}

	return nil
}

// fillChecksum stores size and SHA-512 of the finished archive in res.
func fillChecksum(res *release.Result) error {
	size, sum, err := fileSHA512(res.Path)
	if err != nil {
		return fmt.Errorf("checksum archive: %w", err)
	}

	res.Size = size
	res.Checksum = hex.EncodeToString(sum)

	return nil
}

// afterPackaging runs the optional publish, history and metrics steps.
// Their failures are reported but the archive stays valid.
func (p *Packager) afterPackaging(ctx context.Context, res *release.Result) {
	if p.publisher != nil {
		key, err := p.publisher.Publish(ctx, res)
		if err != nil {
			logger.WarnKV(ctx, "Archive upload failed", "error", err)
		} else {
			logger.InfoKV(ctx, "Archive published", "key", key)
		}
	}

	if p.recorder != nil {
		record, err := p.recorder.Add(ctx, res)
		if err != nil {
			logger.WarnKV(ctx, "Release history not updated", "error", err)
		} else {
			logger.DebugKV(ctx, "Release recorded", "id", record.ID)
		}
	}

	if p.metrics != nil {
		p.metrics.Observe(res)

		if err := p.metrics.Flush(); err != nil {
			logger.WarnKV(ctx, "Metrics not written", "path", p.metrics.Path(), "error", err)
		}
	}
}
