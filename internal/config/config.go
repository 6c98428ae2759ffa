package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/fw-release/internal/domain/release"
)

// Config describes how a firmware release is versioned and packaged.
type Config struct {
	// Preset names the built-in configuration this file starts from.
	Preset string `yaml:"preset,omitempty"`
	// ArchiveName is the archive name template without extension.
	ArchiveName string `yaml:"archive_name,omitempty"`
	// BinaryExtension is the extension of the compiled firmware image.
	BinaryExtension string `yaml:"binary_extension,omitempty"`
	// Manifest lists the auxiliary files bundled with the binary.
	Manifest []release.Entry `yaml:"manifest,omitempty"`
	// Git configures the describe query.
	Git Git `yaml:"git,omitempty"`
	// LockTimeout bounds the wait for the build directory lock.
	LockTimeout time.Duration `yaml:"lock_timeout,omitempty"`
	// History configures the release ledger. Disabled when Path is empty.
	History History `yaml:"history,omitempty"`
	// Metrics configures the textfile metrics output. Disabled when Textfile is empty.
	Metrics Metrics `yaml:"metrics,omitempty"`
	// Upload configures publishing to S3-compatible storage. Disabled when Endpoint is empty.
	Upload Upload `yaml:"upload,omitempty"`
}

// Git configures the version query.
type Git struct {
	Binary  string        `yaml:"binary,omitempty"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// History configures the SQLite release ledger.
type History struct {
	Path string `yaml:"path,omitempty"`
}

// Metrics configures the Prometheus textfile output.
type Metrics struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Upload holds the S3-compatible storage settings.
type Upload struct {
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	UseSSL          bool   `yaml:"use_ssl,omitempty"`
	Bucket          string `yaml:"bucket,omitempty"`
	Region          string `yaml:"region,omitempty"`
	// Prefix is prepended to the archive name to form the object key.
	Prefix string `yaml:"prefix,omitempty"`
}

// Enabled reports whether publishing is configured.
func (u Upload) Enabled() bool {
	return u.Endpoint != ""
}

const (
	// DefaultConfigFilename is looked up in the project directory.
	DefaultConfigFilename = "fw-release.yaml"

	// DefaultGitBinary is the VCS executable.
	DefaultGitBinary = "git"

	// DefaultGitTimeout bounds the describe query.
	DefaultGitTimeout = 10 * time.Second

	// DefaultLockTimeout bounds the wait for the build directory lock.
	DefaultLockTimeout = 30 * time.Second

	// DefaultFilePermissions is used when saving configuration.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errTemplateRequired is returned when the archive name template is empty.
	errTemplateRequired = errors.New("archive name template must be provided")
	// errTemplateNoTimestamp is returned when the template cannot produce unique names.
	errTemplateNoTimestamp = errors.New("archive name template must contain " + release.PlaceholderTimestamp)
	// errTemplateSeparator is returned when the template would escape the build directory.
	errTemplateSeparator = errors.New("archive name template must not contain path separators")
	// errEmptyEntrySource is returned for manifest entries without a source.
	errEmptyEntrySource = errors.New("manifest entry source must be provided")
	// errDuplicateTarget is returned when two manifest entries land on the same archive path.
	errDuplicateTarget = errors.New("duplicate archive path in manifest")
	// errSourceOutsideProject is returned for sources that climb out of the project directory.
	errSourceOutsideProject = errors.New("manifest source must stay inside the project directory")
	// errTargetOutsideArchive is returned for targets that would unpack outside the extraction directory.
	errTargetOutsideArchive = errors.New("manifest target must be a relative path inside the archive")
	// errBucketRequired is returned when upload is enabled without a bucket.
	errBucketRequired = errors.New("upload bucket must be provided")
)

// DefaultGitArgs is the describe query: nearest tag, distance and hash, falling back to the bare hash.
func DefaultGitArgs() []string {
	return []string{"describe", "--always", "--long"}
}

// Resolve returns the path of the configuration file for a project.
// An explicit path wins; otherwise DefaultConfigFilename inside projectDir.
func Resolve(projectDir, explicit string) string {
	if explicit != "" {
		return explicit
	}

	return filepath.Join(projectDir, DefaultConfigFilename)
}

// Load reads configuration from path.
// When path does not exist and optional is true, the default preset is returned.
func Load(path string, optional bool) (*Config, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = applyPreset(&cfg); err != nil {
		return nil, err
	}

	expandSecrets(&cfg.Upload)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Upload credentials may be stored inline.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for optional fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ArchiveName == "" {
		return errTemplateRequired
	}

	if !strings.Contains(cfg.ArchiveName, release.PlaceholderTimestamp) {
		return errTemplateNoTimestamp
	}

	if strings.ContainsAny(cfg.ArchiveName, `/\`) {
		return errTemplateSeparator
	}

	if cfg.BinaryExtension == "" {
		cfg.BinaryExtension = release.DefaultBinaryExtension
	}

	targets := make(map[string]struct{}, len(cfg.Manifest))

	for i, entry := range cfg.Manifest {
		if strings.TrimSpace(entry.Source) == "" {
			return fmt.Errorf("manifest entry %d: %w", i, errEmptyEntrySource)
		}

		if err := validateEntryPaths(entry); err != nil {
			return fmt.Errorf("manifest entry %d: %w", i, err)
		}

		target := entry.ArchivePath()
		if _, seen := targets[target]; seen {
			return fmt.Errorf("%s: %w", target, errDuplicateTarget)
		}

		targets[target] = struct{}{}
	}

	if cfg.Git.Binary == "" {
		cfg.Git.Binary = DefaultGitBinary
	}

	if len(cfg.Git.Args) == 0 {
		cfg.Git.Args = DefaultGitArgs()
	}

	if cfg.Git.Timeout <= 0 {
		cfg.Git.Timeout = DefaultGitTimeout
	}

	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	if cfg.Upload.Enabled() && cfg.Upload.Bucket == "" {
		return errBucketRequired
	}

	return nil
}

// validateEntryPaths rejects entries reaching outside the project or the archive root.
// Both separators are checked since archives are unpacked on Windows too.
func validateEntryPaths(entry release.Entry) error {
	if hasParentSegment(entry.Source) {
		return fmt.Errorf("%s: %w", entry.Source, errSourceOutsideProject)
	}

	target := entry.Target
	if target == "" {
		return nil
	}

	if isAbsolute(target) || hasParentSegment(target) || entry.ArchivePath() == "." {
		return fmt.Errorf("%s: %w", target, errTargetOutsideArchive)
	}

	return nil
}

// hasParentSegment reports whether p contains a ".." element.
func hasParentSegment(p string) bool {
	segments := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})

	for _, segment := range segments {
		if segment == ".." {
			return true
		}
	}

	return false
}

// isAbsolute reports rooted paths and Windows drive paths.
func isAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || filepath.IsAbs(p) {
		return true
	}

	return len(p) >= 2 && p[1] == ':'
}

// applyPreset fills fields left empty in cfg from the named preset.
func applyPreset(cfg *Config) error {
	if cfg.Preset == "" {
		if cfg.ArchiveName != "" || len(cfg.Manifest) > 0 {
			return nil
		}

		cfg.Preset = DefaultPreset
	}

	base, err := Preset(cfg.Preset)
	if err != nil {
		return err
	}

	if cfg.ArchiveName == "" {
		cfg.ArchiveName = base.ArchiveName
	}

	if cfg.BinaryExtension == "" {
		cfg.BinaryExtension = base.BinaryExtension
	}

	if len(cfg.Manifest) == 0 {
		cfg.Manifest = base.Manifest
	}

	return nil
}

// expandSecrets resolves ${VAR} references in upload credentials.
func expandSecrets(u *Upload) {
	u.AccessKeyID = os.ExpandEnv(u.AccessKeyID)
	u.SecretAccessKey = os.ExpandEnv(u.SecretAccessKey)
}
