package versioner

import (
	"strings"

	"github.com/oshokin/fw-release/internal/domain/release"
)

// DefineName is the compile-time symbol carrying the version.
const DefineName = "GIT_VERSION_STRING"

// BuildFlag renders the compiler define for token as a C string literal.
func BuildFlag(token release.Token) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(token.String())

	return "-D " + DefineName + `="` + escaped + `"`
}

// PlatformIOFlag renders BuildFlag with one more layer of escaping.
// PlatformIO splits dynamic build_flags like a shell and drops bare quotes;
// this form reaches the compiler as BuildFlag does.
func PlatformIOFlag(token release.Token) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(BuildFlag(token))
}

// Flags is an explicit set of compiler flags handed to the build.
type Flags []string

// WithVersion returns a copy of f with exactly one version define for token.
// Defines of the symbol already present are dropped.
func (f Flags) WithVersion(token release.Token) Flags {
	return f.withDefine(BuildFlag(token))
}

// withDefine returns a copy of f with every version define replaced by define.
func (f Flags) withDefine(define string) Flags {
	out := make(Flags, 0, len(f)+1)

	for _, flag := range f {
		if definesVersion(flag) {
			continue
		}

		out = append(out, flag)
	}

	return append(out, define)
}

// String joins the flags with spaces, the form build systems expect on stdout.
func (f Flags) String() string {
	return strings.Join(f, " ")
}

// definesVersion reports whether flag is a -D define of DefineName in either spelling.
func definesVersion(flag string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(flag), "-D")
	if !ok {
		return false
	}

	rest = strings.TrimSpace(rest)

	return rest == DefineName || strings.HasPrefix(rest, DefineName+"=")
}
