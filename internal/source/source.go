// Package source resolves snippet references of the form
// path[@version] to file contents. A version is "current" (working
// tree), "latest" (HEAD), "stdin", or any git revision; retrieving a
// revision shells out to git the way the surrounding tooling does.
package source

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Version specifiers with dedicated behavior.
const (
	VersionCurrent = "current"
	VersionLatest  = "latest"
	VersionStdin   = "stdin"
)

// Ref names one version of one snippet file.
type Ref struct {
	Path    string // empty when the content comes from stdin
	Version string
}

// IsStdin reports whether the ref reads from standard input.
func (r Ref) IsStdin() bool { return r.Version == VersionStdin }

func (r Ref) String() string {
	if r.Path == "" {
		return "@" + r.Version
	}
	return r.Path + "@" + r.Version
}

// Parse splits a command-line argument into path and version.
//
//	models.go          -> {models.go, <default>}
//	models.go@latest   -> {models.go, latest}
//	models.go@b3f2409  -> {models.go, b3f2409}
//	@my-branch         -> {"", my-branch}  (path filled in from the counterpart)
//	-                  -> stdin
func Parse(arg, defaultVersion string) Ref {
	switch {
	case arg == "":
		return Ref{Version: defaultVersion}
	case arg == "-":
		return Ref{Version: VersionStdin}
	case strings.HasPrefix(arg, "@"):
		return Ref{Version: strings.TrimPrefix(arg, "@")}
	}
	if path, version, found := strings.Cut(arg, "@"); found {
		return Ref{Path: path, Version: version}
	}
	return Ref{Path: arg, Version: defaultVersion}
}

// ParsePair resolves the before and after arguments of a migration.
// The after side defaults to the working tree. The before side
// defaults to HEAD when both arguments name the same file (the common
// "what changed since my last commit" case) and to the working tree
// when they name different files. A missing path on either side is
// copied from the other.
func ParsePair(beforeArg, afterArg string) (before, after Ref, err error) {
	beforeDefault := VersionLatest
	if beforeArg != "" && afterArg != "" && beforeArg != afterArg {
		beforeDefault = VersionCurrent
	}

	before = Parse(beforeArg, beforeDefault)
	after = Parse(afterArg, VersionCurrent)

	if before.Path == "" && after.Path == "" && !before.IsStdin() && !after.IsStdin() {
		return Ref{}, Ref{}, fmt.Errorf("supply at least one file name")
	}
	if after.Path == "" && !after.IsStdin() {
		after.Path = before.Path
	}
	if before.Path == "" && !before.IsStdin() {
		before.Path = after.Path
	}
	return before, after, nil
}

// Load returns the snippet content a ref points at. The stdin reader
// is consumed only for stdin refs.
func Load(ref Ref, stdin io.Reader) (string, error) {
	switch ref.Version {
	case VersionStdin:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case VersionCurrent:
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", ref.Path, err)
		}
		return string(data), nil
	default:
		return loadFromGit(ref)
	}
}

// loadFromGit reads the file as of a revision. "latest" means HEAD.
func loadFromGit(ref Ref) (string, error) {
	rev := ref.Version
	if rev == VersionLatest {
		rev = "HEAD"
	}

	abs, err := filepath.Abs(ref.Path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", ref.Path, err)
	}
	dir := filepath.Dir(abs)

	rootOut, err := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("%s: not inside a git repository", ref)
	}
	root := strings.TrimSpace(string(rootOut))

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s inside %s: %w", ref.Path, root, err)
	}

	out, err := exec.Command("git", "-C", root, "show", rev+":"+filepath.ToSlash(rel)).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", ref, err)
	}
	return string(out), nil
}
