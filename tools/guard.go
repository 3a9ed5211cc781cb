package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// Base names ending in one of these are samples and always allowed.
	templateSuffixes = []string{".example", ".sample", ".template"}

	sensitiveNames = []string{".env", ".env.*", "*.pem", "*.key", "*.p12", "*.pfx", "*.jks"}

	// Single names match a whole path component; multi-segment entries match
	// consecutive components.
	sensitiveDirs = []string{".ssh", ".gnupg", ".aws", ".config/gcloud"}
)

// Verdict is the outcome of a Guard check. Reason is empty when Allowed.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Guard decides whether a path may be touched by the file tools.
// The zero Guard applies the built-in sensitive-file rules only.
type Guard struct {
	// Hidden holds extra doublestar patterns from configuration.
	Hidden []string
}

// CheckPath applies the built-in rules to path.
func CheckPath(path string) Verdict {
	return Guard{}.Check(path)
}

// Check classifies path. It never touches file contents and never fails: an
// unresolvable path is judged on its lexical absolute form.
func (g Guard) Check(path string) Verdict {
	name := filepath.Base(path)

	for _, suffix := range templateSuffixes {
		if strings.HasSuffix(name, suffix) {
			return g.checkHidden(path, allow())
		}
	}

	for _, pattern := range sensitiveNames {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return deny(fmt.Sprintf("Skipped: %s is a sensitive file and cannot be accessed.", name))
		}
	}

	resolved := resolvePath(path)
	components := splitComponents(resolved)
	for _, dir := range sensitiveDirs {
		if containsComponents(components, strings.Split(dir, "/")) {
			return deny(fmt.Sprintf("Skipped: path contains sensitive directory '%s'.", dir))
		}
	}

	return g.checkHidden(path, allow())
}

func (g Guard) checkHidden(path string, fallback Verdict) Verdict {
	if len(g.Hidden) == 0 {
		return fallback
	}
	candidates := []string{filepath.ToSlash(filepath.Clean(path))}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, resolvePath(path)); err == nil && !strings.HasPrefix(rel, "..") {
			candidates = append(candidates, filepath.ToSlash(rel))
		}
	}
	for _, pattern := range g.Hidden {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pattern, c); ok {
				return deny(fmt.Sprintf("Skipped: path '%s' is hidden by configuration.", path))
			}
		}
	}
	return fallback
}

// resolvePath returns an absolute path with symlinks resolved. When the path
// does not exist yet, the deepest existing ancestor is resolved and the
// remaining components are appended.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	var rest []string
	cur := abs
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				real = filepath.Join(real, rest[i])
			}
			return real
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

func splitComponents(path string) []string {
	var out []string
	for _, c := range strings.Split(filepath.ToSlash(path), "/") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func containsComponents(components, want []string) bool {
	for i := 0; i+len(want) <= len(components); i++ {
		match := true
		for j := range want {
			if components[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func allow() Verdict { return Verdict{Allowed: true} }

func deny(reason string) Verdict { return Verdict{Reason: reason} }
