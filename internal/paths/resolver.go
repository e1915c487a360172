// Package paths provides a shared prefix resolver for function definition
// paths. adapters/functionresolver uses a [Resolver] to expand a short
// alias like "core:auth/check" into the "owner/repo/path" form the
// GitHub-backed resolver needs. cmd/nostrgraphd constructs it with an
// empty prefix map, so paths reach the resolver unchanged there.
package paths

import (
	"sort"
	"strings"
)

// Resolver maps named prefixes to "owner/repo" bases. It is nil-safe:
// calling [Resolver.Resolve] on a nil *Resolver returns the input path
// unchanged, matching the nil-safe pattern used by the diagnostics bus.
type Resolver struct {
	prefixes map[string]string // "core:" -> "myorg/nostrgraph-funcs"
	sorted   []string          // prefixes sorted by descending length
}

// New creates a Resolver from a prefix-to-repo map. Keys are prefix names
// without the trailing colon (e.g., "core", not "core:"). Values are
// "owner/repo" strings. Returns nil if the map is empty or nil.
func New(prefixes map[string]string) *Resolver {
	if len(prefixes) == 0 {
		return nil
	}
	m := make(map[string]string, len(prefixes))
	sorted := make([]string, 0, len(prefixes))
	for name, repo := range prefixes {
		key := name
		if !strings.HasSuffix(key, ":") {
			key += ":"
		}
		m[key] = repo
		sorted = append(sorted, key)
	}
	// Sort by descending length so longer prefixes match first.
	// Prevents "lib:" from stealing matches intended for "libext:".
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	return &Resolver{prefixes: m, sorted: sorted}
}

// Resolve expands a prefixed function path into "owner/repo/rel/path"
// form. If no registered prefix matches, the original path is returned
// unchanged (it is assumed to already carry an explicit owner/repo).
func (r *Resolver) Resolve(path string) string {
	if r == nil {
		return path
	}
	for _, prefix := range r.sorted {
		if strings.HasPrefix(path, prefix) {
			rel := strings.TrimPrefix(path, prefix)
			repo := r.prefixes[prefix]
			if rel == "" {
				return repo
			}
			return repo + "/" + rel
		}
	}
	return path
}

// HasPrefix reports whether the path starts with a registered prefix.
func (r *Resolver) HasPrefix(path string) bool {
	if r == nil {
		return false
	}
	for _, prefix := range r.sorted {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Prefixes returns the registered prefix names sorted alphabetically,
// without trailing colons. Useful for documentation and diagnostics.
func (r *Resolver) Prefixes() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.prefixes))
	for prefix := range r.prefixes {
		names = append(names, strings.TrimSuffix(prefix, ":"))
	}
	sort.Strings(names)
	return names
}
