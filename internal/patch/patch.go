// Package patch handles game version parsing and current-patch resolution.
package patch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Version is a (major, minor) patch pair. Comparisons are numeric:
// 14.10 is newer than 14.9, which lexical string ordering gets wrong.
type Version struct {
	Major int
	Minor int
}

// Default is returned when neither the version feed nor the store
// has any data to resolve a current patch from.
var Default = Version{Major: 14, Minor: 1}

// Parse parses a short "major.minor" patch string.
func Parse(s string) (Version, bool) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return Version{}, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// IsZero reports whether v is the unset version.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// Short truncates a full game version ("14.23.448.7890") to its first two
// components. Malformed or empty input yields the "0.0" sentinel rather
// than an error; such records are filtered out by retention anyway.
func Short(raw string) string {
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return "0.0"
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return "0.0"
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return "0.0"
	}
	return parts[0] + "." + parts[1]
}

// VersionFeed is the external feed that knows the latest game version.
type VersionFeed interface {
	LatestVersion(ctx context.Context) (string, error)
}

// PatchSource lists the patch versions present in the persisted corpus.
type PatchSource interface {
	DistinctPatches(ctx context.Context) ([]string, error)
}

// Resolver determines the authoritative current patch: the version feed
// first, the highest patch seen in the store as fallback, then Default.
type Resolver struct {
	feed  VersionFeed
	store PatchSource
	log   *slog.Logger
}

func NewResolver(feed VersionFeed, store PatchSource, log *slog.Logger) *Resolver {
	return &Resolver{feed: feed, store: store, log: log}
}

// Resolve never fails; it degrades through the fallback chain instead.
func (r *Resolver) Resolve(ctx context.Context) Version {
	if r.feed != nil {
		raw, err := r.feed.LatestVersion(ctx)
		if err == nil {
			if v, ok := Parse(Short(raw)); ok && !v.IsZero() {
				r.log.Info("current patch from version feed", "patch", v.String())
				return v
			}
		} else {
			r.log.Warn("version feed unreachable, falling back to store", "error", err)
		}
	}

	if r.store != nil {
		patches, err := r.store.DistinctPatches(ctx)
		if err != nil {
			r.log.Warn("could not read patches from store", "error", err)
		} else if best, ok := maxVersion(patches); ok {
			r.log.Info("current patch from stored corpus", "patch", best.String())
			return best
		}
	}

	r.log.Warn("no patch data anywhere, using default", "patch", Default.String())
	return Default
}

func maxVersion(patches []string) (Version, bool) {
	var best Version
	found := false
	for _, p := range patches {
		v, ok := Parse(p)
		if !ok || v.IsZero() {
			continue
		}
		if !found || best.Less(v) {
			best = v
			found = true
		}
	}
	return best, found
}
