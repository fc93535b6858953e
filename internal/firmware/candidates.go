package firmware

import (
	"path/filepath"
	"strings"
)

// Basename strips every directory component from a caller-supplied name.
// Both '/' and '\' count as separators regardless of platform.
// This is the only traversal defense and runs before any path is built.
func Basename(name string) string {
	name = strings.TrimRight(name, `/\`)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// BuildCandidates returns the ordered absolute paths probed for name:
//
//  1. <defaultDir>/<base>
//  2. <overrideDir>/<base>
//  3. <overrideDir>/<base>.bin, or <overrideDir>/<base> when base already ends in .bin
//
// Both directories must already be resolved. The list always has three
// entries, duplicates included, so callers can report exactly what was tried.
func BuildCandidates(defaultDir, overrideDir, name string) []string {
	base := Basename(name)

	withBin := base
	if !strings.HasSuffix(base, ".bin") {
		withBin = base + ".bin"
	}

	return []string{
		filepath.Join(defaultDir, base),
		filepath.Join(overrideDir, base),
		filepath.Join(overrideDir, withBin),
	}
}

// IsFirmwareFile reports whether a directory entry name is listed.
func IsFirmwareFile(name string) bool {
	switch filepath.Ext(name) {
	case ".bin", ".hex":
		return true
	default:
		return false
	}
}
