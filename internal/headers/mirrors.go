package headers

import "strings"

// SnapshotMirrors are web-archive hosts that serve captured pages inside a
// fixed container and need special handling when rendering.
var SnapshotMirrors = []string{
	"archive.ph",
	"archive.is",
	"archive.today",
	"archive.li",
	"archive.vn",
	"archive.md",
}

// IsSnapshotMirror reports whether rawURL points at a snapshot mirror.
func IsSnapshotMirror(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, m := range SnapshotMirrors {
		if strings.Contains(host, m) {
			return true
		}
	}
	return false
}
