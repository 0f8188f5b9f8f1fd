package plugins

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DetectResult is the outcome of format detection.
type DetectResult struct {
	Detected bool   `json:"detected"`
	Format   string `json:"format,omitempty"`
	Reason   string `json:"reason"`
}

// sniffLimit bounds how much content detection looks at.
const sniffLimit = 64 << 10

// compressed suffixes are looked through when matching extensions.
var compressed = []string{".xz", ".gz"}

// DetectBytes picks a reader for a file. A registered extension wins;
// otherwise the reader whose markers start the most distinct lines of
// data is chosen, ties going to the first format by name.
func DetectBytes(name string, data []byte) *DetectResult {
	base := strings.ToLower(filepath.Base(name))
	for _, suffix := range compressed {
		base = strings.TrimSuffix(base, suffix)
	}
	if ext := filepath.Ext(base); ext != "" {
		mu.RLock()
		format, ok := extensions[ext]
		mu.RUnlock()
		if ok {
			return &DetectResult{Detected: true, Format: format, Reason: "extension " + ext}
		}
	}

	lines := sniffLines(data)
	var (
		best    string
		bestHit []string
	)
	for _, p := range List() {
		var hits []string
		for _, marker := range p.Manifest.Markers {
			if matchesLine(lines, marker) {
				hits = append(hits, marker)
			}
		}
		if p.Sniff != nil && p.Sniff(sniff(data)) {
			hits = append(hits, "content")
		}
		if len(hits) > len(bestHit) {
			best, bestHit = p.Manifest.Format, hits
		}
	}
	if best == "" {
		return &DetectResult{Reason: "no extension or content marker matched"}
	}
	return &DetectResult{
		Detected: true,
		Format:   best,
		Reason:   fmt.Sprintf("content markers %q", bestHit),
	}
}

func sniff(data []byte) []byte {
	if len(data) > sniffLimit {
		return data[:sniffLimit]
	}
	return data
}

func sniffLines(data []byte) []string {
	lines := strings.Split(string(sniff(data)), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(strings.TrimRight(l, "\r"), "\ufeff")
	}
	return lines
}

func matchesLine(lines []string, marker string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, marker) {
			return true
		}
	}
	return false
}
