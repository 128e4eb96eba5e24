package apt

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// FileEntry is one row of a Release checksum section: an index file path
// relative to dists/<dist>/, its expected hex digest and declared size.
type FileEntry struct {
	Path   string
	Digest string
	Size   int64
}

// Release is the parsed repository metadata document. Checksum sections map
// the algorithm name to index file entries in document order. It is
// read-only after parsing.
type Release struct {
	// Fields holds the simple top-level fields (Origin, Suite, ...).
	Fields map[string]string
	// Sections holds the checksum sections keyed by algorithm name.
	Sections map[string][]FileEntry
}

// parseRelease parses the (already verified or envelope-stripped) Release
// document. Checksum section rows have the form "<digest> <size> <path>",
// one per recognized index file, each indented by a single space.
func parseRelease(text []byte) *Release {
	rel := &Release{
		Fields:   make(map[string]string),
		Sections: make(map[string][]FileEntry),
	}

	var section string
	scanner := bufio.NewScanner(strings.NewReader(string(text)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"):
			if section == "" {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) != 3 {
				continue
			}
			size, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				continue
			}
			rel.Sections[section] = append(rel.Sections[section], FileEntry{
				Digest: fields[0],
				Size:   size,
				Path:   fields[2],
			})
		case strings.Contains(line, ":"):
			parts := strings.SplitN(line, ":", 2)
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			if val == "" {
				section = key
			} else {
				section = ""
				rel.Fields[key] = val
			}
		default:
			section = ""
		}
	}

	return rel
}

// checksumSection selects the checksum section used for the whole run:
// the strongest algorithm present, SHA512 before SHA256. Entries keep their
// document order. Neither section present is fatal.
func (r *Release) checksumSection() (checksumAlgorithm, []FileEntry, error) {
	alg, ok := selectFirstAvailable(releaseAlgorithms, func(a checksumAlgorithm) bool {
		return len(r.Sections[a.Name]) > 0
	})
	if !ok {
		return checksumAlgorithm{}, nil, fmt.Errorf("%w: release metadata carries neither SHA512 nor SHA256 section", ErrNoChecksums)
	}
	return alg, r.Sections[alg.Name], nil
}
