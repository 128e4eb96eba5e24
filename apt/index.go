package apt

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"
)

// compressions is the ordered list of index compression formats to try.
// The first candidate that fetches successfully wins for its
// component/architecture prefix; remaining compressions of the same prefix
// are skipped.
var compressions = []string{"gz", "bz2", "xz"}

// ControlEntry is one package paragraph of a decompressed Packages index:
// a mapping of control field name to value. It is produced by the index
// scan and consumed once by the payload fetch.
type ControlEntry map[string]string

// findPackage walks the checksum section's index file entries in document
// order, restricted to the component/architecture/compression candidates of
// this downloader, and returns the first control entry whose Package field
// matches name. A missing index candidate is skipped; a fetched candidate
// with a wrong digest aborts the run.
func (d *Downloader) findPackage(ctx context.Context, alg checksumAlgorithm, entries []FileEntry, name string) (ControlEntry, error) {
	log := zap.L().Sugar()

	wanted := make(map[string]bool)
	for _, component := range d.Source.Components {
		for _, arch := range d.Architectures {
			for _, compression := range compressions {
				wanted[fmt.Sprintf("%s/binary-%s/Packages.%s", component, arch, compression)] = true
			}
		}
	}

	fetched := make(map[string]bool)
	for _, entry := range entries {
		if !wanted[entry.Path] {
			continue
		}
		prefix := strings.TrimSuffix(entry.Path, path.Ext(entry.Path))
		if fetched[prefix] {
			continue
		}

		url := d.Source.distURL(entry.Path)
		data := d.tryFetch(ctx, url)
		if data == nil {
			log.Debugf("index %s not available, trying next candidate", url)
			continue
		}
		if err := alg.verifyDigest(data, entry.Digest); err != nil {
			return nil, fmt.Errorf("index %s: %w", url, err)
		}
		fetched[prefix] = true

		plain, err := decompress(data, path.Ext(entry.Path))
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", url, err)
		}
		log.Debugf("scanning %s (%d bytes) for %s", entry.Path, len(plain), name)
		if found, ok := scanPackages(bytes.NewReader(plain), name); ok {
			return found, nil
		}
	}

	return nil, fmt.Errorf("%w: %s is absent from all index files of %s", ErrPackageNotFound, name, d.Source.URI)
}

// decompress expands an index file by its path extension.
func decompress(data []byte, ext string) ([]byte, error) {
	var r io.Reader
	switch ext {
	case ".gz":
		gzr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gzr.Close()
		r = gzr
	case ".bz2":
		r = bzip2.NewReader(bytes.NewReader(data))
	case ".xz":
		xzr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening xz stream: %w", err)
		}
		r = xzr
	default:
		return nil, fmt.Errorf("unsupported index compression %q", ext)
	}
	return io.ReadAll(r)
}

// scanPackages scans a decompressed Packages stream paragraph by paragraph
// and returns the first entry whose Package field equals name.
func scanPackages(r io.Reader, name string) (ControlEntry, bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entry   = make(ControlEntry)
		lastKey string
	)
	flush := func() bool {
		hit := len(entry) > 0 && entry["Package"] == name
		if !hit {
			entry = make(ControlEntry)
			lastKey = ""
		}
		return hit
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.TrimSpace(line) == "":
			if flush() {
				return entry, true
			}
		case strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"):
			// Continuation of a folded field.
			if lastKey != "" {
				entry[lastKey] += "\n" + line
			}
		default:
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}
			lastKey = strings.TrimSpace(parts[0])
			entry[lastKey] = strings.TrimSpace(parts[1])
		}
	}
	if flush() {
		return entry, true
	}
	return nil, false
}
