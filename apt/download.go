package apt

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Downloader fetches single binary packages from one APT repository.
// A Downloader is safe for concurrent Download calls: each call works in
// its own scratch directory and shares no mutable state. Calls for the same
// package are not deduplicated.
type Downloader struct {
	// Source is the parsed repository specification.
	Source Source
	// Key is the optional repository public key (armored or binary).
	// Without it, downloads proceed unauthenticated with a warning.
	Key []byte
	// Architectures are the binary architectures to search, in order.
	Architectures []string
	// Client overrides the HTTP client; nil uses the package default.
	Client *http.Client
	// Progress enables a terminal progress bar during the payload fetch.
	Progress bool
}

// NewDownloader parses the repository specification line and returns a
// Downloader. The architecture list must be non-empty.
func NewDownloader(spec string, key []byte, architectures []string) (*Downloader, error) {
	source, err := ParseSource(spec)
	if err != nil {
		return nil, err
	}
	if len(architectures) == 0 {
		return nil, fmt.Errorf("%w: empty architecture list", ErrInvalidSpec)
	}
	return &Downloader{
		Source:        source,
		Key:           key,
		Architectures: architectures,
	}, nil
}

// Download fetches the named package into dest and returns the path of the
// verified .deb file. The pipeline runs strictly forward: release metadata,
// trust verification, index scan, payload fetch. Any failure is terminal
// for this call and leaves no partial output behind.
func (d *Downloader) Download(ctx context.Context, name, dest string) (string, error) {
	log := zap.L().Sugar()

	workdir, err := os.MkdirTemp("", "apt-fetch-")
	if err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(workdir)

	releaseText, err := d.fetchReleaseMetadata(ctx, workdir, name)
	if err != nil {
		return "", err
	}

	release := parseRelease(releaseText)
	alg, entries, err := release.checksumSection()
	if err != nil {
		return "", err
	}
	log.Debugf("using %s section with %d index entries", alg.Name, len(entries))

	entry, err := d.findPackage(ctx, alg, entries, name)
	if err != nil {
		return "", err
	}

	return d.fetchPayload(ctx, entry, dest)
}

// fetchReleaseMetadata retrieves and authenticates the repository metadata,
// returning the trusted (or, without a key, explicitly untrusted) Release
// document text. Fetched metadata and signature files are kept in workdir
// for the duration of the call only.
func (d *Downloader) fetchReleaseMetadata(ctx context.Context, workdir, name string) ([]byte, error) {
	log := zap.L().Sugar()

	var trust *trustContext
	if len(d.Key) > 0 {
		var err error
		if trust, err = newTrustContext(workdir, d.Key); err != nil {
			return nil, err
		}
	} else {
		log.Warnf("no repository key configured: package %s will be downloaded without verification", name)
	}

	// InRelease is preferred: self-signed, no separate signature fetch.
	if inRelease := d.tryFetch(ctx, d.Source.distURL("InRelease")); inRelease != nil {
		if err := os.WriteFile(filepath.Join(workdir, "InRelease"), inRelease, 0644); err != nil {
			return nil, fmt.Errorf("writing InRelease: %w", err)
		}
		if trust == nil {
			return stripClearsign(inRelease), nil
		}
		text, err := trust.verifyInline(inRelease)
		if err != nil {
			return nil, fmt.Errorf("InRelease of %s: %w", d.Source.URI, err)
		}
		return text, nil
	}

	release, err := d.fetch(ctx, d.Source.distURL("Release"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if err := os.WriteFile(filepath.Join(workdir, "Release"), release, 0644); err != nil {
		return nil, fmt.Errorf("writing Release: %w", err)
	}
	if trust == nil {
		return release, nil
	}

	// With a configured key the detached signature becomes mandatory.
	signature, err := d.fetch(ctx, d.Source.distURL("Release.gpg"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if err := os.WriteFile(filepath.Join(workdir, "Release.gpg"), signature, 0644); err != nil {
		return nil, fmt.Errorf("writing Release.gpg: %w", err)
	}
	if err := trust.verifyDetached(release, signature); err != nil {
		return nil, fmt.Errorf("Release of %s: %w", d.Source.URI, err)
	}
	return release, nil
}

// fetchPayload downloads the package file named by the control entry,
// verifying it against the strongest checksum field present while streaming
// to dest. A digest mismatch removes the partial file before reporting.
func (d *Downloader) fetchPayload(ctx context.Context, entry ControlEntry, dest string) (string, error) {
	log := zap.L().Sugar()

	filename := entry["Filename"]
	if filename == "" {
		return "", fmt.Errorf("%w: control entry for %s carries no Filename", ErrPackageNotFound, entry["Package"])
	}

	spelling, ok := selectFirstAvailable(packageFieldSpellings, func(s checksumField) bool {
		return entry[s.Field] != ""
	})
	if !ok {
		return "", fmt.Errorf("%w: no recognized checksum field on entry for %s", ErrNoChecksums, entry["Package"])
	}
	want := entry[spelling.Field]

	url := d.Source.poolURL(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ErrUnreachable, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetching %s: status %d", ErrUnreachable, url, resp.StatusCode)
	}

	target := filepath.Join(dest, path.Base(filename))
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", target, err)
	}

	h := spelling.Alg.New()
	var w io.Writer = io.MultiWriter(out, h)
	if d.Progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, path.Base(filename))
		w = io.MultiWriter(w, bar)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		out.Close()
		os.Remove(target)
		return "", fmt.Errorf("%w: downloading %s: %v", ErrUnreachable, url, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("writing %s: %w", target, err)
	}

	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		os.Remove(target)
		return "", fmt.Errorf("payload %s: %w: %s digest %s, recorded %s", url, ErrChecksumMismatch, spelling.Alg.Name, got, want)
	}

	log.Infof("downloaded %s (%s verified)", target, spelling.Alg.Name)
	return target, nil
}
