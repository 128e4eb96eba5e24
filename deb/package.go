package deb

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blakesmith/ar"
)

// Package is an in-memory Debian binary package: control metadata plus
// payload files.
type Package struct {
	Metadata Metadata
	Files    []File
}

// Metadata maps to the fields of the Debian 'control' file.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#binary-package-control-files-debian-control
type Metadata struct {
	// Package is the binary package name.
	Package string
	// Version is the package version: [epoch:]upstream[-revision].
	Version string
	// Architecture is the target architecture ("amd64", "arm64", "all").
	Architecture string
	// Maintainer is "Name <email>".
	Maintainer string
	// Description holds the synopsis on the first line, the extended
	// description on subsequent lines.
	Description string
	// Section classifies the package (e.g. "utils", "net").
	Section string
	// Priority is the package importance (usually "optional").
	Priority string
	// Homepage is the upstream project URL.
	Homepage string
	// Depends lists installation dependencies.
	Depends []string
	// ExtraFields holds any further control fields verbatim.
	ExtraFields map[string]string
}

// File is a single payload file installed by the package.
type File struct {
	// DestPath is the absolute installation path (e.g. "/usr/bin/app").
	DestPath string
	// Mode is the file permission mode.
	Mode int64
	// Body is the file content.
	Body string
	// ModTime is the modification time stored in the archive; zero means now.
	ModTime time.Time
}

// StandardFilename returns the canonical {name}_{version}_{arch}.deb name.
func (p *Package) StandardFilename() string {
	return fmt.Sprintf("%s_%s_%s.deb", p.Metadata.Package, p.Metadata.Version, p.Metadata.Architecture)
}

// NewPackage parses a .deb stream into a Package.
func NewPackage(r io.Reader) (*Package, error) {
	pkg := &Package{
		Metadata: Metadata{ExtraFields: make(map[string]string)},
	}

	arR := ar.NewReader(r)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar header: %w", err)
		}

		switch {
		case strings.HasPrefix(header.Name, "control.tar"):
			tr, err := memberReader(arR, header.Name)
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", header.Name, err)
			}
			if err := pkg.readControlArchive(tr); err != nil {
				return nil, err
			}
		case strings.HasPrefix(header.Name, "data.tar"):
			tr, err := memberReader(arR, header.Name)
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", header.Name, err)
			}
			if err := pkg.readDataArchive(tr); err != nil {
				return nil, err
			}
		}
	}

	if pkg.Metadata.Package == "" {
		return nil, fmt.Errorf("no control file found in archive")
	}
	return pkg, nil
}

// memberReader wraps an ar member in a tar reader, decompressing gzip
// members by name.
func memberReader(r io.Reader, name string) (*tar.Reader, error) {
	if strings.HasSuffix(name, ".gz") {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return tar.NewReader(gzr), nil
	}
	return tar.NewReader(r), nil
}

func (p *Package) readControlArchive(tr *tar.Reader) error {
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading control tar header: %w", err)
		}
		if ControlFile(filepath.Base(th.Name)) != FileControl {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("reading control: %w", err)
		}
		parseControlFile(buf.String(), &p.Metadata)
	}
}

func (p *Package) readDataArchive(tr *tar.Reader) error {
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading data tar header: %w", err)
		}
		if th.Typeflag != tar.TypeReg {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("reading file %s: %w", th.Name, err)
		}
		destPath := "/" + strings.TrimPrefix(th.Name, "./")
		p.Files = append(p.Files, File{
			DestPath: strings.ReplaceAll(destPath, "//", "/"),
			Mode:     th.Mode,
			Body:     buf.String(),
			ModTime:  th.ModTime,
		})
	}
}

// WriteTo generates the .deb archive and writes it to w, satisfying
// io.WriterTo. Members appear in the order dpkg requires: debian-binary,
// control.tar.gz, data.tar.gz.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	// data.tar.gz comes first internally: the control archive needs the
	// payload md5sums and installed size.
	dataBuf := new(bytes.Buffer)
	md5Map, installedSize, err := p.buildDataArchive(dataBuf)
	if err != nil {
		return cw.n, fmt.Errorf("building data archive: %w", err)
	}

	controlBuf := new(bytes.Buffer)
	if err := p.buildControlArchive(controlBuf, md5Map, installedSize); err != nil {
		return cw.n, fmt.Errorf("building control archive: %w", err)
	}

	arW := ar.NewWriter(cw)
	if err := arW.WriteGlobalHeader(); err != nil {
		return cw.n, fmt.Errorf("writing ar global header: %w", err)
	}
	if err := addBufferToAr(arW, string(PkgDebianBinary), []byte("2.0\n")); err != nil {
		return cw.n, fmt.Errorf("writing %s: %w", PkgDebianBinary, err)
	}
	if err := addBufferToAr(arW, string(PkgControlTarGz), controlBuf.Bytes()); err != nil {
		return cw.n, fmt.Errorf("writing %s: %w", PkgControlTarGz, err)
	}
	if err := addBufferToAr(arW, string(PkgDataTarGz), dataBuf.Bytes()); err != nil {
		return cw.n, fmt.Errorf("writing %s: %w", PkgDataTarGz, err)
	}
	return cw.n, nil
}

func (p *Package) buildDataArchive(w io.Writer) (map[string]string, int64, error) {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	md5Map := make(map[string]string)
	var installedSize int64

	for _, file := range p.Files {
		content := []byte(file.Body)
		hash := md5.Sum(content)
		md5Map[file.DestPath] = hex.EncodeToString(hash[:])
		installedSize += int64(len(content))

		relPath := strings.TrimPrefix(file.DestPath, "/")
		if !strings.HasPrefix(relPath, "./") {
			relPath = "./" + relPath
		}
		header := &tar.Header{
			Name:    relPath,
			Size:    int64(len(content)),
			Mode:    file.Mode,
			ModTime: file.ModTime,
		}
		if header.ModTime.IsZero() {
			header.ModTime = time.Now()
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, 0, err
		}
		if _, err := tw.Write(content); err != nil {
			return nil, 0, err
		}
	}
	return md5Map, installedSize, nil
}

func (p *Package) buildControlArchive(w io.Writer, md5Map map[string]string, installedSize int64) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	writeEntry := func(name ControlFile, content []byte) error {
		header := &tar.Header{
			Name:    "./" + string(name),
			Size:    int64(len(content)),
			Mode:    0644,
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		_, err := tw.Write(content)
		return err
	}

	if err := writeEntry(FileControl, []byte(p.generateControlFile(installedSize))); err != nil {
		return fmt.Errorf("writing control: %w", err)
	}

	var paths []string
	for path := range md5Map {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "%s  %s\n", md5Map[path], strings.TrimPrefix(path, "/"))
	}
	if err := writeEntry(FileMd5sums, []byte(b.String())); err != nil {
		return fmt.Errorf("writing md5sums: %w", err)
	}
	return nil
}

func (p *Package) generateControlFile(installedBytes int64) string {
	var b strings.Builder
	writeField := func(field ControlField, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", field, value)
		}
	}

	writeField(FieldPackage, p.Metadata.Package)
	writeField(FieldVersion, p.Metadata.Version)
	writeField(FieldArchitecture, p.Metadata.Architecture)
	writeField(FieldMaintainer, p.Metadata.Maintainer)

	// Installed-Size is in kilobytes, rounded up.
	writeField(FieldInstalledSize, fmt.Sprintf("%d", (installedBytes+1023)/1024))

	writeField(FieldSection, p.Metadata.Section)
	writeField(FieldPriority, p.Metadata.Priority)
	writeField(FieldHomepage, p.Metadata.Homepage)
	if len(p.Metadata.Depends) > 0 {
		writeField(FieldDepends, strings.Join(p.Metadata.Depends, ", "))
	}
	var extras []string
	for k := range p.Metadata.ExtraFields {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	for _, k := range extras {
		writeField(ControlField(k), p.Metadata.ExtraFields[k])
	}

	if p.Metadata.Description != "" {
		lines := strings.Split(p.Metadata.Description, "\n")
		writeField(FieldDescription, lines[0])
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) == "" {
				fmt.Fprintf(&b, " .\n")
			} else if strings.HasPrefix(line, " ") {
				fmt.Fprintf(&b, "%s\n", line)
			} else {
				fmt.Fprintf(&b, " %s\n", line)
			}
		}
	}
	return b.String()
}
