package apt

import (
	"fmt"
	"net/url"
	"strings"
)

// Source is the parsed form of a one-line APT repository specification,
// e.g. "deb http://deb.debian.org/debian bookworm main contrib".
// It is immutable once parsed.
type Source struct {
	// URI is the repository base URI, normalized without a trailing slash.
	URI string
	// Dist is the distribution (suite or codename) under dists/.
	Dist string
	// Components are the repository components, in declaration order.
	Components []string
}

// ParseSource decomposes a repository specification line of the
// conventional "deb [options] uri distribution component..." shape.
// Flat repositories (distribution ending in "/", no components) are not
// supported by the download pipeline and are rejected.
func ParseSource(line string) (Source, error) {
	fields := strings.Fields(line)

	// Tolerate an [option=value] block after the type, as written in
	// sources.list files. Its contents are not interpreted here.
	if len(fields) >= 2 && strings.HasPrefix(fields[1], "[") {
		for i := 1; i < len(fields); i++ {
			if strings.HasSuffix(fields[i], "]") {
				fields = append(fields[:1], fields[i+1:]...)
				break
			}
		}
	}

	if len(fields) < 4 {
		return Source{}, fmt.Errorf("%w: want \"deb uri distribution component...\", got %q", ErrInvalidSpec, line)
	}
	if fields[0] != "deb" {
		return Source{}, fmt.Errorf("%w: unsupported type %q in %q", ErrInvalidSpec, fields[0], line)
	}

	uri := strings.TrimRight(fields[1], "/")
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Source{}, fmt.Errorf("%w: malformed URI %q", ErrInvalidSpec, fields[1])
	}

	dist := fields[2]
	if strings.HasSuffix(dist, "/") {
		return Source{}, fmt.Errorf("%w: flat repository %q is not supported", ErrInvalidSpec, line)
	}

	return Source{
		URI:        uri,
		Dist:       dist,
		Components: fields[3:],
	}, nil
}

// distURL returns the URL of a file below dists/<dist>/.
func (s Source) distURL(name string) string {
	return fmt.Sprintf("%s/dists/%s/%s", s.URI, s.Dist, name)
}

// poolURL returns the URL of a pool file named by a Packages index
// Filename field.
func (s Source) poolURL(filename string) string {
	return fmt.Sprintf("%s/%s", s.URI, strings.TrimLeft(filename, "/"))
}
