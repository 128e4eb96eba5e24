package deb

import (
	"io"
	"strings"
	"time"

	"github.com/blakesmith/ar"
)

// countingWriter wraps an io.Writer and counts the bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// addBufferToAr writes a named byte slice as a file entry to the AR archive
// with mode 0644 and the current timestamp.
func addBufferToAr(w *ar.Writer, name string, body []byte) error {
	header := &ar.Header{
		Name:    name,
		Size:    int64(len(body)),
		Mode:    0644,
		ModTime: time.Now(),
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// parseControlFile parses a Debian control file into Metadata, handling
// folded (continuation-line) fields. Unknown fields land in ExtraFields.
func parseControlFile(content string, m *Metadata) {
	var currentKey string
	var currentValue strings.Builder

	flush := func() {
		if currentKey == "" {
			return
		}
		val := strings.TrimSpace(currentValue.String())
		switch ControlField(currentKey) {
		case FieldPackage:
			m.Package = val
		case FieldVersion:
			m.Version = val
		case FieldArchitecture:
			m.Architecture = val
		case FieldMaintainer:
			m.Maintainer = val
		case FieldDescription:
			m.Description = val
		case FieldSection:
			m.Section = val
		case FieldPriority:
			m.Priority = val
		case FieldHomepage:
			m.Homepage = val
		case FieldDepends:
			m.Depends = splitList(val)
		case FieldInstalledSize:
			// computed at generation time
		default:
			if m.ExtraFields == nil {
				m.ExtraFields = make(map[string]string)
			}
			m.ExtraFields[currentKey] = val
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			currentValue.WriteString("\n" + line)
		} else if strings.Contains(line, ":") {
			flush()
			parts := strings.SplitN(line, ":", 2)
			currentKey = parts[0]
			currentValue.Reset()
			currentValue.WriteString(strings.TrimSpace(parts[1]))
		}
	}
	flush()
}

// splitList splits a comma-separated relationship field, trimming each
// element. Empty input yields nil.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var res []string
	for _, p := range strings.Split(s, ",") {
		res = append(res, strings.TrimSpace(p))
	}
	return res
}
