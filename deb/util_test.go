package deb

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseControlFile(t *testing.T) {
	content := `Package: hello
Version: 1.0-1
Architecture: amd64
Maintainer: Example <maintainer@example.test>
Installed-Size: 42
Depends: libc6 (>= 2.31), coreutils
Multi-Arch: foreign
Description: example greeter
 Prints a friendly greeting
 .
 Nothing else.
`
	var m Metadata
	parseControlFile(content, &m)

	if m.Package != "hello" || m.Version != "1.0-1" || m.Architecture != "amd64" {
		t.Errorf("parsed metadata: %+v", m)
	}
	if want := []string{"libc6 (>= 2.31)", "coreutils"}; !reflect.DeepEqual(m.Depends, want) {
		t.Errorf("Depends = %v, want %v", m.Depends, want)
	}
	if m.ExtraFields["Multi-Arch"] != "foreign" {
		t.Errorf("ExtraFields = %v", m.ExtraFields)
	}
	if !strings.HasPrefix(m.Description, "example greeter") {
		t.Errorf("Description = %q", m.Description)
	}
	if !strings.Contains(m.Description, "Prints a friendly greeting") {
		t.Errorf("folded Description lost continuation: %q", m.Description)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"libc6", []string{"libc6"}},
		{"a, b ,c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
