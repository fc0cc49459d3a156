package explore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Artifact is an exported report ready to be written.
type Artifact struct {
	Filename string
	Data     []byte
}

// ExportFilename names the export file for a theme title.
func ExportFilename(themeTitle string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return '_'
		case r == '/' || r == '\\':
			return '-'
		}
		return r
	}, themeTitle)
	return name + "_Report.json"
}

// Export renders the cached report as indented JSON. The payload is the
// backend's report exactly, only reformatted.
func (r *Results) Export(themeTitle string) (Artifact, error) {
	if r.raw == nil {
		return Artifact{}, ErrNoReport
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.raw, "", "  "); err != nil {
		return Artifact{}, fmt.Errorf("export: %w", err)
	}
	buf.WriteByte('\n')
	return Artifact{Filename: ExportFilename(themeTitle), Data: buf.Bytes()}, nil
}

// WriteArtifact writes a into dir, replacing any previous export of the same
// name, and returns the written path.
func WriteArtifact(dir string, a Artifact) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, a.Filename)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize export: %w", err)
	}
	return path, nil
}
