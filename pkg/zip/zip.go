package zip

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is a single file inside an export archive.
type Entry struct {
	Name string
	MIME string
	Data []byte
}

// Archive packs the entries into a zip in the order given.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", entry.Name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

type manifestEntry struct {
	Name string `json:"name"`
	MIME string `json:"mime,omitempty"`
	Size int    `json:"size"`
}

// ArchiveWithManifest packs the entries plus a manifest.json listing them,
// so consumers can inspect an export without unpacking every page.
func ArchiveWithManifest(entries []Entry) ([]byte, error) {
	manifest := make([]manifestEntry, 0, len(entries))
	for _, entry := range entries {
		manifest = append(manifest, manifestEntry{Name: entry.Name, MIME: entry.MIME, Size: len(entry.Data)})
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("zip: marshal manifest: %w", err)
	}
	all := append([]Entry{{Name: "manifest.json", MIME: "application/json", Data: data}}, entries...)
	return Archive(all)
}
