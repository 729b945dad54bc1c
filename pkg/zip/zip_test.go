package zip

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
)

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	files := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = content
	}
	return files
}

func TestArchive(t *testing.T) {
	data, err := Archive([]Entry{
		{Name: "page-01.png", MIME: "image/png", Data: []byte("one")},
		{Name: "page-02.png", MIME: "image/png", Data: []byte("two")},
	})
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	files := readArchive(t, data)
	if string(files["page-01.png"]) != "one" || string(files["page-02.png"]) != "two" {
		t.Fatalf("files = %v", files)
	}
}

func TestArchiveWithManifest(t *testing.T) {
	data, err := ArchiveWithManifest([]Entry{
		{Name: "result.json", MIME: "application/json", Data: []byte(`{}`)},
	})
	if err != nil {
		t.Fatalf("ArchiveWithManifest() error = %v", err)
	}
	files := readArchive(t, data)

	raw, ok := files["manifest.json"]
	if !ok {
		t.Fatal("manifest.json missing")
	}
	var manifest []struct {
		Name string `json:"name"`
		MIME string `json:"mime"`
		Size int    `json:"size"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if len(manifest) != 1 || manifest[0].Name != "result.json" || manifest[0].Size != 2 {
		t.Fatalf("manifest = %+v", manifest)
	}
}
