package session

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

func testImporter(t *testing.T, dir string) (*Importer, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, io.Discard)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	pool := NewPool(gw, testPoolConfig(), "grok", logger, nil)
	return NewImporter(pool, dir, logger), gw
}

func TestImportFileYAML(t *testing.T) {
	dir := t.TempDir()
	im, gw := testImporter(t, dir)

	path := filepath.Join(dir, "drop.yaml")
	content := `sessions:
  - cookies: "sso=one; cf_clearance=a"
    metadata:
      source: manual
  - cookies: "sso=two; cf_clearance=b"
  - cookies: ""
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	imported, skipped, err := im.importFile(context.Background(), path)
	if err != nil {
		t.Fatalf("importFile: %v", err)
	}
	if imported != 2 || skipped != 1 {
		t.Errorf("imported %d skipped %d, want 2/1", imported, skipped)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.sessions) != 2 {
		t.Errorf("store holds %d sessions, want 2", len(gw.sessions))
	}
}

func TestImportFileBareListJSON(t *testing.T) {
	dir := t.TempDir()
	im, _ := testImporter(t, dir)

	path := filepath.Join(dir, "drop.json")
	content := `[{"cookies": "sso=three"}]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	imported, _, err := im.importFile(context.Background(), path)
	if err != nil {
		t.Fatalf("importFile: %v", err)
	}
	if imported != 1 {
		t.Errorf("imported %d, want 1", imported)
	}
}

func TestImportSkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	im, _ := testImporter(t, dir)

	path := filepath.Join(dir, "drop.yaml")
	content := `sessions:
  - cookies: "sso=same"
  - cookies: "sso=same"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	imported, skipped, err := im.importFile(context.Background(), path)
	if err != nil {
		t.Fatalf("importFile: %v", err)
	}
	if imported != 1 || skipped != 1 {
		t.Errorf("imported %d skipped %d, want 1/1", imported, skipped)
	}
}

func TestMaybeImportRenamesFile(t *testing.T) {
	dir := t.TempDir()
	im, _ := testImporter(t, dir)

	path := filepath.Join(dir, "drop.yaml")
	if err := os.WriteFile(path, []byte(`sessions: [{cookies: "sso=x"}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	im.maybeImport(context.Background(), path)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original file still present")
	}
	if _, err := os.Stat(path + importedSuffix); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
}

func TestMaybeImportIgnoresProcessedAndForeign(t *testing.T) {
	dir := t.TempDir()
	im, gw := testImporter(t, dir)

	done := filepath.Join(dir, "old.yaml"+importedSuffix)
	txt := filepath.Join(dir, "notes.txt")
	os.WriteFile(done, []byte(`sessions: [{cookies: "sso=a"}]`), 0o600)
	os.WriteFile(txt, []byte("sso=b"), 0o600)

	im.maybeImport(context.Background(), done)
	im.maybeImport(context.Background(), txt)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.sessions) != 0 {
		t.Errorf("store holds %d sessions, want 0", len(gw.sessions))
	}
}

func TestImporterStartScansExisting(t *testing.T) {
	dir := t.TempDir()
	im, gw := testImporter(t, dir)

	path := filepath.Join(dir, "preexisting.yaml")
	if err := os.WriteFile(path, []byte(`sessions: [{cookies: "sso=pre"}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := im.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer im.Stop()

	gw.mu.Lock()
	count := len(gw.sessions)
	gw.mu.Unlock()
	if count != 1 {
		t.Errorf("store holds %d sessions, want 1", count)
	}
}
