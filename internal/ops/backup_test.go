package ops

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestBackupRestoreStateDir_RoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "state")

	files := map[string]string{
		"savequest.db":      "not really sqlite, but bytes survive as-is",
		"badges.yml":        "badges:\n  - id: first_transaction\n",
		"plans/default.yml": "days:\n  - day: 1\n",
	}
	for rel, content := range files {
		path := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	archive := filepath.Join(t.TempDir(), ArchiveName(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	if err := BackupStateDir(src, archive); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	restored := filepath.Join(t.TempDir(), "restored")
	if err := RestoreStateDir(archive, restored); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	got := map[string]string{}
	err := filepath.WalkDir(restored, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(restored, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		got[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		t.Fatalf("walk restored dir: %v", err)
	}
	if !reflect.DeepEqual(files, got) {
		t.Fatalf("restored files mismatch:\nwant=%v\ngot=%v", files, got)
	}
}

func TestBackupStateDir_RejectsFileSource(t *testing.T) {
	file := filepath.Join(t.TempDir(), "savequest.db")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := BackupStateDir(file, filepath.Join(t.TempDir(), "out.tar.gz")); err == nil {
		t.Fatal("expected error backing up a plain file")
	}
}

func TestRestoreStateDir_RejectsPathTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.tar.gz")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{
		Name:     "../escape.db",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     3,
	}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := tw.Write([]byte("bad")); err != nil {
		t.Fatalf("write body: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	if err := RestoreStateDir(archive, filepath.Join(t.TempDir(), "out")); err == nil {
		t.Fatal("expected restore to reject path traversal entry")
	}
}
