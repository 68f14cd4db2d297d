package app

import (
	"os"
	"path/filepath"
	"testing"
)

const validPayloadJSON = `{
  "payload_version": "v1",
  "source": "rte",
  "url": "https://www.rte.ie/news/politics/2026/0811/housing-bill/",
  "title": "Dáil passes housing bill after late sitting",
  "body_text": "The Dáil passed the bill by 88 votes to 62.",
  "published_at": "2026-08-11T21:40:00Z",
  "language": "en"
}`

func TestCollectJSONFilesRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{"k":"v"}`)
	mustWriteFile(t, filepath.Join(root, "b.txt"), `x`)
	mustWriteFile(t, filepath.Join(root, ".hidden.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `{"k":"v2"}`)

	files, err := collectJSONFiles(root, true)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 json files, got %d (%v)", len(files), files)
	}
}

func TestCollectJSONFilesNonRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{"k":"v"}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `{"k":"v2"}`)

	files, err := collectJSONFiles(root, false)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 json file, got %d (%v)", len(files), files)
	}
}

func TestRunValidateAcceptsGoodPayloads(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "good.json"), validPayloadJSON)

	if code := runValidate([]string{"--dir", root}); code != 0 {
		t.Fatalf("expected exit 0 for valid payloads, got %d", code)
	}
}

func TestRunValidateRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "good.json"), validPayloadJSON)
	mustWriteFile(t, filepath.Join(root, "relative-url.json"),
		`{"payload_version":"v1","source":"rte","url":"/news/politics/story","title":"No scheme"}`)
	mustWriteFile(t, filepath.Join(root, "broken.json"), `{"payload_version":`)

	if code := runValidate([]string{"--dir", root}); code != 1 {
		t.Fatalf("expected exit 1 when invalid payloads present, got %d", code)
	}
}

func TestRunValidateFailsOnEmptyDirectory(t *testing.T) {
	t.Parallel()

	if code := runValidate([]string{"--dir", t.TempDir()}); code != 1 {
		t.Fatalf("expected exit 1 for a directory without payloads, got %d", code)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
