package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("package q\n\n"+body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRepositoryQueriesAreMarked(t *testing.T) {
	violations, err := lint([]string{"../../sqlinline"})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s", v)
	}
}

func TestMissingMarker(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "const QBad = `select 1`\n\nconst notSQL = \"hello\"\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 1 || violations[0].name != "QBad" {
		t.Fatalf("violations = %+v, want one for QBad", violations)
	}
}

func TestDuplicateMarkerAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	const marker = "--sql 0f0b6f0e-4f8e-4c1e-9a55-3f9a4ac0c001"
	writeGo(t, dir, "a.go", "const QFirst = `"+marker+"\nselect 1`\n")
	writeGo(t, dir, "b.go", "const QSecond = `"+marker+"\nselect 2`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %+v, want one", violations)
	}
	if !strings.Contains(violations[0].message, "QFirst") || violations[0].name != "QSecond" {
		t.Fatalf("violation = %+v", violations[0])
	}
}

func TestRunReportsExitCode(t *testing.T) {
	dir := t.TempDir()
	path := writeGo(t, dir, "q.go", "var QBad = \"delete from video_jobs\"\n")

	var stderr bytes.Buffer
	if code := run([]string{path}, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "QBad") {
		t.Fatalf("stderr = %q", stderr.String())
	}
	if code := run([]string{filepath.Join(dir, "missing")}, &stderr); code != 1 {
		t.Fatalf("missing target exit code = %d, want 1", code)
	}
}
