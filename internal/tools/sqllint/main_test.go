package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLintFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{
			name:   "marked",
			source: "package q\n\nconst QOne = `--sql 0059685f-f9ea-474b-a959-a3727c10cfb9\nselect 1;\n`\n",
		},
		{
			name:    "unmarked",
			source:  "package q\n\nconst QTwo = `select 1;`\n",
			wantMsg: "missing or invalid",
		},
		{
			name:   "not sql",
			source: "package q\n\nconst Greeting = \"hello\"\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := newLinter()
			if err := l.lintFile(writeSource(t, dir, strings.ReplaceAll(tc.name, " ", "_")+".go", tc.source)); err != nil {
				t.Fatalf("lintFile: %v", err)
			}
			if tc.wantMsg == "" {
				if len(l.violations) != 0 {
					t.Fatalf("unexpected violations: %+v", l.violations)
				}
				return
			}
			if len(l.violations) != 1 || !strings.Contains(l.violations[0].message, tc.wantMsg) {
				t.Fatalf("violations = %+v", l.violations)
			}
		})
	}
}

func TestLintFileRejectsDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	src := "package q\n\nconst QA = `--sql 7d011f01-8e8a-454b-97d2-f477fc83b455\nselect 1;\n`\n\nconst QB = `--sql 7d011f01-8e8a-454b-97d2-f477fc83b455\nselect 2;\n`\n"
	l := newLinter()
	if err := l.lintFile(writeSource(t, dir, "dup.go", src)); err != nil {
		t.Fatalf("lintFile: %v", err)
	}
	if len(l.violations) != 1 || l.violations[0].name != "QB" || !strings.Contains(l.violations[0].message, "QA") {
		t.Fatalf("violations = %+v", l.violations)
	}
}

func TestJobQueriesAreMarked(t *testing.T) {
	l := newLinter()
	if err := l.lintFile(filepath.Join("..", "..", "sqlinline", "jobs.go")); err != nil {
		t.Fatalf("lintFile: %v", err)
	}
	if len(l.violations) != 0 {
		t.Fatalf("violations = %+v", l.violations)
	}
	if len(l.seen) == 0 {
		t.Fatal("no markers found in job queries")
	}
}

func TestSkipDir(t *testing.T) {
	for name, want := range map[string]bool{".git": true, "_examples": true, "vendor": true, "internal": false, "sqlinline": false} {
		if got := skipDir(name); got != want {
			t.Errorf("skipDir(%q) = %v, want %v", name, got, want)
		}
	}
}
