package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dirmanage/internal/activity"
	"dirmanage/internal/exitcodes"
	"dirmanage/internal/fsops"
)

type testEnv struct {
	dir     string
	root    string
	config  string
	textLog string
	dbPath  string
}

func newTestEnv(t *testing.T, extraYAML string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:     dir,
		root:    filepath.Join(dir, "data"),
		config:  filepath.Join(dir, "config.yaml"),
		textLog: filepath.Join(dir, "sru_log.txt"),
		dbPath:  filepath.Join(dir, "activity.db"),
	}
	if err := os.MkdirAll(env.root, 0o755); err != nil {
		t.Fatal(err)
	}

	yaml := "root: " + env.root + "\n" +
		"activity:\n  text_log: " + env.textLog + "\n  database_path: " + env.dbPath + "\n" +
		"report:\n  txt_path: " + filepath.Join(dir, "report.txt") + "\n  csv_path: " + filepath.Join(dir, "report.csv") + "\n" +
		"logging:\n  level: error\n" + extraYAML
	if err := os.WriteFile(env.config, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) file(t *testing.T, rel string, size int, age time.Duration) string {
	t.Helper()
	path := filepath.Join(e.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

const day = 24 * time.Hour

func TestListSortsBySize(t *testing.T) {
	env := newTestEnv(t, "")
	env.file(t, "big.bin", 300, day)
	env.file(t, "small.txt", 10, day)
	env.file(t, "sub/nested.txt", 50, day)

	out, err := env.run(t, "list", "--sort", "size")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "nested.txt") {
		t.Error("non-recursive list should not include nested files")
	}
	small, big := strings.Index(out, "small.txt"), strings.Index(out, "big.bin")
	if small < 0 || big < 0 || small > big {
		t.Errorf("expected small.txt before big.bin:\n%s", out)
	}

	out, err = env.run(t, "list", "-r")
	if err != nil {
		t.Fatalf("list -r: %v", err)
	}
	if !strings.Contains(out, "nested.txt") || !strings.Contains(out, "3 files") {
		t.Errorf("recursive list missing entries:\n%s", out)
	}
}

func TestListRejectsUnknownSortKey(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.run(t, "list", "--sort", "color")
	if got := exitCode(err); got != exitcodes.InvalidConfig {
		t.Errorf("exit code = %d, want %d (err %v)", got, exitcodes.InvalidConfig, err)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, "")
	want := env.file(t, "logs/app.log", 1, day)
	env.file(t, "notes.txt", 1, day)

	out, err := env.run(t, "search", ".log")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if strings.TrimSpace(out) != "Found: "+want {
		t.Errorf("search output = %q", out)
	}

	out, err = env.run(t, "search", "nothing-like-this")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "No matching files found.") {
		t.Errorf("empty search output = %q", out)
	}
}

func TestReportWritesBothFormats(t *testing.T) {
	env := newTestEnv(t, "")
	env.file(t, "a.txt", 100, day)

	out, err := env.run(t, "report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, name := range []string{"report.txt", "report.csv"} {
		if !exists(filepath.Join(env.dir, name)) {
			t.Errorf("%s not written (output %q)", name, out)
		}
	}
	csv, _ := os.ReadFile(filepath.Join(env.dir, "report.csv"))
	if !strings.HasPrefix(string(csv), "path,size_bytes,owner,group,last_modified_epoch\n") {
		t.Errorf("csv header wrong: %q", csv)
	}
}

func TestSRUSuggestAndDelete(t *testing.T) {
	env := newTestEnv(t, "")
	a := env.file(t, "a.txt", 500, 10*day)
	b := env.file(t, "b.txt", 50, 10*day)

	out, err := env.run(t, "sru", "suggest", "--min-size", "100", "--min-age", "5")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if !strings.Contains(out, a) || strings.Contains(out, b) {
		t.Errorf("suggest output wrong:\n%s", out)
	}
	if !strings.Contains(out, "Matched: Larger than 100 B, older than 5 days") {
		t.Errorf("suggest output missing criteria summary:\n%s", out)
	}

	out, err = env.run(t, "sru", "delete", "--min-size", "100", "--min-age", "5", "--pick", "1")
	if err != nil {
		t.Fatalf("delete: %v\n%s", err, out)
	}
	if exists(a) || !exists(b) {
		t.Errorf("a.txt should be gone and b.txt kept (a=%v b=%v)", exists(a), exists(b))
	}

	logData, err := os.ReadFile(env.textLog)
	if err != nil {
		t.Fatalf("read text log: %v", err)
	}
	if !strings.Contains(string(logData), ",DELETED,"+a+",500,") {
		t.Errorf("text log missing deletion: %q", logData)
	}

	db, err := activity.OpenDB(env.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	recs, err := db.ByAction(activity.ActionDeleted)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Path != a {
		t.Errorf("db deletions = %+v", recs)
	}
}

func TestSRUDeleteDryRunKeepsFiles(t *testing.T) {
	env := newTestEnv(t, "")
	a := env.file(t, "a.txt", 500, 10*day)

	out, err := env.run(t, "--dry-run", "sru", "delete", "--all")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !exists(a) {
		t.Error("dry run deleted a file")
	}
	if !strings.Contains(out, "dry_run") {
		t.Errorf("output should report dry_run status:\n%s", out)
	}
}

func TestSRUDeleteSelectionErrors(t *testing.T) {
	env := newTestEnv(t, "")
	env.file(t, "a.txt", 500, 10*day)

	tests := []struct {
		name string
		args []string
	}{
		{"neither pick nor all", []string{"sru", "delete"}},
		{"both pick and all", []string{"sru", "delete", "--all", "--pick", "1"}},
		{"pick out of range", []string{"sru", "delete", "--pick", "7"}},
		{"bad size", []string{"sru", "delete", "--all", "--min-size", "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, tt.args...)
			if got := exitCode(err); got != exitcodes.InvalidConfig {
				t.Errorf("exit code = %d, want %d (err %v)", got, exitcodes.InvalidConfig, err)
			}
		})
	}
}

func TestFileOperations(t *testing.T) {
	env := newTestEnv(t, "")
	src := env.file(t, "src.txt", 42, day)
	cp := filepath.Join(env.root, "copy.txt")
	moved := filepath.Join(env.root, "moved.txt")
	renamed := filepath.Join(env.root, "renamed.txt")
	newDir := filepath.Join(env.root, "fresh")

	steps := [][]string{
		{"cp", src, cp},
		{"mv", cp, moved},
		{"rename", moved, renamed},
		{"mkdir", "--mode", "0700", newDir},
		{"rm", renamed},
	}
	for _, args := range steps {
		if out, err := env.run(t, args...); err != nil {
			t.Fatalf("%v: %v\n%s", args, err, out)
		}
	}

	if !exists(src) {
		t.Error("copy source should remain")
	}
	for _, gone := range []string{cp, moved, renamed} {
		if exists(gone) {
			t.Errorf("%s should not exist", gone)
		}
	}
	info, err := os.Stat(newDir)
	if err != nil || !info.IsDir() || info.Mode().Perm() != 0o700 {
		t.Errorf("mkdir result: %v %v", info, err)
	}

	logData, _ := os.ReadFile(env.textLog)
	for _, action := range []string{"COPIED", "MOVED", "RENAMED", "MKDIR", "DELETED"} {
		if !strings.Contains(string(logData), ","+action+",") {
			t.Errorf("text log missing %s", action)
		}
	}
}

func TestRmtree(t *testing.T) {
	env := newTestEnv(t, "")
	env.file(t, "tree/a/one.txt", 10, day)
	env.file(t, "tree/b/two.txt", 20, day)
	tree := filepath.Join(env.root, "tree")

	out, err := env.run(t, "--dry-run", "rmtree", tree)
	if err != nil {
		t.Fatalf("dry-run rmtree: %v", err)
	}
	if !exists(tree) || !strings.Contains(out, "2 files") {
		t.Errorf("dry run should keep the tree and count 2 files:\n%s", out)
	}

	out, err = env.run(t, "rmtree", tree)
	if err != nil {
		t.Fatalf("rmtree: %v", err)
	}
	if exists(tree) {
		t.Error("tree should be removed")
	}
	if !strings.Contains(out, "Removed 2 files and 3 directories") {
		t.Errorf("rmtree output = %q", out)
	}

	_, err = env.run(t, "rmtree", filepath.Join(env.root, "missing"))
	if got := exitCode(err); got != exitcodes.RuntimeError {
		t.Errorf("missing tree exit code = %d, want %d", got, exitcodes.RuntimeError)
	}

	plain := env.file(t, "plain.txt", 5, day)
	for _, args := range [][]string{
		{"--dry-run", "rmtree", plain},
		{"rmtree", plain},
	} {
		_, err := env.run(t, args...)
		if !errors.Is(err, fsops.ErrNotADirectory) {
			t.Errorf("%v: expected ErrNotADirectory, got %v", args, err)
		}
	}
	if !exists(plain) {
		t.Error("rmtree on a regular file must not remove it")
	}
}

func TestProtectedOperandsAreRefused(t *testing.T) {
	env := newTestEnv(t, "")
	tests := [][]string{
		{"rmtree", "/etc"},
		{"rm", "/"},
		{"mkdir", "/proc/dirmanage-test"},
	}
	for _, args := range tests {
		_, err := env.run(t, args...)
		if got := exitCode(err); got != exitcodes.SafetyViolation {
			t.Errorf("%v: exit code = %d, want %d (err %v)", args, got, exitcodes.SafetyViolation, err)
		}
	}
}

func TestInvalidConfigExitCode(t *testing.T) {
	env := newTestEnv(t, "sru:\n  min_age_days: -1\n")
	_, err := env.run(t, "list")
	if got := exitCode(err); got != exitcodes.InvalidConfig {
		t.Errorf("exit code = %d, want %d (err %v)", got, exitcodes.InvalidConfig, err)
	}
}

func TestExitCode(t *testing.T) {
	if exitCode(nil) != exitcodes.Success {
		t.Error("nil error should be success")
	}
	if exitCode(errors.New("boom")) != exitcodes.RuntimeError {
		t.Error("plain error should be a runtime error")
	}
	wrapped := &exitError{code: exitcodes.PartialFailure, err: errors.New("some failed")}
	if exitCode(wrapped) != exitcodes.PartialFailure {
		t.Error("exitError code should be used")
	}
}

func TestTraversalOperandIsRefused(t *testing.T) {
	env := newTestEnv(t, "")
	victim := env.file(t, "keep.txt", 1, day)

	_, err := env.run(t, "rm", filepath.Join(env.root, "sub") + "/../keep.txt")
	if got := exitCode(err); got != exitcodes.SafetyViolation {
		t.Errorf("exit code = %d, want %d (err %v)", got, exitcodes.SafetyViolation, err)
	}
	if !exists(victim) {
		t.Error("file reached through .. was deleted")
	}
}

func TestSRUWatchOnce(t *testing.T) {
	env := newTestEnv(t, "schedule:\n  interval: 10m\n")
	old := env.file(t, "old.tmp", 100, 20*day)
	fresh := env.file(t, "fresh.tmp", 100, time.Hour)

	out, err := env.run(t, "sru", "watch", "--once", "--min-age", "7")
	if err != nil {
		t.Fatalf("watch --once: %v\n%s", err, out)
	}
	if exists(old) || !exists(fresh) {
		t.Errorf("old removed=%v fresh kept=%v", !exists(old), exists(fresh))
	}
	if !strings.Contains(out, "deleted 1") {
		t.Errorf("cycle report missing: %q", out)
	}
}
