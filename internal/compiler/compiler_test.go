package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

const fakeToolchain = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "pdfTeX 3.141592653-2.6-1.40.25 (TeX Live 2023)"
  echo "kpathsea version 6.3.5"
  exit 0
fi
outdir=""
src=""
for arg in "$@"; do
  case "$arg" in
    -output-directory=*) outdir="${arg#-output-directory=}" ;;
  esac
  src="$arg"
done
echo "This is pdfTeX, Version 3.141592653"
if [ -n "$FAKE_LATEX_LOCK" ]; then
  if ! mkdir "$FAKE_LATEX_LOCK" 2>/dev/null; then
    echo "concurrent run detected"
    exit 3
  fi
  sleep 0.2
  rmdir "$FAKE_LATEX_LOCK"
fi
if grep -q 'SLEEP' "$src"; then
  exec sleep 5
fi
if grep -q '\\bad' "$src"; then
  echo "! Undefined control sequence."
  echo "l.3 \\bad"
  exit 1
fi
if grep -q 'NOPDF' "$src"; then
  exit 0
fi
printf '%%PDF-1.5\n' > "$outdir/cv.pdf"
cat "$src" >> "$outdir/cv.pdf"
`

func installFakeToolchain(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake toolchain is a shell script")
	}
	path := filepath.Join(t.TempDir(), "pdflatex")
	if err := os.WriteFile(path, []byte(fakeToolchain), 0o755); err != nil {
		t.Fatalf("write fake toolchain: %v", err)
	}
	return path
}

func newTestCompiler(t *testing.T, opts Options) (*Compiler, string) {
	t.Helper()
	if opts.Binary == "" {
		opts.Binary = installFakeToolchain(t)
	}
	scratch := t.TempDir()
	opts.ScratchRoot = scratch
	opts.Logger = zaptest.NewLogger(t)
	return New(opts), scratch
}

func assertScratchEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read scratch root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch directories to be removed, found %d entries", len(entries))
	}
}

func TestCompileSuccess(t *testing.T) {
	c, scratch := newTestCompiler(t, Options{Timeout: 10 * time.Second})

	source := "\\documentclass{article}\n\\begin{document}Hello\\end{document}\n"
	pdf, err := c.Compile(context.Background(), source)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", pdf[:min(len(pdf), 16)])
	}
	if !bytes.Contains(pdf, []byte(source)) {
		t.Fatal("expected source to be written verbatim")
	}
	assertScratchEmpty(t, scratch)
}

func TestCompileFailureCarriesLog(t *testing.T) {
	c, scratch := newTestCompiler(t, Options{Timeout: 10 * time.Second})

	pdf, err := c.Compile(context.Background(), "\\bad{unclosed")
	if pdf != nil {
		t.Fatal("expected no pdf on failure")
	}

	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected CompilationError, got %T: %v", err, err)
	}
	if compErr.Message != "latex compilation failed" {
		t.Fatalf("unexpected message %q", compErr.Message)
	}
	if compErr.ExitCode != 1 {
		t.Fatalf("unexpected exit code %d", compErr.ExitCode)
	}
	if !strings.Contains(compErr.Log, "Undefined control sequence") {
		t.Fatalf("expected toolchain output in log, got %q", compErr.Log)
	}
	assertScratchEmpty(t, scratch)
}

func TestCompileMissingOutput(t *testing.T) {
	c, scratch := newTestCompiler(t, Options{})

	_, err := c.Compile(context.Background(), "NOPDF")
	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing pdf to be reported, got %v", err)
	}
	assertScratchEmpty(t, scratch)
}

func TestCompileTimeout(t *testing.T) {
	c, scratch := newTestCompiler(t, Options{Timeout: 200 * time.Millisecond})

	started := time.Now()
	_, err := c.Compile(context.Background(), "SLEEP")
	if time.Since(started) > 4*time.Second {
		t.Fatal("timeout did not stop the toolchain")
	}

	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if compErr.Message != "latex compilation timed out" {
		t.Fatalf("unexpected message %q", compErr.Message)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	assertScratchEmpty(t, scratch)
}

func TestCompileCanceledContext(t *testing.T) {
	c, scratch := newTestCompiler(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Compile(ctx, "\\documentclass{article}")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	assertScratchEmpty(t, scratch)
}

func TestCompileMissingBinary(t *testing.T) {
	c, scratch := newTestCompiler(t, Options{Binary: filepath.Join(t.TempDir(), "no-such-latex")})

	_, err := c.Compile(context.Background(), "x")
	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if compErr.ExitCode != 0 {
		t.Fatalf("unexpected exit code %d", compErr.ExitCode)
	}
	assertScratchEmpty(t, scratch)
}

func TestCompileLimitsConcurrency(t *testing.T) {
	t.Setenv("FAKE_LATEX_LOCK", filepath.Join(t.TempDir(), "lock"))
	c, scratch := newTestCompiler(t, Options{MaxConcurrent: 1, Timeout: 10 * time.Second})

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Compile(context.Background(), "ok")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("compile %d: %v", i, err)
		}
	}
	assertScratchEmpty(t, scratch)
}

func TestCheckToolchain(t *testing.T) {
	c, _ := newTestCompiler(t, Options{})

	status := c.CheckToolchain(context.Background())
	if !status.Installed {
		t.Fatal("expected toolchain to be reported as installed")
	}
	if status.Version == nil || *status.Version != "pdfTeX 3.141592653-2.6-1.40.25 (TeX Live 2023)" {
		t.Fatalf("unexpected version %v", status.Version)
	}

	missing := New(Options{Binary: filepath.Join(t.TempDir(), "missing")})
	got := missing.CheckToolchain(context.Background())
	if got.Installed || got.Version != nil {
		t.Fatalf("expected not installed without version, got %+v", got)
	}

	body, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"installed":false,"version":null}` {
		t.Fatalf("unexpected json %s", body)
	}
}

func TestCompileWithRealToolchain(t *testing.T) {
	if _, err := exec.LookPath(DefaultBinary); err != nil {
		t.Skip("pdflatex is not installed")
	}
	if testing.Short() {
		t.Skip("skipping real toolchain in short mode")
	}

	c := New(Options{Logger: zaptest.NewLogger(t), ScratchRoot: t.TempDir()})
	pdf, err := c.Compile(context.Background(), "\\documentclass{article}\n\\begin{document}\nHello\n\\end{document}\n")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatal("expected PDF output")
	}
}
