package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"asset-store/internal/app"
	"asset-store/internal/assets"
	"asset-store/internal/database"
	"asset-store/internal/startup"
)

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"verify", "verify"},
		{"re-gen_2", "re-gen_2"},
		{"rm -rf /", "rm_-rf__"},
		{"\x1b[31mred", "_[31mred"},
	}
	for _, tt := range tests {
		if got := sanitizeCommand(tt.in); got != tt.want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	for _, cmd := range []string{"verify", "regenerate", "sweep", "housekeep", "status"} {
		if !strings.Contains(buf.String(), cmd) {
			t.Errorf("usage does not mention %q", cmd)
		}
		if !knownCommand(cmd) {
			t.Errorf("knownCommand(%q) = false", cmd)
		}
	}
	if knownCommand("reset") {
		t.Error("knownCommand(reset) = true")
	}
}

func setupApp(t *testing.T) *app.App {
	t.Helper()
	root := t.TempDir()
	cfg := &startup.Config{
		AssetRootDir:      filepath.Join(root, "assets"),
		ThumbnailDir:      filepath.Join(root, "thumbnails"),
		ThumbnailWidth:    64,
		ThumbnailExt:      ".jpg",
		DefaultRepository: startup.LocalRepositoryName,
		DatabaseDir:       root,
		DatabasePath:      filepath.Join(root, database.FileName),
		TempDir:           t.TempDir(),
		FFmpegPath:        "/nonexistent/ffmpeg",
		FFprobePath:       "/nonexistent/ffprobe",
		TranscodeTimeout:  5 * time.Second,
		SweepOrphans:      true,
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// addAudio stores an audio asset, which never takes a thumbnail.
func addAudio(t *testing.T, a *app.App) *assets.Record {
	t.Helper()
	upload := filepath.Join(t.TempDir(), "upload")
	if err := os.WriteFile(upload, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := a.Manager.Create(context.Background(), &assets.Record{}, &assets.UploadedFile{TempPath: upload, MimeType: "audio/mpeg", Size: 3})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return rec
}

func TestRunVerify(t *testing.T) {
	a := setupApp(t)
	rec := addAudio(t, a)

	var buf bytes.Buffer
	if code := run(context.Background(), "verify", a, &printer{w: &buf}); code != exitOK {
		t.Errorf("verify exit = %d, want %d; output:\n%s", code, exitOK, buf.String())
	}

	if err := os.Remove(filepath.Join(a.Config.AssetRootDir, rec.Path)); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if code := run(context.Background(), "verify", a, &printer{w: &buf}); code != exitMissing {
		t.Errorf("verify exit = %d, want %d", code, exitMissing)
	}
	if !strings.Contains(buf.String(), rec.ID) || !strings.Contains(buf.String(), "error: 1 assets missing") {
		t.Errorf("verify output = %q, want the missing asset listed", buf.String())
	}
}

func TestRunHousekeepAndStatus(t *testing.T) {
	a := setupApp(t)
	addAudio(t, a)
	addAudio(t, a)

	var buf bytes.Buffer
	if code := run(context.Background(), "housekeep", a, &printer{w: &buf}); code != exitOK {
		t.Fatalf("housekeep exit = %d; output:\n%s", code, buf.String())
	}
	if !strings.Contains(buf.String(), "checked=2\n") {
		t.Errorf("housekeep output = %q, want checked=2", buf.String())
	}

	buf.Reset()
	if code := run(context.Background(), "status", a, &printer{w: &buf}); code != exitOK {
		t.Fatalf("status exit = %d", code)
	}
	out := buf.String()
	for _, want := range []string{"assets=2\n", "assets.audio=2\n", "bytes=6\n", "repositories=local\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "last_housekeeping=never") {
		t.Error("status reports housekeeping never ran after housekeep")
	}
}

func TestRunRegenerateAndSweep(t *testing.T) {
	a := setupApp(t)

	var buf bytes.Buffer
	if code := run(context.Background(), "regenerate", a, &printer{w: &buf}); code != exitOK {
		t.Errorf("regenerate exit = %d", code)
	}
	if code := run(context.Background(), "sweep", a, &printer{w: &buf}); code != exitOK {
		t.Errorf("sweep exit = %d", code)
	}
	if !strings.Contains(buf.String(), "ok: 0 thumbnails regenerated") || !strings.Contains(buf.String(), "ok: 0 orphaned files removed") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrinterTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, tty: true}
	p.field("assets", 3)
	p.ok("done")
	if got := buf.String(); !strings.Contains(got, "  assets:") || !strings.Contains(got, "✓ done") {
		t.Errorf("terminal output = %q", got)
	}
}
