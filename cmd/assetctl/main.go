package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"asset-store/internal/app"
	"asset-store/internal/assets"
	"asset-store/internal/logging"
	"asset-store/internal/startup"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitMissing = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(exitFailure)
	}
	command := os.Args[1]
	if !knownCommand(command) {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(os.Stderr)
		os.Exit(exitFailure)
	}

	if _, ok := os.LookupEnv("LOG_LEVEL"); !ok {
		logging.SetLevel(logging.LevelWarn)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := startup.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}

	a.Memory.Start()

	out := &printer{w: os.Stdout, tty: term.IsTerminal(int(os.Stdout.Fd()))}
	code := run(ctx, command, a, out)

	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	os.Exit(code)
}

func knownCommand(command string) bool {
	switch command {
	case "verify", "regenerate", "sweep", "housekeep", "status":
		return true
	}
	return false
}

func run(ctx context.Context, command string, a *app.App, out *printer) int {
	hk := a.Housekeeper

	switch command {
	case "verify":
		err := hk.VerifyAssets(ctx)
		return out.missing(err)

	case "regenerate":
		n, err := hk.RegenerateThumbnails(ctx)
		if err != nil {
			out.fail("regenerate: %v", err)
			return exitFailure
		}
		hk.Wait()
		out.ok("%d thumbnails regenerated", n)
		return exitOK

	case "sweep":
		n, err := hk.SweepOrphans(ctx)
		if err != nil {
			out.fail("sweep: %v", err)
			return exitFailure
		}
		out.ok("%d orphaned files removed", n)
		return exitOK

	case "housekeep":
		report, err := hk.Run(ctx)
		hk.Wait()
		out.field("checked", report.Checked)
		out.field("missing", report.Missing)
		out.field("thumbnails", report.ThumbnailsScheduled)
		out.field("orphans", report.OrphansRemoved)
		out.field("duration", report.Duration.Round(time.Millisecond))
		return out.missing(err)

	case "status":
		return status(ctx, a, out)
	}
	return exitFailure
}

func status(ctx context.Context, a *app.App, out *printer) int {
	inv, err := a.DB.Inventory(ctx)
	if err != nil {
		out.fail("inventory: %v", err)
		return exitFailure
	}
	last, err := a.DB.GetLastHousekeeping(ctx)
	if err != nil {
		out.fail("last housekeeping: %v", err)
		return exitFailure
	}

	kinds := make([]string, 0, len(inv.ByKind))
	total := 0
	for kind, n := range inv.ByKind {
		kinds = append(kinds, kind)
		total += n
	}
	sort.Strings(kinds)

	out.field("assets", total)
	for _, kind := range kinds {
		out.field("assets."+kind, inv.ByKind[kind])
	}
	out.field("bytes", inv.TotalBytes)
	out.field("thumbnails", inv.WithThumbnails)
	out.field("repositories", strings.Join(a.Manager.Repositories(), ","))
	if last.IsZero() {
		out.field("last_housekeeping", "never")
	} else {
		out.field("last_housekeeping", last.Local().Format(time.RFC3339))
	}
	return exitOK
}

// printer writes aligned, marked output to terminals and plain key=value
// lines otherwise.
type printer struct {
	w   io.Writer
	tty bool
}

func (p *printer) field(key string, value any) {
	if p.tty {
		fmt.Fprintf(p.w, "  %-18s %v\n", key+":", value)
		return
	}
	fmt.Fprintf(p.w, "%s=%v\n", key, value)
}

func (p *printer) ok(format string, args ...any) {
	p.line("✓", "ok", format, args...)
}

func (p *printer) fail(format string, args ...any) {
	p.line("✗", "error", format, args...)
}

func (p *printer) line(mark, tag, format string, args ...any) {
	if p.tty {
		fmt.Fprintf(p.w, "%s %s\n", mark, fmt.Sprintf(format, args...))
		return
	}
	fmt.Fprintf(p.w, "%s: %s\n", tag, fmt.Sprintf(format, args...))
}

// missing reports a verification result and returns its exit code.
func (p *printer) missing(err error) int {
	var missing *assets.MissingAssetsError
	switch {
	case err == nil:
		p.ok("all assets present")
		return exitOK
	case errors.As(err, &missing):
		for _, e := range missing.Errors {
			p.fail("%v", e)
		}
		p.fail("%d assets missing", len(missing.Errors))
		return exitMissing
	default:
		p.fail("%v", err)
		return exitFailure
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Asset Store Maintenance")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: assetctl <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  verify      - Report records whose primary file is missing")
	fmt.Fprintln(w, "  regenerate  - Regenerate missing thumbnails and wait for them")
	fmt.Fprintln(w, "  sweep       - Remove files no record references")
	fmt.Fprintln(w, "  housekeep   - Run verify, regenerate and sweep")
	fmt.Fprintln(w, "  status      - Show asset counts and the last housekeeping time")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Exit status is 2 when assets are missing.")
	fmt.Fprintln(w, "Configuration is read from the same environment as the server.")
}
