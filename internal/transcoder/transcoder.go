package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"asset-store/internal/assets"
	"asset-store/internal/filesystem"
	"asset-store/internal/logging"
	"asset-store/internal/metrics"
)

// Config controls the external tools and the in-process fallback.
type Config struct {
	FFmpegPath    string
	FFprobePath   string
	TempDir       string
	Timeout       time.Duration // per tool invocation; 0 disables
	ImageFallback bool          // decode raster images in-process when ffmpeg fails
	UseVips       bool          // prefer libvips for the fallback when initialized
}

// Transcoder drives ffprobe and ffmpeg to probe media and render thumbnails.
type Transcoder struct {
	cfg Config
	log *logging.Logger
}

// VideoFrameOffset is the fraction of a video's duration at which the
// thumbnail frame is taken.
const VideoFrameOffset = 0.25

// New creates a Transcoder. Empty tool paths default to "ffmpeg" and
// "ffprobe" looked up on PATH.
func New(cfg Config) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Transcoder{cfg: cfg, log: logging.With("transcoder")}
}

// Available reports whether both external tools can be found.
func (t *Transcoder) Available() bool {
	if _, err := exec.LookPath(t.cfg.FFmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(t.cfg.FFprobePath)
	return err == nil
}

// probeOutput is the subset of `ffprobe -print_format json` we read.
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe inspects src and returns its dimensions, duration and size. Images
// are streamed to ffprobe on stdin; other kinds are materialized first since
// containers such as MP4 may need to seek. Duration is only reported for
// non-image kinds.
func (t *Transcoder) Probe(ctx context.Context, src io.Reader, kind assets.Kind) (assets.Metadata, error) {
	start := time.Now()
	meta, err := t.probe(ctx, src, kind)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	metrics.ProbesTotal.WithLabelValues(metrics.Status(err)).Inc()
	return meta, err
}

func (t *Transcoder) probe(ctx context.Context, src io.Reader, kind assets.Kind) (assets.Metadata, error) {
	if kind == assets.KindImage {
		counter := &countingReader{r: src}
		meta, err := t.probeInput(ctx, "pipe:0", counter)
		if err != nil {
			return assets.Metadata{}, err
		}
		// Drain whatever ffprobe did not consume so Size is the full length.
		if _, err := io.Copy(io.Discard, counter); err != nil {
			return assets.Metadata{}, fmt.Errorf("drain probe input: %w", err)
		}
		meta.Duration = 0
		meta.Size = counter.n
		return meta, nil
	}

	var meta assets.Metadata
	err := WithTempFile(t.cfg.TempDir, "probe-*", src, func(path string, size int64) error {
		m, err := t.probeInput(ctx, path, nil)
		if err != nil {
			return err
		}
		m.Size = size
		meta = m
		return nil
	})
	return meta, err
}

func (t *Transcoder) probeInput(ctx context.Context, input string, stdin io.Reader) (assets.Metadata, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return assets.Metadata{}, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (assets.Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return assets.Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var meta assets.Metadata
	meta.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	meta.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)

	for _, s := range out.Streams {
		if s.CodecType != "video" || s.Width == 0 {
			continue
		}
		meta.Width, meta.Height = s.Width, s.Height
		if meta.Duration == 0 {
			meta.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		}
		break
	}

	return meta, nil
}

// GenerateThumbnail renders a thumbnail of src at dest, scaled to at most
// width pixels wide with the aspect ratio kept. Images are streamed to
// ffmpeg; videos are materialized, probed for duration and sampled at
// VideoFrameOffset of their length. dest's extension selects the output
// format. On failure dest is removed.
func (t *Transcoder) GenerateThumbnail(ctx context.Context, src io.Reader, dest string, width int, kind assets.Kind) error {
	if width <= 0 {
		return assets.InvalidParameters("width", "thumbnail width must be positive")
	}
	if err := filesystem.EnsureDirectory(filepath.Dir(dest)); err != nil {
		return fmt.Errorf("create thumbnail directory: %w", err)
	}

	start := time.Now()
	var (
		engine string
		err    error
	)
	switch kind {
	case assets.KindImage:
		engine, err = t.imageThumbnail(ctx, src, dest, width)
	case assets.KindVideo:
		engine, err = "ffmpeg", t.videoThumbnail(ctx, src, dest, width)
	default:
		err = fmt.Errorf("no thumbnail support for %s assets", kind)
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues(string(kind), metrics.Status(err)).Inc()
	if err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !os.IsNotExist(rmErr) {
			t.log.Warn("Failed to remove partial thumbnail %s: %v", dest, rmErr)
		}
		return err
	}

	metrics.ThumbnailGenerationDuration.WithLabelValues(string(kind), engine).Observe(time.Since(start).Seconds())
	t.log.Debug("Generated %s thumbnail %s with %s in %v", kind, filepath.Base(dest), engine, time.Since(start))
	return nil
}

func (t *Transcoder) imageThumbnail(ctx context.Context, src io.Reader, dest string, width int) (string, error) {
	if !t.cfg.ImageFallback {
		return "ffmpeg", t.runFFmpeg(ctx, src, "pipe:0", dest, width, 0)
	}

	// Keep a copy of what ffmpeg reads so the fallback can decode it.
	spool, err := os.CreateTemp(t.cfg.TempDir, "thumb-src-*")
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	metrics.TempFilesActive.Inc()
	defer func() {
		_ = spool.Close()
		if err := os.Remove(spool.Name()); err != nil && !os.IsNotExist(err) {
			t.log.Warn("Failed to remove temp file %s: %v", spool.Name(), err)
		}
		metrics.TempFilesActive.Dec()
	}()

	ffErr := t.runFFmpeg(ctx, io.TeeReader(src, spool), "pipe:0", dest, width, 0)
	if ffErr == nil {
		return "ffmpeg", nil
	}

	if _, err := io.Copy(spool, src); err != nil {
		return "", errors.Join(ffErr, fmt.Errorf("spool remaining input: %w", err))
	}
	if err := spool.Close(); err != nil {
		return "", errors.Join(ffErr, fmt.Errorf("close spool file: %w", err))
	}

	t.log.Debug("ffmpeg failed for %s, using in-process fallback: %v", filepath.Base(dest), ffErr)

	if t.cfg.UseVips && IsVipsAvailable() {
		err := vipsThumbnail(spool.Name(), dest, width)
		if err == nil {
			return "vips", nil
		}
		t.log.Debug("vips fallback failed for %s: %v", filepath.Base(dest), err)
	}

	if err := imagingThumbnail(spool.Name(), dest, width); err != nil {
		return "", errors.Join(ffErr, err)
	}
	return "imaging", nil
}

func (t *Transcoder) videoThumbnail(ctx context.Context, src io.Reader, dest string, width int) error {
	return WithTempFile(t.cfg.TempDir, "thumb-video-*", src, func(path string, _ int64) error {
		var offset float64
		meta, err := t.probeInput(ctx, path, nil)
		if err != nil {
			t.log.Debug("Duration probe failed for %s, using first frame: %v", filepath.Base(dest), err)
		} else {
			offset = meta.Duration * VideoFrameOffset
		}
		return t.runFFmpeg(ctx, nil, path, dest, width, offset)
	})
}

func (t *Transcoder) runFFmpeg(ctx context.Context, stdin io.Reader, input, dest string, width int, seek float64) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if seek > 0 {
		args = append(args, "-ss", strconv.FormatFloat(seek, 'f', 3, 64))
	}
	args = append(args,
		"-i", input,
		"-frames:v", "1",
		"-vf", scaleFilter(width),
		"-update", "1",
		dest,
	)

	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	cmd.Stdin = stdin

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no output for %s", filepath.Base(dest))
	}
	return nil
}

// scaleFilter bounds the output width without upscaling and keeps the
// aspect ratio.
func scaleFilter(width int) string {
	return fmt.Sprintf("scale=min(%d\\,iw):-2", width)
}

func (t *Transcoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.cfg.Timeout)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
