package transcoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"asset-store/internal/logging"
)

var (
	vipsInitMutex sync.Mutex
	vipsAvailable bool
)

// InitVips starts libvips with conservative memory settings and routes its
// log messages through the application logger, filtered to the current log
// level. Call once at startup.
func InitVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsAvailable {
		return
	}

	vips.LoggingSettings(vipsLogHandler, vipsLogLevel(logging.GetLevel()))

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,                // One image at a time to control memory
		MaxCacheMem:      50 * 1024 * 1024, // 50MB cache
		MaxCacheSize:     100,
	})

	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether libvips has been initialized.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	default:
		return vips.LogLevelCritical
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// vipsThumbnail scales src to at most width pixels wide with libvips and
// writes it to dest, encoded by dest's extension.
func vipsThumbnail(src, dest string, width int) error {
	ref, err := vips.LoadImageFromFile(src, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if ref.Width() > width {
		height := ref.Height() * width / ref.Width()
		if height < 1 {
			height = 1
		}
		if err := ref.Thumbnail(width, height, vips.InterestingNone); err != nil {
			return fmt.Errorf("vips resize failed: %w", err)
		}
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".png":
		data, _, err = ref.ExportPng(vips.NewPngExportParams())
	case ".webp":
		data, _, err = ref.ExportWebp(vips.NewWebpExportParams())
	case ".jpg", ".jpeg":
		params := vips.NewJpegExportParams()
		params.Quality = 85
		data, _, err = ref.ExportJpeg(params)
	default:
		return fmt.Errorf("vips cannot encode %s", filepath.Ext(dest))
	}
	if err != nil {
		return fmt.Errorf("vips export failed: %w", err)
	}

	return os.WriteFile(dest, data, 0o644)
}
