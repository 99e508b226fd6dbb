package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"asset-store/internal/logging"
	"asset-store/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo describes a registered route
type RouteInfo struct {
	Method string
	Path   string
}

func section(title string) {
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv
func LogMemoryConfig(result memory.ConfigResult) {
	if !result.Configured {
		logging.Debug("  GOMEMLIMIT not configured (source: %s)", result.Source)
		return
	}
	logging.Info("  GOMEMLIMIT: %d bytes (source: %s)", result.GoMemLimit, result.Source)
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(path string, duration time.Duration) {
	logging.Info("")
	section("DATABASE INITIALIZATION")
	logging.Info("  Path: %s", path)
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogTranscoderInit logs which thumbnail engines are usable
func LogTranscoderInit(ffmpegAvailable, imageFallback, vips bool) {
	logging.Info("")
	section("TRANSCODER INITIALIZATION")

	if ffmpegAvailable {
		logging.Info("  [OK] ffmpeg and ffprobe are available")
	} else {
		logging.Warn("  ffmpeg/ffprobe not found")
		logging.Warn("  Video thumbnails and metadata probing will fail")
	}

	switch {
	case !imageFallback:
		logging.Info("  Image fallback: DISABLED")
	case vips:
		logging.Info("  Image fallback: libvips")
	default:
		logging.Info("  Image fallback: imaging")
	}
}

// LogRepositories logs the registered repositories
func LogRepositories(names []string, defaultName string) {
	logging.Info("")
	section("REPOSITORIES")
	for _, name := range names {
		marker := ""
		if name == defaultName {
			marker = " (default)"
		}
		logging.Info("  [OK] %s%s", name, marker)
	}
}

// LogHousekeepingInit logs the housekeeping schedule
func LogHousekeepingInit(schedule string, workers int, sweepOrphans bool) {
	logging.Info("")
	section("HOUSEKEEPING")
	if schedule == "" {
		logging.Info("  Schedule: DISABLED (initial run only)")
	} else {
		logging.Info("  Schedule: %s", schedule)
	}
	logging.Info("  Workers:  %d", workers)
	logging.Info("  Orphans:  %s", enabledString(sweepOrphans))
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, method := range methods {
			routes = append(routes, RouteInfo{Method: method, Path: pathTemplate})
		}
		return nil
	})

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, err
}

// LogHTTPRoutes logs the routes of the operations server at debug level
func LogHTTPRoutes(router *mux.Router) {
	if !logging.IsDebugEnabled() {
		return
	}
	routes, err := GetRoutes(router)
	if err != nil {
		logging.Debug("  Failed to walk routes: %v", err)
		return
	}
	for _, r := range routes {
		logging.Debug("  %-6s %s", r.Method, r.Path)
	}
}

// ServerConfig holds what LogServerStarted reports
type ServerConfig struct {
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the running endpoints and startup duration
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	section("ASSET STORE STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.MetricsPort)
		logging.Info("  Health:          http://0.0.0.0:%s/healthz", config.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ___                   __     _____ __
   /   |  _____________  / /_   / ___// /_____  ________
  / /| | / ___/ ___/ _ \/ __/   \__ \/ __/ __ \/ ___/ _ \
 / ___ |(__  |__  )  __/ /_    ___/ / /_/ /_/ / /  /  __/
/_/  |_/____/____/\___/\__/   /____/\__/\____/_/   \___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}
