package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/ollama/fsmindex/logutil"
)

const defaultPort = "11535"

// Host returns the scheme and host the server listens on and clients connect
// to. Configured via FSMINDEX_HOST; the default is http://127.0.0.1:11535.
func Host() *url.URL {
	port := defaultPort
	s := strings.TrimSpace(Var("FSMINDEX_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		port = "80"
	case scheme == "https":
		port = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, p, err := net.SplitHostPort(hostport)
	if err != nil {
		host = "127.0.0.1"
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	} else {
		port = p
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins returns the CORS origins accepted by the server.
// Configured via FSMINDEX_ORIGINS, a comma separated list added to the
// loopback defaults.
func AllowedOrigins() (origins []string) {
	if s := Var("FSMINDEX_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}
	return origins
}

// LogLevel returns the log level for the application.
// Configured via FSMINDEX_DEBUG: a boolean switches between INFO and DEBUG,
// an integer selects more verbose levels (2 enables TRACE).
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("FSMINDEX_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// NumParallel returns the number of goroutines used to scan a frontier.
// Configured via FSMINDEX_NUM_PARALLEL; defaults to the number of CPUs.
func NumParallel() int {
	return int(Uint("FSMINDEX_NUM_PARALLEL", uint(runtime.NumCPU()))())
}

// MaxBodySize limits request bodies accepted by the server, in bytes.
// Configured via FSMINDEX_MAX_BODY.
var MaxBodySize = Uint64("FSMINDEX_MAX_BODY", 64<<20)

// Whitespace returns the whitespace pattern used between JSON tokens when a
// schema is compiled without an explicit override. Configured via
// FSMINDEX_WHITESPACE. An invalid pattern is reported and ignored.
func Whitespace() (string, bool) {
	s, ok := os.LookupEnv("FSMINDEX_WHITESPACE")
	if !ok {
		return "", false
	}
	if _, err := regexp.Compile(s); err != nil {
		slog.Warn("invalid environment variable, ignoring", "key", "FSMINDEX_WHITESPACE", "value", s, "error", err)
		return "", false
	}
	return s, true
}

// Debug reports whether debug logging is on. Configured via FSMINDEX_DEBUG.
var Debug = func() bool { return LogLevel() <= slog.LevelDebug }

// Trace reports whether scan-level tracing is on.
var Trace = func() bool { return LogLevel() <= logutil.LevelTrace }

func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil || n == 0 {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

func Uint64(key string, defaultValue uint64) func() uint64 {
	return func() uint64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil || n == 0 || n > math.MaxInt64 {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	ws, _ := Whitespace()
	return map[string]EnvVar{
		"FSMINDEX_DEBUG":        {"FSMINDEX_DEBUG", LogLevel(), "Show additional debug information (e.g. FSMINDEX_DEBUG=1, 2 for trace)"},
		"FSMINDEX_HOST":         {"FSMINDEX_HOST", Host(), "IP address and port for the fsmindex server (default 127.0.0.1:11535)"},
		"FSMINDEX_MAX_BODY":     {"FSMINDEX_MAX_BODY", MaxBodySize(), "Maximum request body size accepted by the server, in bytes"},
		"FSMINDEX_NUM_PARALLEL": {"FSMINDEX_NUM_PARALLEL", NumParallel(), "Goroutines used to scan each frontier (default: number of CPUs)"},
		"FSMINDEX_ORIGINS":      {"FSMINDEX_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"FSMINDEX_WHITESPACE":   {"FSMINDEX_WHITESPACE", ws, "Whitespace pattern between JSON tokens in compiled schemas (default \"[ ]?\")"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Var returns an environment variable stripped of leading and trailing quotes
// and spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
