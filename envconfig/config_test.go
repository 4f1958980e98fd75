package envconfig

import (
	"log/slog"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/ollama/fsmindex/logutil"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect string
	}{
		"empty":               {"", "http://127.0.0.1:11535"},
		"only address":        {"1.2.3.4", "http://1.2.3.4:11535"},
		"only port":           {":1234", "http://:1234"},
		"address and port":    {"1.2.3.4:1234", "http://1.2.3.4:1234"},
		"hostname":            {"example.com", "http://example.com:11535"},
		"hostname and port":   {"example.com:1234", "http://example.com:1234"},
		"zero port":           {":0", "http://:0"},
		"too large port":      {":66000", "http://:11535"},
		"too small port":      {":-1", "http://:11535"},
		"ipv6 localhost":      {"[::1]", "http://[::1]:11535"},
		"ipv6 world open":     {"[::]", "http://[::]:11535"},
		"ipv6 no brackets":    {"::1", "http://[::1]:11535"},
		"ipv6 + port":         {"[::1]:1337", "http://[::1]:1337"},
		"extra space":         {" 1.2.3.4 ", "http://1.2.3.4:11535"},
		"extra quotes":        {"\"1.2.3.4\"", "http://1.2.3.4:11535"},
		"extra space+quotes":  {" \" 1.2.3.4 \" ", "http://1.2.3.4:11535"},
		"extra single quotes": {"'1.2.3.4'", "http://1.2.3.4:11535"},
		"http":                {"http://1.2.3.4", "http://1.2.3.4:80"},
		"http port":           {"http://1.2.3.4:4321", "http://1.2.3.4:4321"},
		"https":               {"https://1.2.3.4", "https://1.2.3.4:443"},
		"https port":          {"https://1.2.3.4:4321", "https://1.2.3.4:4321"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("FSMINDEX_HOST", tt.value)
			if host := Host(); host.String() != tt.expect {
				t.Errorf("%s: expected %s, got %s", name, tt.expect, host.String())
			}
		})
	}
}

func TestOrigins(t *testing.T) {
	defaults := []string{
		"http://localhost",
		"https://localhost",
		"http://localhost:*",
		"https://localhost:*",
		"http://127.0.0.1",
		"https://127.0.0.1",
		"http://127.0.0.1:*",
		"https://127.0.0.1:*",
		"http://0.0.0.0",
		"https://0.0.0.0",
		"http://0.0.0.0:*",
		"https://0.0.0.0:*",
	}

	cases := []struct {
		value  string
		expect []string
	}{
		{"", defaults},
		{"http://10.0.0.1", append([]string{"http://10.0.0.1"}, defaults...)},
		{"http://10.0.0.1,https://example.com", append([]string{"http://10.0.0.1", "https://example.com"}, defaults...)},
	}
	for _, tt := range cases {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("FSMINDEX_ORIGINS", tt.value)
			if diff := cmp.Diff(tt.expect, AllowedOrigins()); diff != "" {
				t.Errorf("%s: mismatch (-want +got):\n%s", tt.value, diff)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"t":     slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     logutil.LevelTrace,
		"-1":    slog.LevelWarn,
		"junk":  slog.LevelInfo,
	}
	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("FSMINDEX_DEBUG", value)
			assert.Equal(t, want, LogLevel())
			assert.Equal(t, want <= slog.LevelDebug, Debug())
			assert.Equal(t, want <= logutil.LevelTrace, Trace())
		})
	}
}

func TestNumParallel(t *testing.T) {
	cases := map[string]int{
		"":    runtime.NumCPU(),
		"4":   4,
		"0":   runtime.NumCPU(),
		"-2":  runtime.NumCPU(),
		"two": runtime.NumCPU(),
	}
	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("FSMINDEX_NUM_PARALLEL", value)
			assert.Equal(t, want, NumParallel())
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	t.Setenv("FSMINDEX_MAX_BODY", "")
	assert.Equal(t, uint64(64<<20), MaxBodySize())

	t.Setenv("FSMINDEX_MAX_BODY", "1024")
	assert.Equal(t, uint64(1024), MaxBodySize())

	t.Setenv("FSMINDEX_MAX_BODY", "lots")
	assert.Equal(t, uint64(64<<20), MaxBodySize())
}

func TestWhitespace(t *testing.T) {
	ws, ok := Whitespace()
	assert.False(t, ok)
	assert.Empty(t, ws)

	t.Setenv("FSMINDEX_WHITESPACE", `[ \t\n]*`)
	ws, ok = Whitespace()
	assert.True(t, ok)
	assert.Equal(t, `[ \t\n]*`, ws)

	t.Setenv("FSMINDEX_WHITESPACE", "")
	ws, ok = Whitespace()
	assert.True(t, ok, "an empty pattern disallows whitespace")
	assert.Empty(t, ws)

	t.Setenv("FSMINDEX_WHITESPACE", `[`)
	_, ok = Whitespace()
	assert.False(t, ok)
}

func TestValues(t *testing.T) {
	t.Setenv("FSMINDEX_NUM_PARALLEL", "3")
	vals := Values()
	assert.Equal(t, "3", vals["FSMINDEX_NUM_PARALLEL"])
	for k, v := range AsMap() {
		assert.Equal(t, k, v.Name)
		assert.NotEmpty(t, v.Description, k)
	}
}
