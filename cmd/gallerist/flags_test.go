package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giobyte8/gallerist/internal/config"
)

func noEnv(string) (string, bool) {
	return "", false
}

func envOf(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestParseArgsBuild(t *testing.T) {
	opts, err := parseArgs(
		[]string{"-title", "My Trip 2024", "-max-size", "1600", "-no-archive", "photos", "site"},
		noEnv,
		io.Discard,
	)
	if err != nil {
		t.Fatal(err)
	}

	if opts.mode != modeBuild {
		t.Fatalf("mode = %v, want build", opts.mode)
	}
	cfg := opts.cfg
	if cfg.InputDir != "photos" || cfg.OutputDir != "site" {
		t.Fatalf("unexpected directories: %q %q", cfg.InputDir, cfg.OutputDir)
	}
	if cfg.Title != "My Trip 2024" || cfg.MaxSize != 1600 || !cfg.NoArchive {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ThumbHeight != config.DefaultThumbHeight {
		t.Fatalf("ThumbHeight = %d, want default", cfg.ThumbHeight)
	}
}

func TestParseArgsLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	content := "title: From File\nthumb_height: 200\nmax_size: 800\nworkers: 2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := parseArgs(
		[]string{"-config", path, "-workers", "6", "in", "out"},
		envOf(map[string]string{
			"GALLERIST_THUMB_HEIGHT": "300",
			"GALLERIST_WORKERS":      "4",
		}),
		io.Discard,
	)
	if err != nil {
		t.Fatal(err)
	}

	cfg := opts.cfg
	if cfg.Title != "From File" || cfg.MaxSize != 800 {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.ThumbHeight != 300 {
		t.Errorf("ThumbHeight = %d, want env value 300", cfg.ThumbHeight)
	}
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d, want flag value 6", cfg.Workers)
	}
}

func TestParseArgsDirsFromEnv(t *testing.T) {
	opts, err := parseArgs(
		[]string{"-watch"},
		envOf(map[string]string{
			"GALLERIST_INPUT_DIR":  "/photos",
			"GALLERIST_OUTPUT_DIR": "/site",
		}),
		io.Discard,
	)
	if err != nil {
		t.Fatal(err)
	}
	if opts.mode != modeWatch || opts.cfg.InputDir != "/photos" || opts.cfg.OutputDir != "/site" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestParseArgsServe(t *testing.T) {
	env := envOf(map[string]string{
		"RABBITMQ_HOST":                     "localhost",
		"AMQP_EXCHANGE":                     "galleries",
		"AMQP_QUEUE_GALLERY_BUILD_REQUESTS": "builds",
	})

	opts, err := parseArgs([]string{"-serve"}, env, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if opts.mode != modeServe {
		t.Fatalf("mode = %v, want serve", opts.mode)
	}

	if _, err := parseArgs([]string{"-serve"}, noEnv, io.Discard); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid without AMQP settings, got %v", err)
	}
}

func TestParseArgsErrors(t *testing.T) {
	testCases := map[string]struct {
		args []string
		want error
	}{
		"no directories":      {[]string{}, errUsage},
		"one directory":       {[]string{"in"}, errUsage},
		"three directories":   {[]string{"a", "b", "c"}, errUsage},
		"unknown flag":        {[]string{"-colour", "in", "out"}, errUsage},
		"watch and serve":     {[]string{"-watch", "-serve"}, errUsage},
		"serve with dirs":     {[]string{"-serve", "in", "out"}, errUsage},
		"zero thumb height":   {[]string{"-thumb-height", "0", "in", "out"}, config.ErrInvalid},
		"negative max size":   {[]string{"-max-size", "-5", "in", "out"}, config.ErrInvalid},
		"zero workers":        {[]string{"-workers", "0", "in", "out"}, config.ErrInvalid},
		"help":                {[]string{"-h"}, flag.ErrHelp},
		"same directories":    {[]string{"photos", "./photos/"}, config.ErrInvalid},
		"watch same dirs":     {[]string{"-watch", "photos", "photos"}, config.ErrInvalid},
		"not a number height": {[]string{"-thumb-height", "tall", "in", "out"}, errUsage},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := parseArgs(tc.args, noEnv, io.Discard)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseArgsVersion(t *testing.T) {
	opts, err := parseArgs([]string{"-version"}, noEnv, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if opts.mode != modeVersion {
		t.Fatalf("mode = %v, want version", opts.mode)
	}
}

func TestCheckDistinctDirs(t *testing.T) {
	dir := t.TempDir()
	if err := checkDistinctDirs(dir, dir+"/"); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if err := checkDistinctDirs(dir, filepath.Join(dir, "site")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUsageMentionsKeptArchive(t *testing.T) {
	var out bytes.Buffer
	if _, err := parseArgs([]string{"-h"}, noEnv, &out); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if !strings.Contains(out.String(), "existing archive is kept") {
		t.Fatalf("-skip-processing usage does not mention the kept archive:\n%s", out.String())
	}
}

func TestFailureMessage(t *testing.T) {
	testCases := map[runMode]string{
		modeBuild: "Gallery build failed",
		modeWatch: "Gallery watch failed",
		modeServe: "Build request consumer failed",
	}
	for mode, want := range testCases {
		if got := failureMessage(mode); got != want {
			t.Errorf("failureMessage(%v) = %q, want %q", mode, got, want)
		}
	}
}
