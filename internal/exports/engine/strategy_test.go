package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewStrategySelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      StrategyConfig
		wantName string
		wantErr  bool
	}{
		{"local", StrategyConfig{Env: EnvLocal}, EnvLocal, false},
		{"default is local", StrategyConfig{}, EnvLocal, false},
		{"sandboxed", StrategyConfig{Env: EnvSandboxed, PackURL: "https://packs.example/headless-shell"}, EnvSandboxed, false},
		{"sandboxed without pack", StrategyConfig{Env: EnvSandboxed}, "", true},
		{"unknown", StrategyConfig{Env: "cloud"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStrategy(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStrategy: %v", err)
			}
			if s.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.wantName)
			}
		})
	}
}

func TestLocalAllocatorOptions(t *testing.T) {
	s, err := NewStrategy(StrategyConfig{Env: EnvLocal, BinaryPath: "/usr/bin/chromium"})
	if err != nil {
		t.Fatal(err)
	}
	opts, err := s.AllocatorOptions(context.Background())
	if err != nil {
		t.Fatalf("AllocatorOptions: %v", err)
	}
	if len(opts) == 0 {
		t.Fatal("expected allocator options")
	}
}

func TestSandboxedBinaryDownloadCached(t *testing.T) {
	var fetches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		io.WriteString(w, "#!/bin/true\n")
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, err := NewStrategy(StrategyConfig{Env: EnvSandboxed, PackURL: srv.URL, CacheDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	sb := s.(*sandboxedStrategy)

	for i := 0; i < 3; i++ {
		path, err := sb.ensureBinary(context.Background())
		if err != nil {
			t.Fatalf("ensureBinary %d: %v", i, err)
		}
		if path != filepath.Join(dir, "headless-shell") {
			t.Fatalf("unexpected binary path %q", path)
		}
	}
	if fetches != 1 {
		t.Errorf("binary fetched %d times, want 1 (cached)", fetches)
	}

	info, err := os.Stat(filepath.Join(dir, "headless-shell"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Error("cached binary is not executable")
	}
}

func TestSandboxedBinaryDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, _ := NewStrategy(StrategyConfig{Env: EnvSandboxed, PackURL: srv.URL, CacheDir: dir})
	sb := s.(*sandboxedStrategy)

	if _, err := sb.ensureBinary(context.Background()); err == nil {
		t.Fatal("expected download failure")
	}
	if _, err := os.Stat(filepath.Join(dir, "headless-shell")); !os.IsNotExist(err) {
		t.Error("failed download must not leave a cached binary")
	}
}
