package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// LaunchStrategy decides how the browser binary is obtained and launched.
// Selected once at construction from configuration, never branched on at
// call sites.
type LaunchStrategy interface {
	Name() string
	AllocatorOptions(ctx context.Context) ([]chromedp.ExecAllocatorOption, error)
}

// EnvSandboxed and EnvLocal are the accepted ENGINE_ENV values.
const (
	EnvSandboxed = "sandboxed"
	EnvLocal     = "local"
)

// StrategyConfig carries the environment-dependent launch settings.
type StrategyConfig struct {
	// Env selects the strategy: "sandboxed" or "local".
	Env string
	// BinaryPath points at a locally installed browser (local strategy).
	// Empty means chromedp's default lookup.
	BinaryPath string
	// PackURL is where the sandboxed strategy downloads its minimal
	// headless-shell binary from.
	PackURL string
	// CacheDir is where the downloaded binary is kept across invocations.
	CacheDir string
}

// NewStrategy builds the launch strategy for the configured environment.
func NewStrategy(cfg StrategyConfig) (LaunchStrategy, error) {
	switch cfg.Env {
	case EnvSandboxed:
		if cfg.PackURL == "" {
			return nil, fmt.Errorf("sandboxed engine requires a binary pack URL")
		}
		cacheDir := cfg.CacheDir
		if cacheDir == "" {
			cacheDir = filepath.Join(os.TempDir(), "slideloop-engine")
		}
		return &sandboxedStrategy{
			packURL:  cfg.PackURL,
			cacheDir: cacheDir,
			client:   &http.Client{Timeout: 2 * time.Minute},
		}, nil
	case EnvLocal, "":
		return &localStrategy{binaryPath: cfg.BinaryPath}, nil
	default:
		return nil, fmt.Errorf("unknown engine environment %q", cfg.Env)
	}
}

// localStrategy launches a fully-featured local browser installation.
type localStrategy struct {
	binaryPath string
}

func (s *localStrategy) Name() string { return EnvLocal }

func (s *localStrategy) AllocatorOptions(ctx context.Context) ([]chromedp.ExecAllocatorOption, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.Headless,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	}
	if s.binaryPath != "" {
		opts = append(opts, chromedp.ExecPath(s.binaryPath))
	}
	return opts, nil
}

// sandboxedStrategy fetches a pre-built minimal headless-shell binary and
// launches it with the flags a locked-down container needs. The download is
// cached on disk and reused across invocations.
type sandboxedStrategy struct {
	packURL  string
	cacheDir string
	client   *http.Client

	mu sync.Mutex
}

func (s *sandboxedStrategy) Name() string { return EnvSandboxed }

func (s *sandboxedStrategy) AllocatorOptions(ctx context.Context) ([]chromedp.ExecAllocatorOption, error) {
	binPath, err := s.ensureBinary(ctx)
	if err != nil {
		return nil, err
	}
	return []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(binPath),
		chromedp.Headless,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("single-process", true),
	}, nil
}

func (s *sandboxedStrategy) ensureBinary(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	binPath := filepath.Join(s.cacheDir, "headless-shell")
	if _, err := os.Stat(binPath); err == nil {
		return binPath, nil
	}

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create engine cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.packURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch engine binary pack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch engine binary pack: http %d", resp.StatusCode)
	}

	// Download to a temp name first so a partial fetch never looks like a
	// cached binary.
	tmp, err := os.CreateTemp(s.cacheDir, "headless-shell-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download engine binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), binPath); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return binPath, nil
}
