// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Storage selects and configures the blob store backing exports.
type Storage struct {
	Provider string `env:"STORAGE_PROVIDER" envDefault:"localfs"`

	LocalRoot    string `env:"STORAGE_LOCAL_ROOT" envDefault:"./data/storage"`
	LocalBaseURL string `env:"STORAGE_LOCAL_BASE_URL" envDefault:"http://localhost:8080"`
	LocalSecret  string `env:"STORAGE_LOCAL_SECRET"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"slideloop-exports"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	GDriveClientID     string `env:"GDRIVE_CLIENT_ID"`
	GDriveClientSecret string `env:"GDRIVE_CLIENT_SECRET"`
	GDriveRefreshToken string `env:"GDRIVE_REFRESH_TOKEN"`
	GDriveFolderID     string `env:"GDRIVE_FOLDER_ID"`
}

// Engine configures the headless render engine.
type Engine struct {
	Env      string `env:"ENGINE_ENV" envDefault:"local"`
	Binary   string `env:"ENGINE_BINARY"`
	PackURL  string `env:"ENGINE_PACK_URL"`
	CacheDir string `env:"ENGINE_CACHE_DIR"`
}

// API holds everything the HTTP API process needs.
type API struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	QueueName   string `env:"EXPORT_QUEUE" envDefault:"export:runs"`

	// AppOrigin is the public origin of the app; proxy URLs are minted
	// against it and same-origin image URLs bypass the proxy.
	AppOrigin string `env:"APP_ORIGIN" envDefault:"http://localhost:8080"`
	// ProxySecret signs image-proxy URLs. Empty disables the proxy.
	ProxySecret string `env:"PROXY_SECRET"`

	Storage Storage
}

// Worker holds everything the export worker process needs.
type Worker struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	QueueName   string `env:"EXPORT_QUEUE" envDefault:"export:runs"`

	AppOrigin   string `env:"APP_ORIGIN" envDefault:"http://localhost:8080"`
	ProxySecret string `env:"PROXY_SECRET"`

	// RenderConcurrency bounds parallel slide renders within one run.
	RenderConcurrency int    `env:"RENDER_CONCURRENCY" envDefault:"3"`
	MetricsPort       string `env:"METRICS_PORT" envDefault:"9091"`

	Storage Storage
	Engine  Engine
}

func LoadAPI() (API, error) {
	var cfg API
	if err := env.Parse(&cfg); err != nil {
		return API{}, fmt.Errorf("load api config: %w", err)
	}
	return cfg, nil
}

func LoadWorker() (Worker, error) {
	var cfg Worker
	if err := env.Parse(&cfg); err != nil {
		return Worker{}, fmt.Errorf("load worker config: %w", err)
	}
	return cfg, nil
}
