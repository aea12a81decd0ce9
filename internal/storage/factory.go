package storage

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"slideloop/internal/adapters/storage/gdrive"
	"slideloop/internal/adapters/storage/localfs"
	minioadapter "slideloop/internal/adapters/storage/minio"
	"slideloop/internal/config"
	"slideloop/internal/pkg/errors"
)

// NewProvider builds the configured storage backend.
func NewProvider(ctx context.Context, cfg config.Storage) (Provider, error) {
	switch cfg.Provider {
	case "localfs", "":
		return localfs.New(cfg.LocalRoot, cfg.LocalBaseURL, cfg.LocalSecret), nil

	case "minio":
		if cfg.MinioEndpoint == "" {
			return nil, errors.ConfigMissing("MINIO_ENDPOINT")
		}
		return minioadapter.NewClient(ctx, minioadapter.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})

	case "gdrive":
		return newGDriveProvider(ctx, cfg)

	default:
		return nil, errors.New(errors.CodeValidation, "unknown storage provider: "+cfg.Provider)
	}
}

func newGDriveProvider(ctx context.Context, cfg config.Storage) (Provider, error) {
	for name, v := range map[string]string{
		"GDRIVE_CLIENT_ID":     cfg.GDriveClientID,
		"GDRIVE_CLIENT_SECRET": cfg.GDriveClientSecret,
		"GDRIVE_REFRESH_TOKEN": cfg.GDriveRefreshToken,
	} {
		if v == "" {
			return nil, errors.ConfigMissing(name)
		}
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GDriveClientID,
		ClientSecret: cfg.GDriveClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.GDriveRefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, cfg.GDriveFolderID), nil
}
