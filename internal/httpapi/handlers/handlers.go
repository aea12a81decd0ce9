package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"slideloop/internal/exports/signing"
	"slideloop/internal/models"
	"slideloop/internal/pkg/logger"
	"slideloop/internal/ports"
	"slideloop/internal/repositories"
	"slideloop/internal/worker/queue"
)

type Deps struct {
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	SP        ports.StorageProvider
	Signer    *signing.Signer
	QueueName string
	Log       *logger.Logger
}

// exportStore and carouselStore are the repository slices the handlers read.
type exportStore interface {
	Create(ctx context.Context, run *models.ExportRun) error
	Get(ctx context.Context, id string) (*models.ExportRun, error)
}

type carouselStore interface {
	Get(ctx context.Context, id string) (*models.Carousel, error)
	Slides(ctx context.Context, carouselID string) ([]models.Slide, error)
	Slide(ctx context.Context, carouselID string, index int) (*models.Slide, error)
	UpdateSlideBackground(ctx context.Context, carouselID string, index int, backgroundJSON []byte) error
}

type Handler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	sp        ports.StorageProvider
	signer    *signing.Signer
	queue     *queue.RedisQueue
	exports   exportStore
	carousels carouselStore
	log       *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		pool:      d.Pool,
		rdb:       d.RDB,
		sp:        d.SP,
		signer:    d.Signer,
		queue:     queue.NewRedisQueue(d.RDB, d.QueueName),
		exports:   repositories.NewExportRepository(d.Pool),
		carousels: repositories.NewCarouselRepository(d.Pool),
		log:       log.WithComponent("api"),
	}
}
