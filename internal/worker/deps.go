package worker

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"slideloop/internal/exports/engine"
	"slideloop/internal/pkg/logger"
	"slideloop/internal/ports"
)

type Deps struct {
	Pool        *pgxpool.Pool
	RDB         *redis.Client
	QueueName   string
	SP          ports.StorageProvider
	Renderer    engine.Renderer
	AppOrigin   string
	ProxySecret string
	Concurrency int
	Log         *logger.Logger
}
