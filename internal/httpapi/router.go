package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"slideloop/internal/exports/signing"
	"slideloop/internal/httpapi/handlers"
	"slideloop/internal/httpkit"
	"slideloop/internal/pkg/logger"
	"slideloop/internal/pkg/middleware"
	"slideloop/internal/ports"
)

type Deps struct {
	Pool           *pgxpool.Pool
	RDB            *redis.Client
	SP             ports.StorageProvider
	Signer         *signing.Signer
	QueueName      string
	AllowedOrigins []string
	Log            *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	allowedOrigins := d.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173"}
	}
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Pool:      d.Pool,
		RDB:       d.RDB,
		SP:        d.SP,
		Signer:    d.Signer,
		QueueName: d.QueueName,
		Log:       log,
	})

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- EXPORTS ----
	r.Post("/carousels/{carouselId}/exports", h.PostExport)
	r.Get("/exports/{exportId}", h.GetExport)
	r.Get("/exports/{exportId}/video-slides", h.GetVideoSlides)

	// ---- BACKGROUNDS ----
	r.Post("/carousels/{carouselId}/slides/{slideIndex}/background/shuffle", h.PostShuffleBackground)

	// ---- IMAGE PROXY ----
	r.Get(signing.ProxyPath, h.GetProxyImage)

	// ---- LOCAL FILE SERVING ----
	r.Get("/files/*", h.GetFile)

	return r
}
