package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/config"
	"github.com/GoldenEggs-Workshop/spend-what-server/internal/db"
	"github.com/GoldenEggs-Workshop/spend-what-server/internal/handlers"
	applog "github.com/GoldenEggs-Workshop/spend-what-server/internal/log"
	"github.com/GoldenEggs-Workshop/spend-what-server/internal/mq"
	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
	"github.com/GoldenEggs-Workshop/spend-what-server/internal/storage"
	"github.com/GoldenEggs-Workshop/spend-what-server/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server wraps the HTTP server and its backing resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	log        zerolog.Logger
}

// New constructs a Server: database, repositories, services, optional
// object storage and message queue, router, middleware.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := applog.New(cfg.Environment)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	st := store.New(dbConn)

	receipts, err := newReceiptStorage(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, events, err := newEventPublisher(ctx, cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	authService := services.NewAuthService(st)
	billService := services.NewBillService(st, events)
	itemService := services.NewItemService(st, receiptStorageOrNil(receipts), events)
	shareService := services.NewShareService(st, events)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger(logger),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Use(handlers.ResolveSession(authService))
		r.Route("/user", func(r chi.Router) {
			handlers.AuthRouter(r, authService)
		})
		r.Route("/bill", func(r chi.Router) {
			handlers.BillRouter(r, billService)
			r.Route("/share", func(r chi.Router) {
				handlers.ShareRouter(r, shareService)
			})
			r.Route("/item", func(r chi.Router) {
				handlers.ItemRouter(r, itemService)
			})
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		log:        logger,
	}, nil
}

// Router exposes the chi router for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown closes the server and its resources.
func (s *Server) Shutdown() error {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func newReceiptStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("init gcs: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	wrapped := storage.NewStorage(backend)
	if err := wrapped.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return wrapped, nil
}

// receiptStorageOrNil keeps the typed-nil pointer out of the service's
// interface field.
func receiptStorageOrNil(s *storage.Storage) services.ReceiptStorage {
	if s == nil {
		return nil
	}
	return s
}

func newEventPublisher(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*mq.MQ, services.EventPublisher, error) {
	var backend mq.Backend
	switch cfg.MQ.Backend {
	case "":
		return nil, services.NopPublisher{}, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
		if err != nil {
			return nil, nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		backend = client
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.MQ.PubSub)
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub: %w", err)
		}
		backend = client
	default:
		return nil, nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}

	queue := mq.New(backend)
	return queue, mq.NewActivityPublisher(queue, logger), nil
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
