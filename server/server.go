package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"beatmarket/config"
	"beatmarket/core/auth"
	"beatmarket/core/musician"
	"beatmarket/core/resource"
	"beatmarket/core/upload"
	"beatmarket/logger"
	"beatmarket/repository"
	"beatmarket/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries the long-lived handles the API is built from.
type Options struct {
	Config   *config.Config
	Registry *resource.Registry
	Records  repository.Gateway
	Store    storage.ObjectStore
	Tokens   *auth.TokenIssuer
	// PingDB reports database health; nil skips the check.
	PingDB func(ctx context.Context) error
}

// APIHandler serves every /api route.
type APIHandler struct {
	cfg       *config.Config
	registry  *resource.Registry
	engines   map[string]*resource.Engine
	files     *upload.Gateway
	store     storage.ObjectStore
	musicians *musician.Aggregator
	tokens    *auth.TokenIssuer
	pingDB    func(ctx context.Context) error
}

func NewAPIHandler(opts Options) *APIHandler {
	h := &APIHandler{
		cfg:      opts.Config,
		registry: opts.Registry,
		engines:  map[string]*resource.Engine{},
		files:    upload.NewGateway(opts.Store, opts.Config.ImageMaxBytes, opts.Config.AudioMaxBytes),
		store:    opts.Store,
		tokens:   opts.Tokens,
		pingDB:   opts.PingDB,
	}
	for _, res := range opts.Registry.All() {
		h.engines[res.Name] = resource.NewEngine(opts.Records, res)
	}
	h.musicians = musician.NewAggregator(opts.Records, opts.Registry.MustGet(resource.Tracks).Table)
	return h
}

func (h *APIHandler) engine(name string) *resource.Engine {
	return h.engines[name]
}

// Router builds the full HTTP handler, middleware included.
func (h *APIHandler) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(metricsMiddleware, h.bodyLimit, h.authMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/signup", h.SignupHandler).Methods(http.MethodPost).Name(routeSignup)
	api.HandleFunc("/signin", h.SigninHandler).Methods(http.MethodPost).Name(routeSignin)
	api.HandleFunc("/profile/{id}", h.ProfileHandler).Methods(http.MethodPut)

	api.HandleFunc("/tracks/upload", h.TrackUploadHandler).Methods(http.MethodPost)
	api.HandleFunc("/sound-kits/upload", h.SoundKitUploadHandler).Methods(http.MethodPost)
	for _, res := range h.registry.All() {
		h.registerResource(api, h.engine(res.Name))
	}

	api.HandleFunc("/upload-image", h.UploadImageHandler).Methods(http.MethodPost)
	api.HandleFunc("/upload-audio", h.UploadAudioHandler).Methods(http.MethodPost)
	api.HandleFunc("/file", h.GetFileHandler).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/file", h.DeleteFileHandler).Methods(http.MethodDelete)
	api.HandleFunc("/file/{path:.+}", h.GetFileHandler).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/file/{path:.+}", h.DeleteFileHandler).Methods(http.MethodDelete)
	api.HandleFunc("/files", h.ListFilesHandler).Methods(http.MethodGet)

	api.HandleFunc("/musicians", h.ListMusiciansHandler).Methods(http.MethodGet)
	api.HandleFunc("/musicians/{id}", h.GetMusicianHandler).Methods(http.MethodGet)

	api.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	api.HandleFunc("/storage/config", h.StorageConfigHandler).Methods(http.MethodGet)
	api.HandleFunc("/storage/test", h.StorageTestHandler).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Route not found"})
	})

	return corsMiddleware(requestLogger(router))
}

// Run serves handler on cfg.HTTPAddr until ctx is cancelled or the process
// receives SIGINT/SIGTERM, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
