// Package main our entry point.
package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/johndosdos/friendlychat/internal"
	"github.com/johndosdos/friendlychat/internal/auth"
	"github.com/johndosdos/friendlychat/internal/broker"
	"github.com/johndosdos/friendlychat/internal/config"
	"github.com/johndosdos/friendlychat/internal/database"
	"github.com/johndosdos/friendlychat/internal/diagnostics"
	"github.com/johndosdos/friendlychat/internal/feed"
	"github.com/johndosdos/friendlychat/internal/handler"
	"github.com/johndosdos/friendlychat/internal/livestore"
	"github.com/johndosdos/friendlychat/internal/metrics"
	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/push"
	limiter "github.com/johndosdos/friendlychat/internal/rate_limiter"
	"github.com/johndosdos/friendlychat/internal/session"
	"github.com/johndosdos/friendlychat/internal/storage"
	"github.com/johndosdos/friendlychat/internal/submission"
	ws "github.com/johndosdos/friendlychat/internal/websocket"
	"github.com/johndosdos/friendlychat/internal/worker"
	"github.com/johndosdos/friendlychat/sql/schema"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Starting application...")

	// Diagnostics
	var diagOut io.Writer = os.Stderr
	if cfg.Diagnostics.File != "" {
		f, err := os.OpenFile(cfg.Diagnostics.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("failed to open diagnostics file: %v", err)
		}
		defer f.Close()
		diagOut = f
	}

	diagCtx, stopDiag := context.WithCancel(context.Background())
	sink := diagnostics.NewSink(diagOut, diagnostics.DefaultBuffer)
	go sink.Run(diagCtx)

	// Init DB
	log.Println("Initializing Database connection...")

	dbConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("could not connect to the postgresql database: %v", err)
	}

	if err := schema.Up(stdlib.OpenDBFromPool(dbConn)); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	dbQueries := database.New(dbConn)

	// Init NATS
	log.Println("Initializing NATS connection...")

	var natsOpts []nats.Option
	if cfg.NATS.Cred != "" {
		natsOpts = append(natsOpts, nats.UserCredentials(cfg.NATS.Cred))
	} else if cfg.NATS.User != "" && cfg.NATS.Password != "" {
		natsOpts = append(natsOpts, nats.UserInfo(cfg.NATS.User, cfg.NATS.Password))
	}
	natsOpts = append(natsOpts, nats.Timeout(5*time.Second))

	conn, err := nats.Connect(cfg.NATS.URL, natsOpts...)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		log.Fatalf("failed to create jetstream instance: %v", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, broker.StreamConfig())
	if err != nil {
		log.Fatalf("failed to create/update stream: %v", err)
	}

	// Init object storage
	bucket, err := storage.New(ctx, storage.Options{
		Bucket:        cfg.S3.Bucket,
		Region:        cfg.S3.Region,
		Endpoint:      cfg.S3.Endpoint,
		AccessKey:     cfg.S3.AccessKey,
		SecretKey:     cfg.S3.SecretKey,
		PublicBaseURL: cfg.S3.PublicBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	store := livestore.New(dbQueries, broker.NewPublisher(js))

	// hub.Run owns the live query and fans its changes out to every page.
	hub := ws.NewHub(store, cfg.Chat.FeedLimit)
	go hub.Run(ctx, stream)

	if cfg.APNS.Enabled() {
		client, err := push.NewAPNSClient(push.APNSOptions{
			KeyFile:    cfg.APNS.KeyFile,
			KeyID:      cfg.APNS.KeyID,
			TeamID:     cfg.APNS.TeamID,
			Topic:      cfg.APNS.Topic,
			Production: cfg.APNS.Production,
		})
		if err != nil {
			log.Fatalf("failed to init apns client: %v", err)
		}

		changes := make(chan model.Change, 256)
		if err := broker.Subscribe(ctx, stream, changes); err != nil {
			log.Fatalf("failed to subscribe notifier: %v", err)
		}
		go push.NewNotifier(dbQueries, client, cfg.APNS.Topic).Run(ctx, changes)
	}

	go worker.NewSweeper(store, cfg.Chat.PendingTTL).Run(ctx)

	keys := auth.Keys{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}
	requireUser := internal.RequireUser(dbQueries, keys)
	optionalUser := internal.OptionalUser(dbQueries, keys)

	accountLimiter := limiter.NewIPRateLimiter(10, time.Minute, limiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})
	defer accountLimiter.Stop()

	uploadLimiter := limiter.NewIPRateLimiter(20, time.Minute, limiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})
	defer uploadLimiter.Stop()

	sessionDeps := handler.SessionDeps{
		Store:    store,
		Objects:  bucket,
		Reporter: sink,
		Options: session.Options{
			Feed:  feed.Options{ResortOnTimestamp: cfg.Chat.ResortOnTimestamp},
			Limit: cfg.Chat.MessageLimit,
			Submission: submission.Options{
				LimitImages:     cfg.Chat.LimitImages,
				LoadingImageURL: submission.LoadingImageURL,
				UploadTimeout:   2 * time.Minute,
			},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	fs := http.FileServer(http.Dir("static"))
	r.Handle("/static/*", http.StripPrefix("/static/", fs))

	r.Get("/", handler.ServeChat())
	r.With(optionalUser).Get("/ws", handler.ServeWs(hub, dbQueries, sessionDeps))
	r.With(uploadLimiter.Middleware, optionalUser).Post("/messages/image", handler.ServeImageUpload(hub))
	r.With(requireUser).Post("/push/token", handler.ServePushToken(dbQueries))

	r.Route("/account", func(r chi.Router) {
		r.Get("/login", handler.ServeLoginPage())
		r.With(accountLimiter.Middleware).Post("/login", handler.SubmitLoginForm(dbQueries, keys))
		r.Get("/signup", handler.ServeSignupPage())
		r.With(accountLimiter.Middleware).Post("/signup", handler.SubmitSignupForm(dbQueries))
		r.Post("/logout", handler.SubmitLogoutReq(dbQueries, hub))
		r.Post("/refresh", handler.RefreshToken(dbQueries, keys))

		if cfg.Google.Enabled() {
			google := auth.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
			r.Get("/google", handler.ServeGoogleLogin(google))
			r.Get("/google/callback", handler.ServeGoogleCallback(google, dbQueries, keys))
		} else {
			r.Get("/google", http.RedirectHandler("/account/login", http.StatusSeeOther).ServeHTTP)
		}
	})

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", handler.ServeHealthz(dbConn, pingFunc(conn.FlushWithContext)))

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		log.Printf("Server starting at 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println(err)
	}

	// Drain NATS connection.
	if err := conn.Drain(); err != nil {
		log.Printf("couldn't drain NATS conn: %+v", err)
	}

	dbConn.Close()

	stopDiag()
	<-sink.Done()

	slog.Info("server stopped")
}
