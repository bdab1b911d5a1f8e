package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Akshdhiwar/simpledocs-archive/internals/api"
	"github.com/Akshdhiwar/simpledocs-archive/internals/middleware"
	"github.com/Akshdhiwar/simpledocs-archive/internals/utils"
)

const baseRoute = "api/v1"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server exposing:
  GET  /api/v1/items/zip-export/:itemId         export an item tree (auth)
  GET  /api/v1/items/public/zip-export/:itemId  export a public item tree
  POST /api/v1/items/zip-import?parentId=       import a zip archive (auth)
  GET  /api/v1/ping`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	if a.cfg.JWTSecret == "" {
		return errors.New("jwt_secret is required to serve")
	}
	auth, err := middleware.NewAuthenticator(a.cfg.JWTSecret, a.log)
	if err != nil {
		return err
	}

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(a.log))

	rateLimiter := utils.NewRateLimiter(a.cfg.RateLimit, a.cfg.RateWindow, a.cfg.RateBlock, a.log)
	router.Use(rateLimiter.Middleware())
	router.Use(utils.Cors(a.cfg.AllowedOrigins))

	// default route
	api.Default(router.Group(baseRoute))

	// api routes for zip export and import
	api.ZipRoutes(router.Group(baseRoute+"/items"), a.zip, auth)

	scheduler, err := utils.StartScheduler(a.workspaces, rateLimiter, a.cfg.TmpSweepInterval, a.cfg.TmpMaxAge, a.cfg.RateWindow+a.cfg.RateBlock, a.log)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("port", a.cfg.Port).Info("Server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
