package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"librarydesk/internal/database"
	"librarydesk/internal/handlers"
)

var serverAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serverAddr != "" {
			cfg.ServerAddr = serverAddr
		}

		db, svc, err := openService(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)

		router := gin.Default()
		_ = router.SetTrustedProxies([]string{"127.0.0.1"})

		router.GET("/health", func(c *gin.Context) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "db_error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.DBDriver})
		})

		handlers.RegisterRoutes(router, svc)

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("shutdown signal received: %s", sig)
		case err := <-errCh:
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
		log.Println("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverAddr, "addr", "", "Listen address (overrides SERVER_ADDR)")
}
