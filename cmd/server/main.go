// Command server runs the dedup pipeline's REST and gRPC surfaces.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gotrs-io/deduptickets/internal/api/dedupapi"
	"github.com/gotrs-io/deduptickets/internal/config"
	"github.com/gotrs-io/deduptickets/internal/grpcapi"
)

var (
	version = "dev"
	commit  = "none"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:     "dedupserver",
	Short:   "Ticket dedup service - REST and gRPC server",
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST and gRPC servers",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", ".", "directory containing config.yaml")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Load(configPathFlag); err != nil {
		log.Printf("config: %v, continuing with defaults/env", err)
	}
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration did not load")
	}
	if err := config.ValidateSecrets(cfg); err != nil {
		return fmt.Errorf("secret validation failed: %w", err)
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	app, err := NewApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	defer app.Close()

	httpSrv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      newRouter(app),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	grpcSrv := grpc.NewServer()
	grpcapi.RegisterDedupServiceServer(grpcSrv, grpcapi.New(app.Ingest, app.Clustering, app.Merge))

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("http server listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Printf("grpc server listening on %s", grpcLis.Addr())
		if err := grpcSrv.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcSrv.GracefulStop()

	return nil
}

// newRouter mounts the dedup REST API plus /healthz and /metrics onto
// a fresh gin.Engine.
func newRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET(app.Config.Metrics.Path, gin.WrapH(app.Metrics.Handler()))

	dedupapi.New(app.Ingest, app.Clustering, app.Merge, app.Clusters).Register(r.Group("/v1"))
	return r
}
