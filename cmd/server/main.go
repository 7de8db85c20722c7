package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-file-share/internal/api"
	"go-file-share/internal/repository"
	"go-file-share/internal/service"
	"go-file-share/internal/storage"
	internalws "go-file-share/internal/websocket"
	"go-file-share/pkg/config"
	"go-file-share/pkg/db"
	"go-file-share/pkg/logger"
	"go-file-share/pkg/utils"

	errors "github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var configPath string

var rootCMD = &cobra.Command{
	Use:   "fileshare-server",
	Short: "LAN file sharing server with a chat room",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		load := config.Init
		if configPath != "" {
			load = func() error { return config.Load(configPath) }
		}
		if err := load(); err != nil {
			return err
		}
		cfg := config.GlobalConfig
		if err := logger.InitLogger(cfg.Log.Level, cfg.Log.ProductionMode); err != nil {
			return errors.Wrap(err, "init logger")
		}
		defer logger.Sync()

		if cfg.Log.ProductionMode {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func init() {
	rootCMD.Flags().StringVarP(&configPath, "config", "c", "", "config file path, defaults to config/config.yaml in the project")
}

func main() {
	if err := rootCMD.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	store, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.L.Warn("Failed to close database", zap.Error(err))
		}
	}()

	content, err := storage.NewDiskStore(cfg.Storage.SharedDir)
	if err != nil {
		return err
	}
	tokens, err := utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(store)
	hub := internalws.NewHub(cfg.WebSocket)

	router := api.NewRouter(api.Dependencies{
		Auth: service.NewAuthService(userRepo, tokens),
		Files: service.NewFileService(repository.NewFileRepository(store), userRepo, content,
			cfg.Cache.Size, cfg.Cache.TTL, cfg.Storage.MaxFileSize),
		Ratings:      service.NewRatingService(repository.NewRatingRepository(store)),
		Search:       service.NewSearchService(repository.NewSearchRepository(store)),
		Chat:         service.NewChatService(hub),
		Hub:          hub,
		WSOptions:    internalws.OptionsFromConfig(cfg.WebSocket),
		Tokens:       tokens,
		RequireToken: cfg.Auth.RequireToken,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run()
		return nil
	})
	g.Go(func() error {
		logger.L.Info("Server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("shared_dir", content.Dir()),
			zap.Bool("require_token", cfg.Auth.RequireToken))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.L.Info("Shutting down server")

		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// 先停止接收新连接，再关闭聊天室里已有的连接
		err := server.Shutdown(shutdownCtx)
		if hubErr := hub.Shutdown(timeout); hubErr != nil {
			logger.L.Warn("Chat hub did not stop in time", zap.Error(hubErr))
		}
		if err != nil {
			return errors.Wrap(err, "shutdown http server")
		}
		return nil
	})

	return g.Wait()
}
