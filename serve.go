package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	marketHandler "nft-market-onchain/handler/market"
	"nft-market-onchain/handler/middleware"
	"nft-market-onchain/metrics"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and market page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func runServer(ctx context.Context) error {
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg)

	hdlr := marketHandler.NewMarketHandler(a.marketUC, serverMetrics, logger, cfg.View.FallbackImageURL)

	// --- ルーティングの設定 ---
	router := mux.NewRouter()
	router.Use(serverMetrics.Middleware)

	// ヘルスチェック用エンドポイント
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
	router.HandleFunc("/", health).Methods("GET")
	router.HandleFunc("/health", health).Methods("GET")
	router.Handle("/metrics", metrics.Handler(reg)).Methods("GET")

	hdlr.RegisterRoutes(router, middleware.SameOrigin, middleware.RequireToken(cfg.API.Token))
	if cfg.API.Token == "" {
		logger.Warn("MARKET_API_TOKEN is not set; purchase routes will reject every request")
	}

	callTimeout, _ := cfg.GetCallTimeout()
	var handler http.Handler = router
	handler = middleware.Timeout(callTimeout)(handler)
	handler = middleware.AccessLog(logger)(handler)
	handler = middleware.RequestID(handler)

	// --- CORSミドルウェアの設定 ---
	if opts, ok := corsOptions(cfg.API.AllowedOrigins); ok {
		handler = cors.New(opts).Handler(handler)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Marketplace service starting",
		zap.String("addr", srv.Addr),
		zap.String("marketplace", a.market.GetContractAddress()),
		zap.Bool("purchases_enabled", a.market.CanPurchase()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// corsOptions は許可オリジンからCORS設定を作る
// 空ならCORSを掛けない (rs/cors は空リストを "*" と扱うため)
// "*" を含む場合は資格情報を許可しない
func corsOptions(origins []string) (cors.Options, bool) {
	if len(origins) == 0 {
		return cors.Options{}, false
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		AllowCredentials: !slices.Contains(origins, "*"),
	}, true
}
