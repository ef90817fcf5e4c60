package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nft-market-onchain/config"
	contractGateway "nft-market-onchain/gateway/contract"
	metadataGateway "nft-market-onchain/gateway/metadata"
	marketUsecase "nft-market-onchain/usecase/market"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "marketd",
	Short:         "NFT marketplace listing and purchase service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = newLogger(cfg.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (env vars override it)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd(), listCmd(), buyCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// app はゲートウェイとユースケースをまとめたもの
type app struct {
	client   *ethclient.Client
	market   *contractGateway.MarketplaceContractGateway
	marketUC marketUsecase.MarketUsecase
}

func (a *app) Close() {
	a.client.Close()
}

// newApp はノードに接続して依存性を組み立てる
func newApp(ctx context.Context) (*app, error) {
	// --- 1. ethclientの初期化 ---
	client, err := ethclient.DialContext(ctx, cfg.Chain.NodeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}
	logger.Info("Successfully connected to node")

	// --- 2. ゲートウェイ ---
	market, err := contractGateway.NewMarketplaceContractGateway(client, cfg.Chain.MarketplaceAddress, cfg.Chain.BuyerPrivateKey, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize marketplace gateway: %w", err)
	}

	nft, err := contractGateway.NewNFTContractGateway(client, cfg.Chain.NFTAddress)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize nft gateway: %w", err)
	}
	logger.Info("NFT contract", zap.String("address", nft.GetContractAddress()))

	ipfsTimeout, _ := cfg.GetIPFSTimeout()
	meta := metadataGateway.NewIPFSGateway(cfg.IPFS.MetadataGateway, cfg.IPFS.ImageGateway, ipfsTimeout, logger)

	// --- 3. ユースケース ---
	return &app{
		client:   client,
		market:   market,
		marketUC: marketUsecase.NewMarketUsecase(market, nft, meta, logger),
	}, nil
}
