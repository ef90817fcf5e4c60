package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nft-market-onchain/gateway/metadata"
)

// Config はサービス全体の設定
type Config struct {
	Port     string      `yaml:"port"`
	LogLevel string      `yaml:"log_level"` // debug, info, warn, error
	Chain    ChainConfig `yaml:"chain"`
	IPFS     IPFSConfig  `yaml:"ipfs"`
	View     ViewConfig  `yaml:"view"`
	API      APIConfig   `yaml:"api"`
}

// ChainConfig はノードとコントラクトの設定
type ChainConfig struct {
	NodeURL            string `yaml:"node_url"`
	MarketplaceAddress string `yaml:"marketplace_address"`
	NFTAddress         string `yaml:"nft_address"`
	BuyerPrivateKey    string `yaml:"buyer_private_key"` // 空なら購入は無効
	CallTimeout        string `yaml:"call_timeout"`
}

// IPFSConfig はメタデータ取得の設定
type IPFSConfig struct {
	MetadataGateway string `yaml:"metadata_gateway"`
	ImageGateway    string `yaml:"image_gateway"`
	Timeout         string `yaml:"timeout"`
}

// ViewConfig は一覧画面の設定
type ViewConfig struct {
	FallbackImageURL string `yaml:"fallback_image_url"`
}

// APIConfig は購入エンドポイントの認証とCORSの設定
type APIConfig struct {
	Token          string   `yaml:"token"`           // 購入に必要なBearerトークン
	AllowedOrigins []string `yaml:"allowed_origins"` // 空ならCORSを無効にする
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Port:     "8080",
		LogLevel: "info",
		Chain: ChainConfig{
			CallTimeout: "30s",
		},
		IPFS: IPFSConfig{
			MetadataGateway: metadata.DefaultMetadataGateway,
			ImageGateway:    metadata.DefaultImageGateway,
			Timeout:         "10s",
		},
		View: ViewConfig{
			FallbackImageURL: "fallback-image-url.jpg",
		},
	}
}

// Load はYAMLファイルを読み込み、環境変数で上書きする
// path が空ならデフォルト + 環境変数のみ
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"PORT", &c.Port},
		{"LOG_LEVEL", &c.LogLevel},
		{"INFURA_SEPOLIA_URL", &c.Chain.NodeURL},
		{"MARKETPLACE_CONTRACT_ADDRESS", &c.Chain.MarketplaceAddress},
		{"NFT_CONTRACT_ADDRESS", &c.Chain.NFTAddress},
		{"BUYER_PRIVATE_KEY", &c.Chain.BuyerPrivateKey},
		{"IPFS_METADATA_GATEWAY", &c.IPFS.MetadataGateway},
		{"IPFS_IMAGE_GATEWAY", &c.IPFS.ImageGateway},
		{"FALLBACK_IMAGE_URL", &c.View.FallbackImageURL},
		{"MARKET_API_TOKEN", &c.API.Token},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.API.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.API.AllowedOrigins = append(c.API.AllowedOrigins, origin)
			}
		}
	}
}

// Validate は起動に必要な項目を確認する
func (c *Config) Validate() error {
	var errs []error
	if c.Chain.NodeURL == "" {
		errs = append(errs, errors.New("chain.node_url (INFURA_SEPOLIA_URL) is required"))
	}
	if c.Chain.MarketplaceAddress == "" {
		errs = append(errs, errors.New("chain.marketplace_address (MARKETPLACE_CONTRACT_ADDRESS) is required"))
	}
	if c.Chain.NFTAddress == "" {
		errs = append(errs, errors.New("chain.nft_address (NFT_CONTRACT_ADDRESS) is required"))
	}
	if _, err := c.GetCallTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GetIPFSTimeout(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateAPI はHTTPサーバー起動時だけの確認
// 購入用の鍵があるのにトークンが無い場合はエラー
func (c *Config) ValidateAPI() error {
	if c.Chain.BuyerPrivateKey != "" && c.API.Token == "" {
		return errors.New("api.token (MARKET_API_TOKEN) is required when buyer_private_key is set")
	}
	return nil
}

// GetCallTimeout はコントラクト呼び出し1回分のタイムアウト
func (c *Config) GetCallTimeout() (time.Duration, error) {
	return parseDuration("chain.call_timeout", c.Chain.CallTimeout)
}

// GetIPFSTimeout はメタデータ取得のタイムアウト
func (c *Config) GetIPFSTimeout() (time.Duration, error) {
	return parseDuration("ipfs.timeout", c.IPFS.Timeout)
}

func parseDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
