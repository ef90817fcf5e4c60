package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"nft-market-onchain/model"
)

const ipfsScheme = "ipfs://"

const (
	DefaultMetadataGateway = "https://gateway.pinata.cloud/ipfs/"
	DefaultImageGateway    = "https://ipfs.io/ipfs/"
)

// maxMetadataBytes はメタデータJSONの上限サイズ
const maxMetadataBytes = 1 << 20

var (
	// ErrUnexpectedStatus はゲートウェイが200以外を返した場合
	ErrUnexpectedStatus = errors.New("unexpected gateway status")

	// ErrMalformed はメタデータに必須の項目が無い場合
	ErrMalformed = errors.New("malformed metadata")
)

// MetadataGateway はトークンURIの先のメタデータ取得を担当
type MetadataGateway interface {
	// Fetch はtokenURIからメタデータJSONを取得
	Fetch(ctx context.Context, tokenURI string) (*model.NFTMetadata, error)

	// ImageURL は画像URIをHTTPで取得できるURLに変換
	ImageURL(uri string) string
}

// ResolveURI は先頭の ipfs:// をゲートウェイURLに置き換える
// ipfs:// 以外のURIはそのまま返す
func ResolveURI(uri, gatewayBase string) string {
	if !strings.HasPrefix(uri, ipfsScheme) {
		return uri
	}
	if !strings.HasSuffix(gatewayBase, "/") {
		gatewayBase += "/"
	}
	return gatewayBase + strings.TrimPrefix(uri, ipfsScheme)
}

// IPFSGateway はHTTPゲートウェイ経由の実装
type IPFSGateway struct {
	client          *http.Client
	metadataGateway string
	imageGateway    string
	logger          *zap.Logger
}

// NewIPFSGateway は新しいゲートウェイを作成 (空文字はデフォルトを使う)
func NewIPFSGateway(metadataGateway, imageGateway string, timeout time.Duration, logger *zap.Logger) *IPFSGateway {
	if metadataGateway == "" {
		metadataGateway = DefaultMetadataGateway
	}
	if imageGateway == "" {
		imageGateway = DefaultImageGateway
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IPFSGateway{
		client:          &http.Client{Timeout: timeout},
		metadataGateway: metadataGateway,
		imageGateway:    imageGateway,
		logger:          logger,
	}
}

func (g *IPFSGateway) ImageURL(uri string) string {
	return ResolveURI(uri, g.imageGateway)
}

// Fetch はメタデータURLにGETしてJSONをデコードする
func (g *IPFSGateway) Fetch(ctx context.Context, tokenURI string) (*model.NFTMetadata, error) {
	url := ResolveURI(tokenURI, g.metadataGateway)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata %s: %w: %d", url, ErrUnexpectedStatus, resp.StatusCode)
	}

	var meta model.NFTMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", url, err)
	}

	g.logger.Debug("Fetched metadata", zap.String("url", url), zap.String("name", meta.Name))
	return &meta, nil
}
