package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"nft-market-onchain/model"
)

var (
	// ErrNoSigner は購入用の秘密鍵が設定されていない場合に返す
	ErrNoSigner = errors.New("no buyer key configured")

	// ErrItemNotFound はitems(i)が空の出品を返した場合に返す
	ErrItemNotFound = errors.New("item not found")
)

// ChainClient はゲートウェイが使うノードAPI (*ethclient.Client が満たす)
type ChainClient interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	ChainID(ctx context.Context) (*big.Int, error)
}

// MarketplaceGateway はMarketplaceコントラクトとの連携を担当
type MarketplaceGateway interface {
	// ItemCount は出品の総数を取得
	ItemCount(ctx context.Context) (uint64, error)

	// GetItem はitems(i)から出品情報を取得
	GetItem(ctx context.Context, itemId uint64) (*model.ContractItem, error)

	// GetTotalPrice は価格 + 手数料を取得
	GetTotalPrice(ctx context.Context, itemId uint64) (*big.Int, error)

	// FeePercent はマーケットプレイスの手数料率を取得
	FeePercent(ctx context.Context) (uint64, error)

	// PurchaseItem はvalueを添えてpurchaseItemを送信する
	PurchaseItem(ctx context.Context, itemId uint64, value *big.Int) (*model.PurchaseResult, error)

	// CanPurchase は購入用の鍵が設定されているかを返す
	CanPurchase() bool

	// GetContractAddress はコントラクトアドレスを返す
	GetContractAddress() string
}

// NFTGateway はNFTコントラクトとの連携を担当
type NFTGateway interface {
	// TokenURI はトークンのメタデータURIを取得
	TokenURI(ctx context.Context, tokenId uint64) (string, error)

	// GetContractAddress はコントラクトアドレスを返す
	GetContractAddress() string
}

// boundContract はアドレスとABIの組で読み取り呼び出しを行う
type boundContract struct {
	client          ChainClient
	contractAddress common.Address
	contractABI     abi.ABI
}

func newBoundContract(client ChainClient, contractAddr string, abiJSON string) (boundContract, error) {
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return boundContract{}, fmt.Errorf("parse abi: %w", err)
	}
	if !common.IsHexAddress(contractAddr) {
		return boundContract{}, fmt.Errorf("invalid contract address %q", contractAddr)
	}
	return boundContract{
		client:          client,
		contractAddress: common.HexToAddress(contractAddr),
		contractABI:     parsedABI,
	}, nil
}

// call はビュー関数を呼び出して結果をデコードする
func (c *boundContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{
		To:   &c.contractAddress,
		Data: data,
	}

	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := c.contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// callUint はuint256を1つ返す関数を呼び出す
func (c *boundContract) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func toUint64(name string, v *big.Int) (uint64, error) {
	if v == nil || !v.IsUint64() {
		return 0, fmt.Errorf("%s out of range: %v", name, v)
	}
	return v.Uint64(), nil
}

// ===============================================
// Marketplace
// ===============================================

// MarketplaceContractGateway はMarketplaceコントラクトとの連携実装
type MarketplaceContractGateway struct {
	boundContract
	buyerKey *ecdsa.PrivateKey
	logger   *zap.Logger
}

// NewMarketplaceContractGateway は新しいコントラクトゲートウェイを作成
// buyerKeyHex が空の場合は読み取り専用になる
func NewMarketplaceContractGateway(client ChainClient, contractAddr string, buyerKeyHex string, logger *zap.Logger) (*MarketplaceContractGateway, error) {
	bc, err := newBoundContract(client, contractAddr, MarketplaceABI)
	if err != nil {
		return nil, err
	}

	g := &MarketplaceContractGateway{
		boundContract: bc,
		logger:        logger,
	}

	if buyerKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(buyerKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse buyer key: %w", err)
		}
		g.buyerKey = key
		logger.Info("Buyer account configured",
			zap.String("buyer", crypto.PubkeyToAddress(key.PublicKey).Hex()))
	} else {
		logger.Warn("Buyer key not set, purchases are disabled")
	}

	if bc.contractAddress == (common.Address{}) {
		logger.Warn("Marketplace address appears to be zero address")
	}
	logger.Info("Marketplace contract gateway initialized",
		zap.String("address", bc.contractAddress.Hex()))

	return g, nil
}

func (g *MarketplaceContractGateway) GetContractAddress() string {
	return g.contractAddress.Hex()
}

func (g *MarketplaceContractGateway) CanPurchase() bool {
	return g.buyerKey != nil
}

// ItemCount はitemCount()を呼び出す
func (g *MarketplaceContractGateway) ItemCount(ctx context.Context) (uint64, error) {
	count, err := g.callUint(ctx, "itemCount")
	if err != nil {
		return 0, err
	}
	return toUint64("itemCount", count)
}

// FeePercent はfeePercent()を呼び出す
func (g *MarketplaceContractGateway) FeePercent(ctx context.Context) (uint64, error) {
	fee, err := g.callUint(ctx, "feePercent")
	if err != nil {
		return 0, err
	}
	return toUint64("feePercent", fee)
}

// GetTotalPrice はgetTotalPrice(itemId)を呼び出す
func (g *MarketplaceContractGateway) GetTotalPrice(ctx context.Context, itemId uint64) (*big.Int, error) {
	return g.callUint(ctx, "getTotalPrice", new(big.Int).SetUint64(itemId))
}

// GetItem はコントラクトから出品情報を取得
func (g *MarketplaceContractGateway) GetItem(ctx context.Context, itemId uint64) (*model.ContractItem, error) {
	data, err := g.contractABI.Pack("items", new(big.Int).SetUint64(itemId))
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{
		To:   &g.contractAddress,
		Data: data,
	}

	result, err := g.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call items(%d): %w", itemId, err)
	}

	// 結果をデコード
	var item struct {
		ItemId  *big.Int
		Nft     common.Address
		TokenId *big.Int
		Price   *big.Int
		Seller  common.Address
		Sold    bool
	}

	if err := g.contractABI.UnpackIntoInterface(&item, "items", result); err != nil {
		return nil, fmt.Errorf("unpack items(%d): %w", itemId, err)
	}

	// 存在しないインデックスはゼロ値の構造体が返る
	if item.ItemId == nil || item.ItemId.Sign() == 0 {
		return nil, fmt.Errorf("items(%d): %w", itemId, ErrItemNotFound)
	}

	id, err := toUint64("itemId", item.ItemId)
	if err != nil {
		return nil, err
	}
	tokenId, err := toUint64("tokenId", item.TokenId)
	if err != nil {
		return nil, err
	}

	return &model.ContractItem{
		ItemId:  id,
		Nft:     item.Nft.Hex(),
		TokenId: tokenId,
		Price:   item.Price,
		Seller:  item.Seller.Hex(),
		Sold:    item.Sold,
	}, nil
}

// PurchaseItem はpurchaseItem(itemId)に署名して送信する
// レシートの確認は行わない
func (g *MarketplaceContractGateway) PurchaseItem(ctx context.Context, itemId uint64, value *big.Int) (*model.PurchaseResult, error) {
	if g.buyerKey == nil {
		return nil, ErrNoSigner
	}

	data, err := g.contractABI.Pack("purchaseItem", new(big.Int).SetUint64(itemId))
	if err != nil {
		return nil, err
	}

	from := crypto.PubkeyToAddress(g.buyerKey.PublicKey)

	nonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &g.contractAddress,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	chainID, err := g.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.contractAddress,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), g.buyerKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := g.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	g.logger.Info("Purchase transaction sent",
		zap.Uint64("item_id", itemId),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.String("value_wei", value.String()),
		zap.Uint64("gas", gasLimit))

	return &model.PurchaseResult{
		ItemId:   itemId,
		TxHash:   signedTx.Hash().Hex(),
		ValueWei: value.String(),
		ValueETH: model.FormatEther(value),
		Buyer:    from.Hex(),
	}, nil
}

// ===============================================
// NFT
// ===============================================

// NFTContractGateway はNFTコントラクトとの連携実装
type NFTContractGateway struct {
	boundContract
}

// NewNFTContractGateway は新しいNFTゲートウェイを作成
func NewNFTContractGateway(client ChainClient, contractAddr string) (*NFTContractGateway, error) {
	bc, err := newBoundContract(client, contractAddr, NFTABI)
	if err != nil {
		return nil, err
	}
	return &NFTContractGateway{boundContract: bc}, nil
}

func (g *NFTContractGateway) GetContractAddress() string {
	return g.contractAddress.Hex()
}

// TokenURI はtokenURI(tokenId)を呼び出す
func (g *NFTContractGateway) TokenURI(ctx context.Context, tokenId uint64) (string, error) {
	out, err := g.call(ctx, "tokenURI", new(big.Int).SetUint64(tokenId))
	if err != nil {
		return "", err
	}
	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("tokenURI: unexpected return type %T", out[0])
	}
	return uri, nil
}
