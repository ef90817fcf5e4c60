package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"nft-market-onchain/gateway/contract"
	"nft-market-onchain/gateway/metadata"
	"nft-market-onchain/model"
)

// ErrItemSold は販売済みの出品を購入しようとした場合に返す
var ErrItemSold = errors.New("item already sold")

// MarketUsecase はマーケットプレイス一覧と購入のビジネスロジック
type MarketUsecase interface {
	// ListUnsoldItems は未販売の出品をメタデータ付きで返す
	ListUnsoldItems(ctx context.Context) ([]*model.MarketItem, error)

	// PurchaseItem は合計金額を添えて購入トランザクションを送信
	PurchaseItem(ctx context.Context, itemId uint64) (*model.PurchaseResult, error)

	// ContractInfo はコントラクト情報を返す
	ContractInfo(ctx context.Context) (*model.ContractInfo, error)
}

type marketUsecase struct {
	market   contract.MarketplaceGateway
	nft      contract.NFTGateway
	metadata metadata.MetadataGateway
	logger   *zap.Logger
}

func NewMarketUsecase(market contract.MarketplaceGateway, nft contract.NFTGateway, meta metadata.MetadataGateway, logger *zap.Logger) *marketUsecase {
	return &marketUsecase{
		market:   market,
		nft:      nft,
		metadata: meta,
		logger:   logger,
	}
}

// ListUnsoldItems はitems(1..itemCount)を順に読み、未販売のものだけ組み立てる
// 途中で1つでも失敗したら全体を中断する
func (uc *marketUsecase) ListUnsoldItems(ctx context.Context) ([]*model.MarketItem, error) {
	// 1. 出品数を取得
	count, err := uc.market.ItemCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("get item count: %w", err)
	}

	items := []*model.MarketItem{}
	for i := uint64(1); i <= count; i++ {
		item, err := uc.market.GetItem(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("get item %d: %w", i, err)
		}
		if item.Sold {
			continue
		}

		// 2. NFTのURIを取得
		tokenURI, err := uc.nft.TokenURI(ctx, item.TokenId)
		if err != nil {
			return nil, fmt.Errorf("get token uri %d: %w", item.TokenId, err)
		}

		// 3. メタデータを取得
		meta, err := uc.metadata.Fetch(ctx, tokenURI)
		if err != nil {
			return nil, fmt.Errorf("fetch metadata for item %d: %w", item.ItemId, err)
		}
		if meta.Image == "" {
			return nil, fmt.Errorf("metadata for item %d has no image: %w", item.ItemId, metadata.ErrMalformed)
		}

		// 4. 合計金額 (価格 + 手数料) を取得
		totalPrice, err := uc.market.GetTotalPrice(ctx, item.ItemId)
		if err != nil {
			return nil, fmt.Errorf("get total price %d: %w", item.ItemId, err)
		}

		// 5. 組み立て
		items = append(items, &model.MarketItem{
			ItemId:      item.ItemId,
			TokenId:     item.TokenId,
			Seller:      item.Seller,
			Name:        meta.Name,
			Description: meta.Description,
			Image:       uc.metadata.ImageURL(meta.Image),
			TotalPrice:  totalPrice,
		})
	}

	uc.logger.Debug("Listed unsold items", zap.Uint64("item_count", count), zap.Int("unsold", len(items)))
	return items, nil
}

// PurchaseItem は最新の合計金額を取得して購入する
func (uc *marketUsecase) PurchaseItem(ctx context.Context, itemId uint64) (*model.PurchaseResult, error) {
	item, err := uc.market.GetItem(ctx, itemId)
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", itemId, err)
	}
	if item.Sold {
		return nil, fmt.Errorf("item %d: %w", itemId, ErrItemSold)
	}

	totalPrice, err := uc.market.GetTotalPrice(ctx, itemId)
	if err != nil {
		return nil, fmt.Errorf("get total price %d: %w", itemId, err)
	}

	uc.logger.Info("Purchasing item",
		zap.Uint64("item_id", itemId),
		zap.String("total_price_eth", model.FormatEther(totalPrice)))

	return uc.market.PurchaseItem(ctx, itemId, totalPrice)
}

// ContractInfo はアドレスと手数料率を返す
func (uc *marketUsecase) ContractInfo(ctx context.Context) (*model.ContractInfo, error) {
	fee, err := uc.market.FeePercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("get fee percent: %w", err)
	}
	return &model.ContractInfo{
		MarketplaceAddress: uc.market.GetContractAddress(),
		NFTAddress:         uc.nft.GetContractAddress(),
		FeePercent:         fee,
		CanPurchase:        uc.market.CanPurchase(),
	}, nil
}
