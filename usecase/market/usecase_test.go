package usecase

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"nft-market-onchain/gateway/contract"
	"nft-market-onchain/gateway/metadata"
	"nft-market-onchain/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeMarket struct {
	items       map[uint64]*model.ContractItem
	totals      map[uint64]*big.Int
	countErr    error
	totalErr    error
	purchaseErr error
	purchased   []*big.Int
	calls       []uint64
}

func (f *fakeMarket) ItemCount(ctx context.Context) (uint64, error) {
	return uint64(len(f.items)), f.countErr
}

func (f *fakeMarket) GetItem(ctx context.Context, itemId uint64) (*model.ContractItem, error) {
	f.calls = append(f.calls, itemId)
	item, ok := f.items[itemId]
	if !ok {
		return nil, contract.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeMarket) GetTotalPrice(ctx context.Context, itemId uint64) (*big.Int, error) {
	if f.totalErr != nil {
		return nil, f.totalErr
	}
	return f.totals[itemId], nil
}

func (f *fakeMarket) FeePercent(ctx context.Context) (uint64, error) { return 1, nil }

func (f *fakeMarket) PurchaseItem(ctx context.Context, itemId uint64, value *big.Int) (*model.PurchaseResult, error) {
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	f.purchased = append(f.purchased, value)
	return &model.PurchaseResult{ItemId: itemId, TxHash: "0xabc", ValueWei: value.String()}, nil
}

func (f *fakeMarket) CanPurchase() bool { return f.purchaseErr == nil }

func (f *fakeMarket) GetContractAddress() string { return "0xMarket" }

type fakeNFT struct {
	uris map[uint64]string
}

func (f *fakeNFT) TokenURI(ctx context.Context, tokenId uint64) (string, error) {
	uri, ok := f.uris[tokenId]
	if !ok {
		return "", errors.New("nonexistent token")
	}
	return uri, nil
}

func (f *fakeNFT) GetContractAddress() string { return "0xNFT" }

type fakeMetadata struct {
	docs map[string]*model.NFTMetadata
}

func (f *fakeMetadata) Fetch(ctx context.Context, tokenURI string) (*model.NFTMetadata, error) {
	doc, ok := f.docs[tokenURI]
	if !ok {
		return nil, metadata.ErrUnexpectedStatus
	}
	return doc, nil
}

func (f *fakeMetadata) ImageURL(uri string) string {
	return metadata.ResolveURI(uri, metadata.DefaultImageGateway)
}

func newFixture() (*fakeMarket, *fakeNFT, *fakeMetadata) {
	market := &fakeMarket{
		items: map[uint64]*model.ContractItem{
			1: {ItemId: 1, TokenId: 10, Price: big.NewInt(100), Seller: "0xAlice", Sold: false},
			2: {ItemId: 2, TokenId: 11, Price: big.NewInt(200), Seller: "0xBob", Sold: true},
			3: {ItemId: 3, TokenId: 12, Price: big.NewInt(300), Seller: "0xCarol", Sold: false},
		},
		totals: map[uint64]*big.Int{
			1: big.NewInt(101),
			2: big.NewInt(202),
			3: big.NewInt(303),
		},
	}
	nft := &fakeNFT{uris: map[uint64]string{
		10: "ipfs://QmA/10.json",
		11: "ipfs://QmA/11.json",
		12: "ipfs://QmA/12.json",
	}}
	meta := &fakeMetadata{docs: map[string]*model.NFTMetadata{
		"ipfs://QmA/10.json": {Name: "Ten", Description: "token ten", Image: "ipfs://QmImg/10.png"},
		"ipfs://QmA/11.json": {Name: "Eleven", Description: "token eleven", Image: "ipfs://QmImg/11.png"},
		"ipfs://QmA/12.json": {Name: "Twelve", Description: "token twelve", Image: "https://cdn.example/12.png"},
	}}
	return market, nft, meta
}

func TestListUnsoldItems(t *testing.T) {
	market, nft, meta := newFixture()
	uc := NewMarketUsecase(market, nft, meta, zap.NewNop())

	items, err := uc.ListUnsoldItems(context.Background())
	require.NoError(t, err)

	want := []*model.MarketItem{
		{ItemId: 1, TokenId: 10, Seller: "0xAlice", Name: "Ten", Description: "token ten", Image: "https://ipfs.io/ipfs/QmImg/10.png", TotalPrice: big.NewInt(101)},
		{ItemId: 3, TokenId: 12, Seller: "0xCarol", Name: "Twelve", Description: "token twelve", Image: "https://cdn.example/12.png", TotalPrice: big.NewInt(303)},
	}
	if diff := cmp.Diff(want, items, cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })); diff != "" {
		t.Errorf("ListUnsoldItems mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []uint64{1, 2, 3}, market.calls)
}

func TestListUnsoldItems_Empty(t *testing.T) {
	uc := NewMarketUsecase(&fakeMarket{}, &fakeNFT{}, &fakeMetadata{}, zap.NewNop())

	items, err := uc.ListUnsoldItems(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestListUnsoldItems_StopsOnFirstError(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeMarket, *fakeNFT, *fakeMetadata)
	}{
		{"item count", func(m *fakeMarket, _ *fakeNFT, _ *fakeMetadata) { m.countErr = errors.New("rpc down") }},
		{"token uri", func(_ *fakeMarket, n *fakeNFT, _ *fakeMetadata) { delete(n.uris, 10) }},
		{"metadata", func(_ *fakeMarket, _ *fakeNFT, md *fakeMetadata) { delete(md.docs, "ipfs://QmA/10.json") }},
		{"metadata without image", func(_ *fakeMarket, _ *fakeNFT, md *fakeMetadata) {
			md.docs["ipfs://QmA/10.json"] = &model.NFTMetadata{Name: "Ten"}
		}},
		{"total price", func(m *fakeMarket, _ *fakeNFT, _ *fakeMetadata) { m.totalErr = errors.New("revert") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market, nft, meta := newFixture()
			tt.setup(market, nft, meta)
			uc := NewMarketUsecase(market, nft, meta, zap.NewNop())

			items, err := uc.ListUnsoldItems(context.Background())
			assert.Error(t, err)
			assert.Nil(t, items)
			if tt.name == "metadata without image" {
				assert.ErrorIs(t, err, metadata.ErrMalformed)
			}
			// 最初の失敗以降は読みに行かない
			assert.LessOrEqual(t, len(market.calls), 1)
		})
	}
}

func TestPurchaseItem_AttachesTotalPrice(t *testing.T) {
	market, nft, meta := newFixture()
	uc := NewMarketUsecase(market, nft, meta, zap.NewNop())

	res, err := uc.PurchaseItem(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "303", res.ValueWei)
	require.Len(t, market.purchased, 1)
	assert.Equal(t, int64(303), market.purchased[0].Int64())
}

func TestPurchaseItem_RejectsSoldAndMissing(t *testing.T) {
	market, nft, meta := newFixture()
	uc := NewMarketUsecase(market, nft, meta, zap.NewNop())

	_, err := uc.PurchaseItem(context.Background(), 2)
	assert.ErrorIs(t, err, ErrItemSold)

	_, err = uc.PurchaseItem(context.Background(), 42)
	assert.ErrorIs(t, err, contract.ErrItemNotFound)
	assert.Empty(t, market.purchased)
}

func TestPurchaseItem_NoSigner(t *testing.T) {
	market, nft, meta := newFixture()
	market.purchaseErr = contract.ErrNoSigner
	uc := NewMarketUsecase(market, nft, meta, zap.NewNop())

	_, err := uc.PurchaseItem(context.Background(), 1)
	assert.ErrorIs(t, err, contract.ErrNoSigner)
}

func TestContractInfo(t *testing.T) {
	market, nft, meta := newFixture()
	uc := NewMarketUsecase(market, nft, meta, zap.NewNop())

	info, err := uc.ContractInfo(context.Background())
	require.NoError(t, err)
	want := &model.ContractInfo{MarketplaceAddress: "0xMarket", NFTAddress: "0xNFT", FeePercent: 1, CanPurchase: true}
	if diff := cmp.Diff(want, info, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("ContractInfo mismatch (-want +got):\n%s", diff)
	}
}
