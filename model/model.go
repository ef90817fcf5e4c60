package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// weiDecimals は 1 ETH = 10^18 Wei の桁数
const weiDecimals = 18

// ===============================================
// マーケットプレイス関連のモデル
// ===============================================

// ContractItem はコントラクトの items(i) が返す出品情報
type ContractItem struct {
	ItemId  uint64   `json:"item_id"`
	Nft     string   `json:"nft"`
	TokenId uint64   `json:"token_id"`
	Price   *big.Int `json:"price"`
	Seller  string   `json:"seller"`
	Sold    bool     `json:"sold"`
}

// NFTMetadata は tokenURI の先にある JSON メタデータ
type NFTMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// MarketItem は一覧表示用に組み立てた未販売の出品
// リフレッシュごとに作り直され、永続化はしない
type MarketItem struct {
	ItemId      uint64   `json:"item_id,string"`
	TokenId     uint64   `json:"token_id,string"`
	Seller      string   `json:"seller"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	TotalPrice  *big.Int `json:"-"` // 価格 + 手数料 (Wei)
}

// PurchaseResult は購入トランザクション送信の結果
// 送信のみでレシートは待たない
type PurchaseResult struct {
	ItemId   uint64 `json:"item_id,string"`
	TxHash   string `json:"tx_hash"`
	ValueWei string `json:"value_wei"`
	ValueETH string `json:"value_eth"`
	Buyer    string `json:"buyer"`
}

// ContractInfo はマーケットプレイスの設定情報
type ContractInfo struct {
	MarketplaceAddress string `json:"marketplace_address"`
	NFTAddress         string `json:"nft_address"`
	FeePercent         uint64 `json:"fee_percent"`
	CanPurchase        bool   `json:"can_purchase"`
}

// FormatEther は Wei を ETH 表記の文字列に変換する (末尾の 0 は省く)
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -weiDecimals).String()
}
