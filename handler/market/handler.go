package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"nft-market-onchain/gateway/contract"
	"nft-market-onchain/metrics"
	"nft-market-onchain/model"
	"nft-market-onchain/usecase/market"
)

type MarketHandler struct {
	marketUC      usecase.MarketUsecase
	metrics       *metrics.ServerMetrics
	logger        *zap.Logger
	fallbackImage string
}

func NewMarketHandler(uc usecase.MarketUsecase, m *metrics.ServerMetrics, logger *zap.Logger, fallbackImage string) *MarketHandler {
	return &MarketHandler{
		marketUC:      uc,
		metrics:       m,
		logger:        logger,
		fallbackImage: fallbackImage,
	}
}

// MarketItemResponse は一覧APIの1件分
type MarketItemResponse struct {
	*model.MarketItem
	TotalPriceWei string `json:"total_price_wei"`
	TotalPriceETH string `json:"total_price_eth"`
}

// ListItemsResponse は一覧APIのレスポンス
type ListItemsResponse struct {
	Items []MarketItemResponse `json:"items"`
}

// listItems は一覧を取得し、失敗時はログだけ残して空の一覧を返す
func (h *MarketHandler) listItems(r *http.Request) []MarketItemResponse {
	items, err := h.marketUC.ListUnsoldItems(r.Context())
	h.metrics.ListingRefresh.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		h.logger.Error("Error fetching NFT data", zap.Error(err))
		return []MarketItemResponse{}
	}

	resp := make([]MarketItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, MarketItemResponse{
			MarketItem:    item,
			TotalPriceWei: item.TotalPrice.String(),
			TotalPriceETH: model.FormatEther(item.TotalPrice),
		})
	}
	return resp
}

// HandleListItems は未販売の出品一覧を返す
func (h *MarketHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListItemsResponse{Items: h.listItems(r)})
}

// HandlePurchase は出品を購入する
func (h *MarketHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	itemId, err := parseItemID(r)
	if err != nil {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	result, err := h.purchase(r, itemId)
	if err != nil {
		http.Error(w, err.Error(), purchaseStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleContractInfo はコントラクト情報を返す
func (h *MarketHandler) HandleContractInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.marketUC.ContractInfo(r.Context())
	if err != nil {
		h.logger.Error("Failed to read contract info", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (h *MarketHandler) purchase(r *http.Request, itemId uint64) (*model.PurchaseResult, error) {
	result, err := h.marketUC.PurchaseItem(r.Context(), itemId)
	h.metrics.Purchases.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		h.logger.Error("Purchase failed", zap.Uint64("item_id", itemId), zap.Error(err))
		return nil, err
	}
	return result, nil
}

func parseItemID(r *http.Request) (uint64, error) {
	itemId, err := strconv.ParseUint(mux.Vars(r)["itemId"], 10, 64)
	if err != nil {
		return 0, err
	}
	if itemId == 0 {
		return 0, errors.New("item id starts at 1")
	}
	return itemId, nil
}

func purchaseStatus(err error) int {
	switch {
	case errors.Is(err, contract.ErrNoSigner):
		return http.StatusServiceUnavailable
	case errors.Is(err, contract.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrItemSold):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
