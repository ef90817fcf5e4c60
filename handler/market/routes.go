package handler

import "github.com/gorilla/mux"

// RegisterRoutes はマーケット関連のルートを登録する
// purchaseGuards は購入ルートにだけ適用される
func (h *MarketHandler) RegisterRoutes(router *mux.Router, purchaseGuards ...mux.MiddlewareFunc) {
	// 画面
	router.HandleFunc("/market", h.HandleMarketPage).Methods("GET")

	// API
	router.HandleFunc("/api/v1/market/info", h.HandleContractInfo).Methods("GET")
	router.HandleFunc("/api/v1/market/items", h.HandleListItems).Methods("GET")

	// 購入 (署名付きトランザクションを送るので保護する)
	purchase := router.NewRoute().Subrouter()
	purchase.Use(purchaseGuards...)
	purchase.HandleFunc("/market/items/{itemId}/purchase", h.HandlePurchaseForm).Methods("POST")
	purchase.HandleFunc("/api/v1/market/items/{itemId}/purchase", h.HandlePurchase).Methods("POST")
}
