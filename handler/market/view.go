package handler

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

var marketPage = template.Must(template.New("market").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>NFT Marketplace</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css">
</head>
<body>
<div class="container">
{{- if .TxHash}}
  <div class="alert alert-success">Purchase submitted: {{.TxHash}}</div>
{{- end}}
{{- if .Error}}
  <div class="alert alert-danger">{{.Error}}</div>
{{- end}}
  <div class="row">
{{- range .Items}}
    <div class="col-12 col-sm-6 col-md-4 col-lg-3">
      <div class="card">
        <img src="{{.Image}}" class="card-img-top" alt="{{.Name}}" data-fallback="{{$.FallbackImage}}" onerror="this.onerror=null;this.src=this.dataset.fallback">
        <div class="card-body">
          <h5 class="card-title">{{.Name}}</h5>
          <p class="card-text">Description: {{.Description}}</p>
          <p class="card-text">Price: {{.TotalPriceETH}} ETH</p>
          <form method="post" action="/market/items/{{.ItemId}}/purchase">
            <input type="password" name="api_token" class="form-control mb-2" placeholder="API token" autocomplete="off" required>
            <button type="submit" class="btn btn-primary">Buy NFT</button>
          </form>
        </div>
      </div>
    </div>
{{- end}}
  </div>
</div>
</body>
</html>
`))

type marketPageData struct {
	Items         []MarketItemResponse
	FallbackImage string
	TxHash        string
	Error         string
}

// HandleMarketPage は未販売の出品をカード形式で表示する
func (h *MarketHandler) HandleMarketPage(w http.ResponseWriter, r *http.Request) {
	data := marketPageData{
		Items:         h.listItems(r),
		FallbackImage: h.fallbackImage,
		TxHash:        r.URL.Query().Get("tx"),
		Error:         r.URL.Query().Get("error"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := marketPage.Execute(w, data); err != nil {
		h.logger.Error("Failed to render market page", zap.Error(err))
	}
}

// HandlePurchaseForm は購入ボタンのPOSTを処理して一覧に戻す
func (h *MarketHandler) HandlePurchaseForm(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	itemId, err := parseItemID(r)
	if err != nil {
		q.Set("error", "invalid item id")
	} else if result, err := h.purchase(r, itemId); err != nil {
		q.Set("error", "purchase of item "+strconv.FormatUint(itemId, 10)+" failed")
	} else {
		q.Set("tx", result.TxHash)
	}

	http.Redirect(w, r, "/market?"+q.Encode(), http.StatusSeeOther)
}
