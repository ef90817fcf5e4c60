package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  *big.Int
		want string
	}{
		{nil, "0"},
		{big.NewInt(0), "0"},
		{big.NewInt(1_000_000_000_000_000_000), "1"},
		{big.NewInt(1_010_000_000_000_000_000), "1.01"},
		{big.NewInt(1_000_000_000_000_000), "0.001"},
		{big.NewInt(1), "0.000000000000000001"},
		{new(big.Int).Mul(big.NewInt(250), big.NewInt(1e18)), "250"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatEther(tt.wei))
	}
}

func TestMarketItem_JSONUsesStringIDs(t *testing.T) {
	data, err := json.Marshal(&MarketItem{ItemId: 3, TokenId: 12, TotalPrice: big.NewInt(5)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"item_id":"3"`)
	assert.Contains(t, string(data), `"token_id":"12"`)
	assert.NotContains(t, string(data), "TotalPrice")
}
