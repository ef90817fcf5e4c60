package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nft-market-onchain/model"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(48)
	titleStyle = lipgloss.NewStyle().Bold(true)
	priceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List unsold marketplace items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			callTimeout, _ := cfg.GetCallTimeout()
			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.marketUC.ListUnsoldItems(ctx)
			if err != nil {
				// 一覧の失敗はログのみ、表示は空
				logger.Error("Error fetching NFT data", zap.Error(err))
				items = nil
			}
			renderItems(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

// renderItems は出品をカード形式で書き出す
func renderItems(w io.Writer, items []*model.MarketItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No listed assets"))
		return
	}
	for _, item := range items {
		body := strings.Join([]string{
			titleStyle.Render(item.Name) + dimStyle.Render(fmt.Sprintf("  #%d (token %d)", item.ItemId, item.TokenId)),
			"Description: " + item.Description,
			priceStyle.Render("Price: " + model.FormatEther(item.TotalPrice) + " ETH"),
			dimStyle.Render("Seller: " + item.Seller),
			dimStyle.Render(item.Image),
		}, "\n")
		fmt.Fprintln(w, cardStyle.Render(body))
	}
}
