package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func buyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <itemId>",
		Short: "Purchase an item, paying its total price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemId, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || itemId == 0 {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			callTimeout, _ := cfg.GetCallTimeout()
			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.market.CanPurchase() {
				return fmt.Errorf("BUYER_PRIVATE_KEY is not set")
			}

			res, err := a.marketUC.PurchaseItem(ctx, itemId)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s ETH for item %d from %s\ntx: %s\n", res.ValueETH, res.ItemId, res.Buyer, res.TxHash)
			return nil
		},
	}
}
