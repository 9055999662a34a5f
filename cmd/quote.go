package cmd

import (
	"fmt"
	"time"

	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/spf13/cobra"
)

var (
	quoteTier  int
	quoteStart int64
	quoteAt    int64
)

// quoteCMD prices a listing offline from the configured parameters.
var quoteCMD = &cobra.Command{
	Use:   "quote",
	Short: "print the price curve of a listing without touching the market",
	RunE: timed(func(cmd *cobra.Command, args []string) error {
		if quoteTier < int(catalog.MinTier) || quoteTier > int(catalog.MaxTier) {
			return fmt.Errorf("tier must be between %d and %d", catalog.MinTier, catalog.MaxTier)
		}
		params := cfg.Market.Params
		if err := params.Validate(); err != nil {
			return err
		}

		at := quoteAt
		if at == 0 {
			at = time.Now().Unix()
		}
		start := quoteStart
		if start == 0 {
			start = at
		}

		tier := catalog.Tier(quoteTier)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tier:        %d\n", tier)
		fmt.Fprintf(out, "start price: %s\n", catalog.FormatCoins(catalog.StartPrice(tier, params)))
		fmt.Fprintf(out, "floor price: %s\n", catalog.FormatCoins(catalog.MinPrice(tier, params)))
		fmt.Fprintf(out, "chain price: %s\n", catalog.FormatCoins(catalog.ChainPrice(tier, params)))
		fmt.Fprintf(out, "price now:   %s\n", catalog.FormatCoins(catalog.ListingPrice(tier, start, at, params)))
		return nil
	}),
}

func init() {
	quoteCMD.Flags().IntVarP(&quoteTier, "tier", "t", int(catalog.MaxTier), "rarity tier (1-10)")
	quoteCMD.Flags().Int64Var(&quoteStart, "start", 0, "listing start time in unix seconds (default: now)")
	quoteCMD.Flags().Int64Var(&quoteAt, "at", 0, "time to price at in unix seconds (default: now)")
	rootCmd.AddCommand(quoteCMD)
}
