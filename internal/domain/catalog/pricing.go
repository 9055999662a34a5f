package catalog

import (
	"fmt"
	"strings"
)

// Params is the mutable market configuration. Amounts are in base units,
// durations in seconds and ChainPurchaseDiscount in percent.
type Params struct {
	PriceCoefficient      int64  `json:"price_coefficient" toml:"price_coefficient"`
	PriceConstant         int64  `json:"price_constant" toml:"price_constant"`
	ListingDuration       int64  `json:"listing_duration" toml:"listing_duration"`
	ChainPurchaseWindow   int64  `json:"chain_purchase_window" toml:"chain_purchase_window"`
	ChainPurchaseDiscount int64  `json:"chain_purchase_discount" toml:"chain_purchase_discount"`
	BaseMetadataLocator   string `json:"base_metadata_locator" toml:"base_metadata_locator"`
}

func DefaultParams() Params {
	return Params{
		PriceCoefficient:      DefaultPriceCoefficient,
		PriceConstant:         DefaultPriceConstant,
		ListingDuration:       DefaultListingDuration,
		ChainPurchaseWindow:   DefaultChainWindow,
		ChainPurchaseDiscount: DefaultChainDiscount,
	}
}

func (p Params) Validate() error {
	if p.PriceCoefficient < 0 || p.PriceCoefficient > MaxPriceComponent ||
		p.PriceConstant < 0 || p.PriceConstant > MaxPriceComponent {
		return fmt.Errorf("%w: coefficient %d constant %d", ErrInvalidPricing, p.PriceCoefficient, p.PriceConstant)
	}
	if p.ListingDuration <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, p.ListingDuration)
	}
	if p.ChainPurchaseWindow < 0 || p.ChainPurchaseWindow > MaxChainWindow {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, p.ChainPurchaseWindow)
	}
	if p.ChainPurchaseDiscount < 0 || p.ChainPurchaseDiscount > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidDiscount, p.ChainPurchaseDiscount)
	}
	return nil
}

// StartPrice maps tier 1 to PriceConstant and tier 10 to
// PriceConstant+PriceCoefficient, linearly in between.
func StartPrice(tier Tier, p Params) int64 {
	return (int64(tier)-1)*p.PriceCoefficient/9 + p.PriceConstant
}

// MinPrice is the floor a public listing decays to.
func MinPrice(tier Tier, p Params) int64 {
	return StartPrice(tier, p) / 10
}

// ListingPrice is the public Dutch auction price of a slot listed at
// startTime, observed at now. The price falls linearly from StartPrice to
// MinPrice over ListingDuration and stays at MinPrice afterwards. Before
// startTime the listing is priced as if it had just opened.
func ListingPrice(tier Tier, startTime, now int64, p Params) int64 {
	start := StartPrice(tier, p)
	floor := start / 10

	elapsed := now - startTime
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= p.ListingDuration {
		return floor
	}

	rate := (start - floor) / p.ListingDuration
	discount := rate * elapsed
	if start-floor > discount {
		return start - discount
	}
	return floor
}

// ChainPrice is the flat discounted price the reserved buyer pays during the
// chain purchase window.
func ChainPrice(tier Tier, p Params) int64 {
	start := StartPrice(tier, p)
	return start - start*p.ChainPurchaseDiscount/100
}

// FormatCoins renders base units as a decimal coin amount.
func FormatCoins(units int64) string {
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	whole, frac := units/UnitsPerCoin, units%UnitsPerCoin
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	return strings.TrimRight(fmt.Sprintf("%s%d.%09d", sign, whole, frac), "0")
}
