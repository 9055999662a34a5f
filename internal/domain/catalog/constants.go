package catalog

const (
	MaxDecks       = 50
	MaxGenerations = 60
	// RaritySize is the exact number of tiers a complete rarity table holds.
	RaritySize = MaxDecks * MaxGenerations

	MinTier Tier = 1
	MaxTier Tier = 10

	// UnitsPerCoin is the fixed-point scale of every amount handled by the market.
	UnitsPerCoin int64 = 1_000_000_000
	// MaxPriceComponent bounds the price coefficient and constant so that
	// intermediate products stay inside int64.
	MaxPriceComponent = 1_000_000 * UnitsPerCoin

	// MaxChainWindow caps the chain purchase window at ten years.
	MaxChainWindow int64 = 10 * 365 * 86400

	// NoNextListing is returned as the next start time when a deck is exhausted.
	NoNextListing int64 = 0
)

// Default market parameters.
const (
	DefaultPriceCoefficient      = UnitsPerCoin
	DefaultPriceConstant         = UnitsPerCoin / 2
	DefaultListingDuration int64 = 86400
	DefaultChainWindow     int64 = 3600
	DefaultChainDiscount   int64 = 10

	metadataCacheSize = 512
)
