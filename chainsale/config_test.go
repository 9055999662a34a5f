package chainsale

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeFile(t, "config.toml", `
[log]
level = "debug"

[market]
chain_purchase_discount = 25
base_metadata_locator = "https://cards.example/"

[access]
admins = ["owner"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, int64(25), cfg.Market.ChainPurchaseDiscount)
	assert.Equal(t, "https://cards.example/", cfg.Market.BaseMetadataLocator)
	assert.Equal(t, catalog.DefaultParams().ListingDuration, cfg.Market.ListingDuration)
	assert.Equal(t, ":8080", cfg.API.Address)
	assert.Equal(t, []string{"owner"}, cfg.Access.Admins)
	assert.False(t, cfg.DB.Enabled())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.toml", "[market\n"))
	assert.Error(t, err)
}

func TestLoadRarity(t *testing.T) {
	tiers, err := LoadRarity(writeFile(t, "rarity.toml", "values = [1, 5, 10]\n"))
	require.NoError(t, err)
	assert.Equal(t, []catalog.Tier{1, 5, 10}, tiers)

	_, err = LoadRarity(writeFile(t, "rarity.toml", "values = [0]\n"))
	assert.Error(t, err)

	_, err = LoadRarity(writeFile(t, "rarity.toml", "values = [11]\n"))
	assert.Error(t, err)
}
