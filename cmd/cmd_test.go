package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/deckforge/chainsale/chainsale"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestQuoteCommand(t *testing.T) {
	path := writeConfig(t, "[log]\nlevel = \"error\"\n")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"quote", "--config", path, "--tier", "10", "--start", "1000", "--at", "1000"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "start price: 1.5\n")
	assert.Contains(t, out.String(), "floor price: 0.15\n")
	assert.Contains(t, out.String(), "chain price: 1.35\n")
	assert.Contains(t, out.String(), "price now:   1.5\n")
}

func TestQuoteRejectsTier(t *testing.T) {
	path := writeConfig(t, "")

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"quote", "--config", path, "--tier", "11"})
	assert.Error(t, rootCmd.Execute())
	quoteTier = int(catalog.MaxTier)
}

type capturingRecorder struct {
	changes []catalog.Change
}

func (r *capturingRecorder) Commit(ctx context.Context, change catalog.Change, settle func(context.Context) error) error {
	r.changes = append(r.changes, change)
	return nil
}

func TestSeedPersistsMissingState(t *testing.T) {
	rarity := filepath.Join(t.TempDir(), "rarity.toml")
	require.NoError(t, os.WriteFile(rarity, []byte("values = [3, 4]\n"), 0o600))

	c := chainsale.DefaultConfig()
	c.Market.RarityFile = rarity

	rec := &capturingRecorder{}
	var snapshot catalog.Snapshot
	require.NoError(t, seed(context.Background(), &c, rec, &snapshot))

	require.Len(t, rec.changes, 1)
	assert.Equal(t, []catalog.Tier{3, 4}, rec.changes[0].Rarity)
	require.NotNil(t, rec.changes[0].Params)
	assert.Equal(t, c.Market.Params, *snapshot.Params)

	rec = &capturingRecorder{}
	require.NoError(t, seed(context.Background(), &c, rec, &snapshot))
	assert.Empty(t, rec.changes, "nothing to seed once the store has state")
}

func TestSeedRejectsInvalidParams(t *testing.T) {
	c := chainsale.DefaultConfig()
	c.Market.ChainPurchaseDiscount = 150

	var snapshot catalog.Snapshot
	assert.Error(t, seed(context.Background(), &c, catalog.NopRecorder{}, &snapshot))
}

func TestNewServiceInMemory(t *testing.T) {
	c := chainsale.DefaultConfig()
	c.Access.Admins = []string{"admin"}
	cfg = &c

	svc, err := newService(context.Background(), &c)
	require.NoError(t, err)
	defer svc.Close()
	defer svc.server.Close()

	assert.Nil(t, svc.db)
	assert.Nil(t, svc.publisher)
	assert.NotNil(t, svc.snapshotter)
}
