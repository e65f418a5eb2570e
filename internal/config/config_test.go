package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/yield_staking/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	require.Len(t, cfg.Products, 2)
	base := cfg.Products[0]
	assert.Equal(t, "base", base.Product)
	assert.Equal(t, 7*domain.Day, base.CooldownPeriod)

	params := base.Parameters()
	assert.Equal(t, domain.DefaultPools(), params.Pools)
	assert.Equal(t, uint64(500), params.EarlyWithdrawalPenaltyBps)

	lp := cfg.Products[1].Parameters()
	assert.Equal(t, uint64(100), lp.UtilizationMultiplier, "utilization defaults to neutral")
	assert.Equal(t, [domain.NumTiers]domain.PoolConfig{}, lp.Pools)

	assert.Equal(t, uint64(1_000_000), cfg.Seed()["alice"])
	assert.Equal(t, domain.Identity("dao"), cfg.TokenIdentities()["dev-dao-token"])
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "products: []\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "staking.db", cfg.Storage.Path)
}

func TestLoad_ExplicitZeroUtilization(t *testing.T) {
	cfg, err := Load(writeConfig(t, "products:\n  - {product: base, owner: o, governance: g, utilization_multiplier: 0}\n  - {product: lp, owner: o, governance: g}\n"))
	require.NoError(t, err)

	assert.Zero(t, cfg.Products[0].Parameters().UtilizationMultiplier)
	assert.Equal(t, uint64(100), cfg.Products[1].Parameters().UtilizationMultiplier)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown product",
			body: "products:\n  - {product: gold, owner: o, governance: g}\n",
			want: "invalid product",
		},
		{
			name: "duplicate product",
			body: "products:\n  - {product: base, owner: o, governance: g}\n  - {product: base, owner: o, governance: g}\n",
			want: "duplicate product",
		},
		{
			name: "missing roles",
			body: "products:\n  - {product: lp}\n",
			want: "owner and governance are required",
		},
		{
			name: "partial pool table",
			body: "products:\n  - product: base\n    owner: o\n    governance: g\n    pools:\n      - {lockup_period: 1h}\n",
			want: "want 3 pools",
		},
		{
			name: "bad driver",
			body: "storage: {driver: redis}\n",
			want: "unknown driver",
		},
		{
			name: "unknown field",
			body: "servr: {port: 1}\n",
			want: "field servr not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
