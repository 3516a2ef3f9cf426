package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetNetworkConfigDefaults(t *testing.T) {
	cfg := GetNetworkConfig("testnet")
	assert.EqualValues(t, 673404372, cfg.RetiAppID)
	assert.Equal(t, "https://testnet-api.algonode.cloud", cfg.NodeURL)
	assert.Empty(t, cfg.NodeToken)
}

func TestGetNetworkConfigOverrides(t *testing.T) {
	t.Setenv("RETI_APPID", "424242")
	t.Setenv("ALGO_ALGOD_URL", "http://localhost:8080")
	t.Setenv("ALGO_ALGOD_TOKEN", "secrettoken")
	t.Setenv("ALGO_ALGOD_HEADERS", "X-API-Key:abc123,Host:node.internal:8443")

	cfg := GetNetworkConfig("testnet")
	assert.EqualValues(t, 424242, cfg.RetiAppID)
	assert.Equal(t, "http://localhost:8080", cfg.NodeURL)
	assert.Equal(t, "secrettoken", cfg.NodeToken)
	// header values may themselves contain colons - only the first splits
	assert.Equal(t, map[string]string{
		"X-API-Key": "abc123",
		"Host":      "node.internal:8443",
	}, cfg.NodeHeaders)
}
