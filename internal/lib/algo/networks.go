package algo

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/TxnLab/reti-client/internal/lib/misc"
)

type NetworkConfig struct {
	NodeURL     string
	NodeToken   string
	NodeHeaders map[string]string

	RetiAppID uint64
}

func (n NetworkConfig) String() string {
	return fmt.Sprintf("NodeURL: %s, NodeToken: (length:%d), NodeHeaders: %v, RetiAppID: %d", n.NodeURL, len(n.NodeToken), n.NodeHeaders, n.RetiAppID)
}

// GetNetworkConfig resolves the configuration for a named network, with
// environment/secret overrides layered on top of the per-network defaults.
// The result is an explicit value handed to constructors - nothing reads
// these settings ambiently after startup.
func GetNetworkConfig(network string) NetworkConfig {
	cfg := getDefaults(network)

	if appIDEnv := os.Getenv("RETI_APPID"); appIDEnv != "" {
		cfg.RetiAppID, _ = strconv.ParseUint(appIDEnv, 10, 64)
	}

	if nodeURL := misc.GetSecret("ALGO_ALGOD_URL"); nodeURL != "" {
		cfg.NodeURL = nodeURL
	}

	if nodeToken := misc.GetSecret("ALGO_ALGOD_TOKEN"); nodeToken != "" {
		cfg.NodeToken = nodeToken
	}
	nodeHeaders := misc.GetSecret("ALGO_ALGOD_HEADERS")
	// parse nodeHeaders from key:value,[key:value...] pairs and put into cfg.NodeHeaders map
	cfg.NodeHeaders = map[string]string{}
	for _, header := range strings.Split(nodeHeaders, ",") {
		parts := strings.SplitN(header, ":", 2) // Just split on first : - they can have :'s in value.
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			cfg.NodeHeaders[key] = value
		}
	}

	return cfg
}

func getDefaults(network string) NetworkConfig {
	cfg := NetworkConfig{}
	switch network {
	case "mainnet":
		cfg.RetiAppID = 0 // TODO: set once the mainnet registry deploy lands
		cfg.NodeURL = "https://mainnet-api.algonode.cloud"
	case "testnet":
		cfg.RetiAppID = 673404372
		cfg.NodeURL = "https://testnet-api.algonode.cloud"
	case "betanet":
		cfg.RetiAppID = 2019373722
		cfg.NodeURL = "https://betanet-api.algonode.cloud"
	case "sandbox":
		cfg.RetiAppID = 0 // should come from .env.sandbox !!
		cfg.NodeURL = "http://localhost:4001"
		cfg.NodeToken = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	}
	return cfg
}
