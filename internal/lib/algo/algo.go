package algo

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/ssgreg/repeat"

	"github.com/TxnLab/reti-client/internal/lib/misc"
)

// DefaultValidRoundRange - max valid round range to have transactions be valid for (and to check for confirmation)
const DefaultValidRoundRange = 100

func FormattedAlgoAmount(microAlgos uint64) string {
	formattedAmount := fmt.Sprintf("%.6f", float64(microAlgos)/1000000)
	// chop trailing 0's and decimal (if nothing else)
	formattedAmount = strings.TrimRight(formattedAmount, "0")
	formattedAmount = strings.TrimRight(formattedAmount, ".")
	return formattedAmount
}

func GetAlgoClient(log *slog.Logger, config NetworkConfig) (*algod.Client, error) {
	var apiHeaders []*common.Header

	apiURL := strings.TrimRight(config.NodeURL, "/")
	for key, value := range config.NodeHeaders {
		apiHeaders = append(apiHeaders, &common.Header{
			Key:   key,
			Value: value,
		})
	}
	serverAddr, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url:%v, error:%w", apiURL, err)
	}
	if serverAddr.Scheme == "tcp" {
		serverAddr.Scheme = "http"
	}
	misc.Infof(log, "Connecting to Algorand node at:%s", serverAddr.String())

	// Override the default transport so we can properly support multiple parallel connections to same
	// host (and allow connection reuse)
	customTransport := http.DefaultTransport.(*http.Transport).Clone()
	customTransport.MaxIdleConns = 100
	customTransport.MaxConnsPerHost = 100
	customTransport.MaxIdleConnsPerHost = 100
	client, err := algod.MakeClientWithTransport(serverAddr.String(), config.NodeToken, apiHeaders, customTransport)
	if err != nil {
		return nil, fmt.Errorf(`failed to make algod client (url:%s), error:%w`, serverAddr.String(), err)
	}
	// Immediately hit server to verify connectivity
	_, err = client.SuggestedParams().Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get suggested params from algod client, error:%w", err)
	}
	return client, nil
}

func SuggestedParams(ctx context.Context, logger *slog.Logger, client *algod.Client) types.SuggestedParams {
	var (
		txParams types.SuggestedParams
		err      error
	)
	// don't accept no for an answer from this api ! just keep trying
	err = repeat.Repeat(
		repeat.Fn(func() error {
			txParams, err = client.SuggestedParams().Do(ctx)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.FnOnError(func(err error) error {
			misc.Infof(logger, "retrying suggestedparams call, error:%s", err.Error())
			return err
		}),
		repeat.WithDelay(repeat.ExponentialBackoff(1*time.Second).Set()),
	)

	// move FirstRoundValid back 1 just to cover for different nodes maybe being 'slightly' behind - so we
	// don't create a transaction starting at round 100 but the node we submit to is only at round 99
	txParams.FirstRoundValid--
	txParams.LastRoundValid = txParams.FirstRoundValid + DefaultValidRoundRange
	// Just set fixed fee for now - callers bump this as needed per-group.
	txParams.FlatFee = true
	txParams.Fee = types.MicroAlgos(txParams.MinFee)
	return txParams
}

func GetUint64FromGlobalState(globalState []models.TealKeyValue, keyName string) (uint64, error) {
	for _, gs := range globalState {
		rawKey, _ := base64.StdEncoding.DecodeString(gs.Key)
		if string(rawKey) == keyName && gs.Value.Type == 2 {
			return gs.Value.Uint, nil
		}
	}
	return 0, ErrStateKeyNotFound
}

func GetStringFromGlobalState(globalState []models.TealKeyValue, keyName string) (string, error) {
	for _, gs := range globalState {
		rawKey, _ := base64.StdEncoding.DecodeString(gs.Key)
		if string(rawKey) == keyName && gs.Value.Type == 1 {
			value, _ := base64.StdEncoding.DecodeString(gs.Value.Bytes)
			return string(value), nil
		}
	}
	return "", ErrStateKeyNotFound
}

type AccountWithMinBalance struct {
	models.Account
	MinBalance uint64 `json:"min-balance,omitempty"`
}

// GetBareAccount just returns account information without asset data, but also includes the minimum balance that's
// missing from the SDKs.
func GetBareAccount(ctx context.Context, algoClient *algod.Client, account string) (AccountWithMinBalance, error) {
	var response AccountWithMinBalance
	var params = algod.AccountInformationParams{
		Exclude: "all",
	}

	err := (*common.Client)(algoClient).Get(ctx, &response, fmt.Sprintf("/v2/accounts/%s", account), params, nil)
	if err != nil {
		return AccountWithMinBalance{}, err
	}
	return response, nil
}
