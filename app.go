package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/TxnLab/reti-client/internal/lib/algo"
	"github.com/TxnLab/reti-client/internal/lib/misc"
	"github.com/TxnLab/reti-client/internal/lib/reti"
)

var logLevel = new(slog.LevelVar) // Info by default

// App is set as part of command initialization and shared by command handlers.
var App *RetiApp

type RetiApp struct {
	cliCmd *cli.Command
	logger *slog.Logger
	signer algo.MultipleWalletSigner

	algoClient *algod.Client
	retiClient *reti.Reti

	// just here for flag destinations
	retiAppID uint64
}

func initApp() *RetiApp {
	log.SetFlags(0)
	var logger *slog.Logger
	if term.IsTerminal(int(os.Stdout.Fd())) {
		// Are we running on something where output is a tty - so we're being run interactively
		logger = slog.New(misc.NewMinimalHandler(os.Stdout,
			misc.MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: logLevel}}))
	} else {
		// not on console - output as json, but change json key names to be more compatible w/ what
		// google logging expects
		opts := &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.MessageKey {
					a.Key = "message"
				} else if a.Key == slog.LevelKey && len(groups) == 0 {
					a.Key = "severity"
				}
				return a
			},
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	// Wrapper instance first so the cli 'Before' lambda can call into it once
	// flags (network etc) have been parsed.
	appConfig := &RetiApp{logger: logger}
	App = appConfig

	appConfig.cliCmd = &cli.Command{
		Name:    "reti",
		Usage:   "Client for Algorand validator staking pools - fetch registry state, stake, unstake, claim",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.initClients(ctx, cmd)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Algorand network to use",
				Value:   "mainnet",
				Aliases: []string{"n"},
				Sources: cli.EnvVars("ALGO_NETWORK"),
			},
			&cli.UintFlag{
				Name:        "retiid",
				Usage:       "[DEV ONLY] The application id of the Reti master validator contract.",
				Sources:     cli.EnvVars("RETI_APPID"),
				Destination: &appConfig.retiAppID,
				OnlyOnce:    true,
			},
		},
		Commands: []*cli.Command{
			GetValidatorCmdOpts(),
			GetStakerCmdOpts(),
		},
	}
	return appConfig
}

func (ac *RetiApp) initClients(ctx context.Context, cmd *cli.Command) error {
	network := cmd.String("network")
	switch network {
	case "betanet", "testnet", "mainnet", "sandbox":
	default:
		return fmt.Errorf("unknown network:%s", network)
	}
	misc.LoadEnvForNetwork(ac.logger, network)

	cfg := algo.GetNetworkConfig(network)
	if ac.retiAppID != 0 {
		cfg.RetiAppID = ac.retiAppID
	}

	algoClient, err := algo.GetAlgoClient(ac.logger, cfg)
	if err != nil {
		return err
	}
	ac.algoClient = algoClient
	ac.signer = algo.NewLocalKeyStore(ac.logger)

	retiClient, err := reti.New(reti.Config{RetiAppID: cfg.RetiAppID}, ac.logger, algoClient, ac.signer)
	if err != nil {
		return err
	}
	ac.retiClient = retiClient
	return nil
}
