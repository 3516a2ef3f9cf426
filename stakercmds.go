package main

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/reti-client/internal/lib/algo"
	"github.com/TxnLab/reti-client/internal/lib/reti"
)

func GetStakerCmdOpts() *cli.Command {
	accountFlag := &cli.StringFlag{
		Name:     "account",
		Usage:    "The staking account",
		Required: true,
	}
	return &cli.Command{
		Name:    "staker",
		Aliases: []string{"s"},
		Usage:   "Fetch or change stake for a staking account",
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show the account's stake aggregated per validator, with the per-pool breakdown",
				Flags:  []cli.Flag{accountFlag},
				Action: StakerInfo,
			},
			{
				Name:  "add",
				Usage: "Add stake to a validator (pool is chosen by the registry)",
				Flags: []cli.Flag{
					accountFlag,
					&cli.UintFlag{
						Name:     "validator",
						Usage:    "Validator ID to stake with",
						Required: true,
					},
					&cli.FloatFlag{
						Name:     "amount",
						Usage:    "Amount to stake, in ALGO",
						Required: true,
					},
				},
				Action: StakerAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove stake from a specific pool",
				Flags: []cli.Flag{
					accountFlag,
					&cli.UintFlag{
						Name:     "validator",
						Usage:    "Validator ID to unstake from",
						Required: true,
					},
					&cli.UintFlag{
						Name:  "pool",
						Usage: "Pool number (1+) within the validator",
						Value: 1,
					},
					&cli.FloatFlag{
						Name:  "amount",
						Usage: "Amount to unstake, in ALGO (omit to unstake everything)",
					},
				},
				Action: StakerRemove,
			},
			{
				Name:   "claim",
				Usage:  "Claim pending reward tokens from every pool the account is staked in, atomically",
				Flags:  []cli.Flag{accountFlag},
				Action: StakerClaim,
			},
		},
	}
}

func StakerInfo(ctx context.Context, cmd *cli.Command) error {
	staker, err := types.DecodeAddress(cmd.String("account"))
	if err != nil {
		return err
	}
	stakes, err := App.retiClient.GetStakedInfoForAccount(ctx, staker)
	if err != nil {
		return err
	}
	if len(stakes) == 0 {
		fmt.Println("account has no stake")
		return nil
	}
	for _, stake := range stakes {
		fmt.Printf("Validator %d, staked:%s, rewarded:%s, tokens:%d, entry time:%d\n",
			stake.ValidatorID, algo.FormattedAlgoAmount(stake.Balance),
			algo.FormattedAlgoAmount(stake.TotalRewarded), stake.RewardTokenBalance, stake.EntryTime)
		for _, pool := range stake.Pools {
			fmt.Printf("  Pool %d (app id:%d), staked:%s\n", pool.PoolKey.PoolID, pool.PoolKey.PoolAppID,
				algo.FormattedAlgoAmount(pool.Balance))
		}
	}
	return nil
}

func StakerAdd(ctx context.Context, cmd *cli.Command) error {
	staker, err := types.DecodeAddress(cmd.String("account"))
	if err != nil {
		return err
	}
	var (
		validatorID = cmd.Uint("validator")
		amount      = uint64(cmd.Float("amount") * 1e6)
	)
	if result, _ := yesNo(fmt.Sprintf("Stake %s ALGO with validator %d", algo.FormattedAlgoAmount(amount), validatorID)); result != "y" {
		return nil
	}
	poolKey, err := App.retiClient.AddStake(ctx, validatorID, staker, amount)
	if err != nil {
		return err
	}
	fmt.Printf("Staked into pool:%s\n", poolKey.String())
	return nil
}

func StakerRemove(ctx context.Context, cmd *cli.Command) error {
	staker, err := types.DecodeAddress(cmd.String("account"))
	if err != nil {
		return err
	}
	var (
		validatorID = cmd.Uint("validator")
		poolNum     = cmd.Uint("pool")
		amount      = uint64(cmd.Float("amount") * 1e6)
	)
	pools, err := App.retiClient.GetValidatorPools(ctx, validatorID)
	if err != nil {
		return err
	}
	if poolNum == 0 || poolNum > uint64(len(pools)) {
		return fmt.Errorf("pool number:%d is invalid for validator with %d pools", poolNum, len(pools))
	}
	if result, _ := yesNo(fmt.Sprintf("Remove stake from validator %d pool %d", validatorID, poolNum)); result != "y" {
		return nil
	}
	return App.retiClient.RemoveStake(ctx, reti.ValidatorPoolKey{
		ID:        validatorID,
		PoolID:    poolNum,
		PoolAppID: pools[poolNum-1].PoolAppID,
	}, staker, amount)
}

func StakerClaim(ctx context.Context, cmd *cli.Command) error {
	staker, err := types.DecodeAddress(cmd.String("account"))
	if err != nil {
		return err
	}
	if result, _ := yesNo(fmt.Sprintf("Claim reward tokens for %s from all staked pools", staker.String())); result != "y" {
		return nil
	}
	return App.retiClient.ClaimTokens(ctx, staker)
}
