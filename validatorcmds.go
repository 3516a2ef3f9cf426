package main

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/reti-client/internal/lib/algo"
	"github.com/TxnLab/reti-client/internal/lib/reti"
)

func GetValidatorCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "validator",
		Aliases: []string{"v"},
		Usage:   "Fetch or change validator data in the registry",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all validators in the registry with their current state",
				Action: ValidatorList,
			},
			{
				Name:  "info",
				Usage: "Display full info (config, state, pools, node assignments) for one validator",
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:     "id",
						Usage:    "Validator ID to fetch",
						Required: true,
					},
				},
				Action: ValidatorInfo,
			},
			{
				Name:  "constraints",
				Usage: "Display the protocol-wide constraints from the registry",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					constraints, err := App.retiClient.GetProtocolConstraints(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%+v\n", *constraints)
					return nil
				},
			},
			{
				Name:  "add-pool",
				Usage: "Add a new staking pool to a validator (requires manager keys)",
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:     "id",
						Usage:    "Validator ID to add a pool to",
						Required: true,
					},
				},
				Action: ValidatorAddPool,
			},
			{
				Name:  "epoch-update",
				Usage: "Trigger the epoch payout accounting for one pool (requires manager keys)",
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:     "id",
						Usage:    "Validator ID the pool belongs to",
						Required: true,
					},
					&cli.UintFlag{
						Name:     "pool",
						Usage:    "Pool number (1+) within the validator",
						Value:    1,
						Required: false,
					},
				},
				Action: ValidatorEpochUpdate,
			},
		},
	}
}

func ValidatorList(ctx context.Context, cmd *cli.Command) error {
	validators, err := App.retiClient.GetAllValidators(ctx)
	if err != nil {
		return err
	}
	for _, v := range validators {
		fmt.Printf("Validator %d, owner:%s, pools:%d, stakers:%d, staked:%s\n",
			v.Config.ID, v.Config.Owner, v.State.NumPools, v.State.TotalStakers,
			algo.FormattedAlgoAmount(v.State.TotalAlgoStaked))
	}
	return nil
}

func ValidatorInfo(ctx context.Context, cmd *cli.Command) error {
	v, err := App.retiClient.GetValidator(ctx, cmd.Uint("id"))
	if err != nil {
		return err
	}
	fmt.Println(v.Config.String())
	fmt.Println(v.State.String())
	for i, pool := range v.Pools {
		fmt.Printf("Pool %d, app id:%d, stakers:%d, staked:%s\n", i+1, pool.PoolAppID,
			pool.TotalStakers, algo.FormattedAlgoAmount(pool.TotalAlgoStaked))
	}
	for i, node := range v.NodePoolAssignments.Nodes {
		if len(node.PoolAppIDs) == 0 {
			continue
		}
		fmt.Printf("Node %d, pool app ids:%v\n", i+1, node.PoolAppIDs)
	}
	return nil
}

func ValidatorAddPool(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Uint("id")
	if result, _ := yesNo(fmt.Sprintf("Add a new staking pool to validator %d", id)); result != "y" {
		return nil
	}
	poolKey, err := App.retiClient.AddStakingPool(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Created pool:%s\n", poolKey.String())
	return nil
}

func ValidatorEpochUpdate(ctx context.Context, cmd *cli.Command) error {
	var (
		id      = cmd.Uint("id")
		poolNum = cmd.Uint("pool")
	)
	pools, err := App.retiClient.GetValidatorPools(ctx, id)
	if err != nil {
		return err
	}
	if poolNum == 0 || poolNum > uint64(len(pools)) {
		return fmt.Errorf("pool number:%d is invalid for validator with %d pools", poolNum, len(pools))
	}
	return App.retiClient.EpochBalanceUpdate(ctx, reti.ValidatorPoolKey{
		ID:        id,
		PoolID:    poolNum,
		PoolAppID: pools[poolNum-1].PoolAppID,
	})
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
