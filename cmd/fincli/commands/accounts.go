package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/fincli/internal/apiclient"
)

func accountsCommand() *cli.Command {
	return &cli.Command{
		Name:  "accounts",
		Usage: "manage money accounts",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list accounts",
				Action: accountsListAction,
			},
			{
				Name:  "create",
				Usage: "create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "account name", Required: true},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "account type (checking|savings|credit|investment|cash)", Required: true},
					&cli.FloatFlag{Name: "balance", Aliases: []string{"b"}, Usage: "opening balance"},
				},
				Action: accountsCreateAction,
			},
			{
				Name:      "show",
				Usage:     "show one account",
				ArgsUsage: "<account-id>",
				Action:    accountsShowAction,
			},
			{
				Name:      "update",
				Usage:     "update an account (only the given flags change)",
				ArgsUsage: "<account-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "new account name"},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "new account type"},
					&cli.FloatFlag{Name: "balance", Aliases: []string{"b"}, Usage: "corrected balance"},
				},
				Action: accountsUpdateAction,
			},
			{
				Name:      "delete",
				Usage:     "delete an account",
				ArgsUsage: "<account-id>",
				Action:    accountsDeleteAction,
			},
		},
	}
}

func accountsListAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	accounts, err := application.API.ListAccounts(ctx)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts found")
		return nil
	}

	for _, a := range accounts {
		fmt.Printf("%6d  %-24s %-12s %12.2f\n", a.ID, a.Name, a.AccountType, a.Balance)
	}
	return nil
}

func accountsCreateAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	account, err := application.API.CreateAccount(ctx, apiclient.NewAccount{
		Name:        cmd.String("name"),
		AccountType: cmd.String("type"),
		Balance:     cmd.Float("balance"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created account %q (id %d)\n", account.Name, account.ID)
	return nil
}

func accountsShowAction(ctx context.Context, cmd *cli.Command) error {
	id, err := accountIDArg(cmd, "show")
	if err != nil {
		return err
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	account, err := application.API.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Account: %s (id %d)\n", account.Name, account.ID)
	fmt.Printf("Type:    %s\n", account.AccountType)
	fmt.Printf("Balance: %.2f\n", account.Balance)
	fmt.Printf("Created: %s\n", account.CreatedAt.Local().Format("2006-01-02"))
	return nil
}

func accountsUpdateAction(ctx context.Context, cmd *cli.Command) error {
	id, err := accountIDArg(cmd, "update")
	if err != nil {
		return err
	}

	// Only flags the user actually set go into the partial update.
	var upd apiclient.AccountUpdate
	if cmd.IsSet("name") {
		name := cmd.String("name")
		upd.Name = &name
	}
	if cmd.IsSet("type") {
		accountType := cmd.String("type")
		upd.AccountType = &accountType
	}
	if cmd.IsSet("balance") {
		balance := cmd.Float("balance")
		upd.Balance = &balance
	}
	if upd.Name == nil && upd.AccountType == nil && upd.Balance == nil {
		return fmt.Errorf("nothing to update: pass --name, --type, or --balance")
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	account, err := application.API.UpdateAccount(ctx, id, upd)
	if err != nil {
		return err
	}

	fmt.Printf("Updated account %q (id %d, balance %.2f)\n", account.Name, account.ID, account.Balance)
	return nil
}

func accountsDeleteAction(ctx context.Context, cmd *cli.Command) error {
	id, err := accountIDArg(cmd, "delete")
	if err != nil {
		return err
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	if err := application.API.DeleteAccount(ctx, id); err != nil {
		return err
	}

	fmt.Printf("Deleted account %d\n", id)
	return nil
}

func accountIDArg(cmd *cli.Command, verb string) (int64, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("usage: fincli accounts %s <account-id>", verb)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return id, nil
}
