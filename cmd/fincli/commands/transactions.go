package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/fincli/internal/apiclient"
)

func transactionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "transactions",
		Usage: "manage transactions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list transactions",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "account", Aliases: []string{"a"}, Usage: "filter by account id"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "maximum number of rows", Value: 50},
				},
				Action: transactionsListAction,
			},
			{
				Name:  "add",
				Usage: "record a transaction",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "account", Aliases: []string{"a"}, Usage: "account id", Required: true},
					&cli.FloatFlag{Name: "amount", Usage: "amount (negative for expenses)", Required: true},
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "date (YYYY-MM-DD)", Required: true},
					&cli.StringFlag{Name: "category", Usage: "category"},
					&cli.StringFlag{Name: "merchant", Usage: "merchant"},
					&cli.StringFlag{Name: "description", Usage: "free-form description"},
				},
				Action: transactionsAddAction,
			},
			{
				Name:      "show",
				Usage:     "show one transaction",
				ArgsUsage: "<transaction-id>",
				Action:    transactionsShowAction,
			},
			{
				Name:      "update",
				Usage:     "update a transaction (only the given flags change)",
				ArgsUsage: "<transaction-id>",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "amount", Usage: "corrected amount"},
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "corrected date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "category", Usage: "new category"},
					&cli.StringFlag{Name: "merchant", Usage: "new merchant"},
					&cli.StringFlag{Name: "description", Usage: "new description"},
				},
				Action: transactionsUpdateAction,
			},
			{
				Name:      "delete",
				Usage:     "delete a transaction",
				ArgsUsage: "<transaction-id>",
				Action:    transactionsDeleteAction,
			},
			{
				Name:  "import",
				Usage: "batch-import transactions from a JSON file",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "account", Aliases: []string{"a"}, Usage: "account id", Required: true},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "JSON file with an array of transactions", Required: true},
				},
				Action: transactionsImportAction,
			},
		},
	}
}

func transactionsListAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	list, err := application.API.ListTransactions(ctx, int64(cmd.Int("account")), cmd.Int("limit"))
	if err != nil {
		return err
	}

	if len(list.Transactions) == 0 {
		fmt.Println("No transactions found")
		return nil
	}

	for _, tx := range list.Transactions {
		fmt.Printf("%6d  %s  %10.2f  %-16s %s\n", tx.ID, tx.Date, tx.Amount, tx.Category, tx.Description)
	}
	fmt.Printf("Showing %d of %d\n", len(list.Transactions), list.Total)
	return nil
}

func transactionsAddAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	tx, err := application.API.CreateTransaction(ctx, apiclient.NewTransaction{
		AccountID:   int64(cmd.Int("account")),
		Amount:      cmd.Float("amount"),
		Date:        cmd.String("date"),
		Category:    cmd.String("category"),
		Merchant:    cmd.String("merchant"),
		Description: cmd.String("description"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Recorded transaction %d (%.2f on %s)\n", tx.ID, tx.Amount, tx.Date)
	return nil
}

func transactionsShowAction(ctx context.Context, cmd *cli.Command) error {
	id, err := transactionIDArg(cmd, "show")
	if err != nil {
		return err
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	tx, err := application.API.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Transaction %d on account %d\n", tx.ID, tx.AccountID)
	fmt.Printf("Amount:   %.2f\n", tx.Amount)
	fmt.Printf("Date:     %s\n", tx.Date)
	if tx.Category != "" {
		fmt.Printf("Category: %s\n", tx.Category)
	}
	if tx.Merchant != "" {
		fmt.Printf("Merchant: %s\n", tx.Merchant)
	}
	if tx.Description != "" {
		fmt.Printf("Note:     %s\n", tx.Description)
	}
	return nil
}

func transactionsUpdateAction(ctx context.Context, cmd *cli.Command) error {
	id, err := transactionIDArg(cmd, "update")
	if err != nil {
		return err
	}

	var upd apiclient.TransactionUpdate
	set := false
	if cmd.IsSet("amount") {
		amount := cmd.Float("amount")
		upd.Amount, set = &amount, true
	}
	if cmd.IsSet("date") {
		date := cmd.String("date")
		upd.Date, set = &date, true
	}
	if cmd.IsSet("category") {
		category := cmd.String("category")
		upd.Category, set = &category, true
	}
	if cmd.IsSet("merchant") {
		merchant := cmd.String("merchant")
		upd.Merchant, set = &merchant, true
	}
	if cmd.IsSet("description") {
		description := cmd.String("description")
		upd.Description, set = &description, true
	}
	if !set {
		return fmt.Errorf("nothing to update: pass at least one field flag")
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	tx, err := application.API.UpdateTransaction(ctx, id, upd)
	if err != nil {
		return err
	}

	fmt.Printf("Updated transaction %d (%.2f on %s)\n", tx.ID, tx.Amount, tx.Date)
	return nil
}

func transactionsDeleteAction(ctx context.Context, cmd *cli.Command) error {
	id, err := transactionIDArg(cmd, "delete")
	if err != nil {
		return err
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	if err := application.API.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	fmt.Printf("Deleted transaction %d\n", id)
	return nil
}

func transactionIDArg(cmd *cli.Command, verb string) (int64, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("usage: fincli transactions %s <transaction-id>", verb)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid transaction id %q", raw)
	}
	return id, nil
}

func transactionsImportAction(ctx context.Context, cmd *cli.Command) error {
	data, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}

	var txs []apiclient.NewTransaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return fmt.Errorf("parsing import file: %w", err)
	}
	if len(txs) == 0 {
		return fmt.Errorf("import file contains no transactions")
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	result, err := application.API.BatchCreateTransactions(ctx, int64(cmd.Int("account")), txs)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d transactions (total %.2f)\n", result.Count, result.TotalAmount)
	fmt.Printf("Account balance: %.2f\n", result.AccountBalance)
	return nil
}
