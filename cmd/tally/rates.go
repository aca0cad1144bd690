package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fathomworks/tally-ho/internal/cli"
	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Manage local exchange rates",
	}
	cmd.AddCommand(ratesImportCmd())
	cmd.AddCommand(ratesGetCmd())
	return cmd
}

func ratesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import exchange rates from a CSV file",
		Long: `Import exchange rates into the local rates table. The file needs a
header row and the columns from_currency,to_currency,date,rate with dates
as YYYY-MM-DD. Local rates are consulted before the remote API.`,
		Args: cobra.ExactArgs(1),
		RunE: runRatesImport,
	}
}

func runRatesImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rates, err := readRatesCSV(args[0])
	if err != nil {
		return err
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveRates(ctx, rates); err != nil {
		return common.NewUserError("failed to save rates", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d rates from %s", len(rates), args[0])))
	return nil
}

func readRatesCSV(path string) ([]model.StoredRate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewUserError("failed to open rates file", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, common.NewUserError("failed to read rates header", err)
	}
	if len(header) < 4 {
		return nil, common.NewUserError("rates file needs columns from_currency,to_currency,date,rate", common.ErrInvalidConfig)
	}

	var rates []model.StoredRate
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("failed to read rates line %d", line), err)
		}

		date, err := time.Parse("2006-01-02", record[2])
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("invalid date on line %d", line), err)
		}
		rate, err := decimal.NewFromString(record[3])
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("invalid rate on line %d", line), err)
		}

		rates = append(rates, model.StoredRate{
			From: record[0],
			To:   record[1],
			Date: date,
			Rate: rate,
		})
	}
	return rates, nil
}

func ratesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get FROM TO DATE",
		Short: "Resolve one exchange rate through the full source chain",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			asOf, err := time.Parse("2006-01-02", args[2])
			if err != nil {
				return common.NewUserError("date must be YYYY-MM-DD", err)
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			resolver, err := buildResolver(store)
			if err != nil {
				return err
			}

			normalized, err := resolver.Resolve(ctx, decimal.NewFromInt(1), args[0], args[1], asOf)
			if err != nil {
				return common.NewUserError("rate lookup failed", err)
			}

			fmt.Printf("%s -> %s on %s: %s\n", args[0], args[1],
				normalized.RateDate.Format("2006-01-02"), normalized.FXRate.String())
			return nil
		},
	}
}
