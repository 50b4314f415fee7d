package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/iho/ledgerengine/internal/adapter/http/dto"
)

func ledgerCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	cmd.AddCommand(consistencyCmd(c), reconciliationCmd(c))

	return cmd
}

func consistencyCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var report dto.ConsistencyResponse
			err := c.get("/api/v1/ledger/consistency", nil, &report)

			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				if jsonErr := json.Unmarshal([]byte(apiErr.Body), &report); jsonErr == nil {
					fmt.Fprintln(out, "Consistency check FAILED")
					printTotals(out, report.Totals)
					return errors.New("ledger is inconsistent")
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Consistency check PASSED")
			printTotals(out, report.Totals)
			return nil
		},
	}
}

func reconciliationCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "reconciliation",
		Short: "Reconcile every account balance against posted entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.ReconciliationReportResponse
			if err := c.get("/api/v1/ledger/reconciliation", nil, &report); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func printTotals(w io.Writer, totals []dto.CurrencyTotalResponse) {
	for _, t := range totals {
		fmt.Fprintf(w, "%s: debits=%s credits=%s net=%s\n", t.Currency, t.Debits, t.Credits, t.Net)
	}
}
