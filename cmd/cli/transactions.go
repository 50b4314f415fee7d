package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/ledgerengine/internal/adapter/http/dto"
)

func transactionsCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions", "transaction"},
		Short:   "Ledger transaction operations",
	}

	cmd.AddCommand(
		openTransactionCmd(c),
		getTransactionCmd(c),
		findTransactionsCmd(c),
		appendEntryCmd(c),
		removeEntryCmd(c),
		previewTransactionCmd(c),
		transitionCmd(c, "post", "Post a draft, applying its entries to balances"),
		transitionCmd(c, "void", "Void a draft"),
		reverseTransactionCmd(c),
	)

	return cmd
}

func openTransactionCmd(c *client) *cobra.Command {
	var req dto.OpenTransactionRequest
	var organizationID, occurredAt string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a draft transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if organizationID != "" {
				req.OrganizationID = &organizationID
			}
			if occurredAt != "" {
				t, err := time.Parse(time.RFC3339, occurredAt)
				if err != nil {
					return fmt.Errorf("invalid --occurred-at: %w", err)
				}
				req.OccurredAt = &t
			}

			var txn dto.TransactionResponse
			if err := c.post("/api/v1/transactions", req, &txn); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), txn)
		},
	}

	cmd.Flags().StringVar(&req.ReferenceType, "reference-type", "", "Reference kind")
	cmd.Flags().StringVar(&req.ReferenceID, "reference-id", "", "Reference ID")
	cmd.Flags().StringVar(&req.CreatedBy, "created-by", "", "Actor opening the draft")
	cmd.Flags().StringVar(&organizationID, "organization", "", "Organization ID")
	cmd.Flags().StringVar(&occurredAt, "occurred-at", "", "Business time in RFC3339")
	_ = cmd.MarkFlagRequired("reference-type")
	_ = cmd.MarkFlagRequired("reference-id")
	_ = cmd.MarkFlagRequired("created-by")

	return cmd
}

func getTransactionCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <transaction-id>",
		Short: "Show a transaction with its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var txn dto.TransactionResponse
			if err := c.get("/api/v1/transactions/"+url.PathEscape(args[0]), nil, &txn); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), txn)
		},
	}
}

func findTransactionsCmd(c *client) *cobra.Command {
	var refType, refID string

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find transactions by reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("reference_type", refType)
			query.Set("reference_id", refID)

			var txns []dto.TransactionResponse
			if err := c.get("/api/v1/transactions", query, &txns); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tREFERENCE\tCREATED BY")
			for _, t := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, truncate(t.ReferenceType+":"+t.ReferenceID, 32), t.CreatedBy)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&refType, "reference-type", "", "Reference kind")
	cmd.Flags().StringVar(&refID, "reference-id", "", "Reference ID")
	_ = cmd.MarkFlagRequired("reference-type")
	_ = cmd.MarkFlagRequired("reference-id")

	return cmd
}

func appendEntryCmd(c *client) *cobra.Command {
	var req dto.AppendEntryRequest
	var assetID string

	cmd := &cobra.Command{
		Use:   "append <transaction-id>",
		Short: "Append an entry to a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if assetID != "" {
				req.AssetID = &assetID
			}
			var entry dto.EntryResponse
			if err := c.post("/api/v1/transactions/"+url.PathEscape(args[0])+"/entries", req, &entry); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}

	cmd.Flags().StringVar(&req.AccountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&req.Direction, "direction", "", "debit or credit")
	cmd.Flags().StringVar(&req.Amount, "amount", "", "Positive decimal amount")
	cmd.Flags().StringVar(&req.Currency, "currency", "", "ISO currency code")
	cmd.Flags().StringVar(&assetID, "asset", "", "Asset ID")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("direction")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("currency")

	return cmd
}

func removeEntryCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <transaction-id> <entry-id>",
		Short: "Remove an entry from a draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.delete("/api/v1/transactions/" + url.PathEscape(args[0]) + "/entries/" + url.PathEscape(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entry %s removed\n", args[1])
			return nil
		},
	}
}

func previewTransactionCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <transaction-id>",
		Short: "Show per-currency totals of a draft without posting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.BalanceReportResponse
			if err := c.get("/api/v1/transactions/"+url.PathEscape(args[0])+"/preview", nil, &report); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func transitionCmd(c *client, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <transaction-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var txn dto.TransactionResponse
			if err := c.post("/api/v1/transactions/"+url.PathEscape(args[0])+"/"+action, nil, &txn); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), txn)
		},
	}
}

func reverseTransactionCmd(c *client) *cobra.Command {
	var req dto.ReverseTransactionRequest

	cmd := &cobra.Command{
		Use:   "reverse <transaction-id>",
		Short: "Post a mirror transaction cancelling a posted one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var txn dto.TransactionResponse
			if err := c.post("/api/v1/transactions/"+url.PathEscape(args[0])+"/reverse", req, &txn); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), txn)
		},
	}

	cmd.Flags().StringVar(&req.CreatedBy, "created-by", "", "Actor requesting the reversal")
	_ = cmd.MarkFlagRequired("created-by")

	return cmd
}
