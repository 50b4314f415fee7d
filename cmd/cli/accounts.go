package main

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iho/ledgerengine/internal/adapter/http/dto"
)

func accountsCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Account operations",
	}

	cmd.AddCommand(
		createAccountCmd(c),
		getAccountCmd(c),
		listAccountsCmd(c),
		accountStatusCmd(c, "close", "Close an account with a zero balance"),
		accountStatusCmd(c, "suspend", "Suspend an open account"),
		accountStatusCmd(c, "reopen", "Reopen a suspended account"),
		accountBalanceCmd(c),
		accountEntriesCmd(c),
		reconcileAccountCmd(c),
	)

	return cmd
}

func createAccountCmd(c *client) *cobra.Command {
	var req dto.CreateAccountRequest
	var parentID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if parentID != "" {
				req.ParentID = &parentID
			}
			var account dto.AccountResponse
			if err := c.post("/api/v1/accounts", req, &account); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}

	cmd.Flags().StringVar(&req.OwnerKind, "owner-kind", "organization", "Owner kind (user or organization)")
	cmd.Flags().StringVar(&req.OwnerID, "owner-id", "", "Owner ID")
	cmd.Flags().StringVar(&req.Code, "code", "", "Account code, unique per owner")
	cmd.Flags().StringVar(&req.Name, "name", "", "Account name")
	cmd.Flags().StringVar(&req.Type, "type", "", "Account type (asset, liability, equity, revenue, expense)")
	cmd.Flags().StringVar(&req.Currency, "currency", "", "ISO currency code")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent account ID")
	_ = cmd.MarkFlagRequired("owner-id")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("currency")

	return cmd
}

func getAccountCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <account-id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var account dto.AccountResponse
			if err := c.get("/api/v1/accounts/"+url.PathEscape(args[0]), nil, &account); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}
}

func listAccountsCmd(c *client) *cobra.Command {
	var ownerKind, ownerID string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("limit", strconv.Itoa(limit))
			query.Set("offset", strconv.Itoa(offset))
			if ownerID != "" {
				query.Set("owner_kind", ownerKind)
				query.Set("owner_id", ownerID)
			}

			var resp dto.ListAccountsResponse
			if err := c.get("/api/v1/accounts", query, &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tNAME\tTYPE\tCURRENCY\tSTATUS")
			for _, a := range resp.Accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Code, truncate(a.Name, 24), a.Type, a.Currency, a.Status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&ownerKind, "owner-kind", "organization", "Filter by owner kind")
	cmd.Flags().StringVar(&ownerID, "owner-id", "", "Filter by owner ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	return cmd
}

func accountStatusCmd(c *client, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <account-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var account dto.AccountResponse
			if err := c.post("/api/v1/accounts/"+url.PathEscape(args[0])+"/"+action, nil, &account); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}
}

func accountBalanceCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var balance dto.BalanceResponse
			if err := c.get("/api/v1/accounts/"+url.PathEscape(args[0])+"/balance", nil, &balance); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balance)
		},
	}
}

func accountEntriesCmd(c *client) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "entries <account-id>",
		Short: "List posted entries of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("limit", strconv.Itoa(limit))
			query.Set("offset", strconv.Itoa(offset))

			var entries []dto.EntryResponse
			if err := c.get("/api/v1/accounts/"+url.PathEscape(args[0])+"/entries", query, &entries); err != nil {
				return err
			}
			return printEntries(cmd, entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	return cmd
}

func reconcileAccountCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <account-id>",
		Short: "Compare an account balance with its posted entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dto.ReconciliationResponse
			if err := c.get("/api/v1/accounts/"+url.PathEscape(args[0])+"/reconcile", nil, &result); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func printEntries(cmd *cobra.Command, entries []dto.EntryResponse) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTRANSACTION\tACCOUNT\tDIRECTION\tAMOUNT\tCURRENCY")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.TransactionID, e.AccountID, e.Direction, e.Amount, e.Currency)
	}
	return w.Flush()
}
