package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"DipSentinel/internal/model"
	"DipSentinel/internal/watchlist"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the watchlist",
	}
	cmd.AddCommand(newWatchAddCmd(), newWatchRemoveCmd(), newWatchListCmd())
	return cmd
}

func newWatchAddCmd() *cobra.Command {
	var name, market string
	cmd := &cobra.Command{
		Use:   "add SYMBOL",
		Short: "Add a symbol or update its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if market == "" {
				market = string(model.InferMarket(args[0]))
			}
			e, err := watchlist.NewEntry(args[0], name, market)
			if err != nil {
				return err
			}
			if err := watchlist.AddTo(ctx, a.store, e); err != nil {
				return err
			}
			fmt.Printf("Watching %s (%s, %s)\n", e.Symbol, e.Name, e.Market)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the symbol)")
	cmd.Flags().StringVar(&market, "market", "", "KR or US (default: guessed from the symbol)")
	return cmd
}

func newWatchRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm SYMBOL",
		Aliases: []string{"remove"},
		Short:   "Remove a symbol",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := watchlist.RemoveFrom(ctx, a.store, args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		},
	}
}

func newWatchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List watched symbols",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.Load(cmd.Context())
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"#", "Symbol", "Name", "Market"}),
			)
			for i, e := range entries {
				table.Append([]string{fmt.Sprint(i + 1), e.Symbol, e.Name, string(e.Market)})
			}
			table.Render()
			return nil
		},
	}
}
