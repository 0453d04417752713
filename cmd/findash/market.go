package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"findash/internal/analyzer"
	"findash/internal/symbols"
	"findash/pkg/model"
)

func newHistoryCmd() *cobra.Command {
	var days, period, last int
	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show close prices with a simple moving average",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := symbols.Normalize(args[0])
			if !symbols.IsValid(symbol) {
				return fmt.Errorf("invalid symbol %q", symbol)
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			series, err := a.history.Series(ctx, symbol, days)
			if err != nil {
				return err
			}
			return printHistory(series, period, last)
		},
	}
	cmd.Flags().IntVar(&days, "days", 365, "calendar days of history")
	cmd.Flags().IntVar(&period, "sma", 50, "moving average period")
	cmd.Flags().IntVar(&last, "last", 20, "rows to print, 0 for all")
	return cmd
}

func printHistory(series model.PriceSeries, period, last int) error {
	closes := series.Closes()
	sma, err := analyzer.SMA(closes, period)
	if err != nil {
		return err
	}

	start := 0
	if last > 0 && len(closes) > last {
		start = len(closes) - last
	}
	scale := cfg.Provider.PriceScale

	fmt.Printf("\n%s: %d closes (%s)\n\n", series.Symbol, len(closes), cfg.Provider.Currency)
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Date", "Close", fmt.Sprintf("SMA%d", period)}),
	)
	for i := start; i < len(closes); i++ {
		avg := "-"
		if j := i - (period - 1); j >= 0 && j < len(sma) {
			avg = formatPrice(sma[j] * scale)
		}
		table.Append([]string{
			series.Points[i].Date.Format("2006-01-02"),
			formatPrice(closes[i] * scale),
			avg,
		})
	}
	table.Render()
	return nil
}

func newCompareCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "compare SYMBOL...",
		Short: "Compare growth of several symbols rebased to their first close",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			stocks, _ := a.symbols.LoadSymbols(args)
			if len(stocks) == 0 {
				return fmt.Errorf("no valid symbols")
			}

			series := make([]model.PriceSeries, len(stocks))
			errs := make([]error, len(stocks))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(4)
			for i, s := range stocks {
				g.Go(func() error {
					// one missing symbol should not hide the others
					series[i], errs[i] = a.history.Series(gctx, s.Symbol, days)
					return nil
				})
			}
			g.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return printCompare(series, errs)
		},
	}
	cmd.Flags().IntVar(&days, "days", 365, "calendar days of history")
	return cmd
}

func printCompare(series []model.PriceSeries, errs []error) error {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "From", "To", "First", "Last", "Growth"}),
	)
	scale := cfg.Provider.PriceScale
	for i, s := range series {
		if errs[i] != nil {
			log.WithError(errs[i]).WithField("symbol", s.Symbol).Warn("skipping symbol")
			continue
		}
		growth, ok := analyzer.PeriodReturn(s.Closes())
		if !ok {
			continue
		}
		first, last := s.Points[0], s.Points[len(s.Points)-1]
		table.Append([]string{
			s.Symbol,
			first.Date.Format("2006-01-02"),
			last.Date.Format("2006-01-02"),
			formatPrice(first.Close * scale),
			formatPrice(last.Close * scale),
			fmt.Sprintf("%+.2f%%", growth*100),
		})
	}
	table.Render()
	return nil
}

func newSymbolsCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List index constituents (VN30 by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			stocks, fallback, err := a.symbols.LoadGroup(ctx, group)
			if err != nil {
				return err
			}
			if fallback {
				fmt.Println("Listing unavailable, showing the built-in list.")
			}

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Symbol", "Name", "Board"}),
			)
			for _, s := range stocks {
				table.Append([]string{s.Symbol, s.Name, s.Exchange})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "VN30", "index group")
	return cmd
}
