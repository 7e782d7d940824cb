package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradegate/market"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Dry-run the risk check for an order",
	Long: `Evaluate an order against the user's limits and today's state without
placing it. Nothing is recorded.

Example:
  tradegate evaluate --user alice --symbol BTC/USDT --side sell --amount 3 --position BTC/USDT=2`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

var (
	evalUser      string
	evalSymbol    string
	evalSide      string
	evalAmount    float64
	evalPrice     float64
	evalPositions map[string]string
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	f := evaluateCmd.Flags()
	f.StringVarP(&evalUser, "user", "u", "", "user id (required)")
	f.StringVarP(&evalSymbol, "symbol", "s", "", "symbol")
	f.StringVar(&evalSide, "side", "", "buy or sell")
	f.Float64VarP(&evalAmount, "amount", "a", 0, "order amount")
	f.Float64Var(&evalPrice, "price", 0, "price used for the notional estimate")
	f.StringToStringVar(&evalPositions, "position", nil, "broker position override, symbol=qty (repeatable)")
	evaluateCmd.MarkFlagRequired("user")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// An unknown side is left for the engine to reject.
	side, _ := market.ParseSide(evalSide)
	req := market.OrderRequest{Symbol: evalSymbol, Side: side, Amount: evalAmount, Type: market.Market}
	if cmd.Flags().Changed("price") {
		p := evalPrice
		req.Price = &p
	}

	current, err := parsePositions(evalPositions)
	if err != nil {
		return err
	}

	d, err := a.engine.Evaluate(cmd.Context(), evalUser, req, current)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	mark := "✓"
	if !d.Allowed {
		mark = "✗"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s\n", mark, d.Reason, out)
	return nil
}

func parsePositions(in map[string]string) (market.Positions, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(market.Positions, len(in))
	for sym, v := range in {
		qty, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", sym, err)
		}
		out[sym] = qty
	}
	return out, nil
}
