package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradegate/execution"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/metrics"
	tgsignal "github.com/rustyeddy/tradegate/signal"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Risk check and paper-execute signals",
	Long: `Execute one signal given by flags, or a batch read from a file.

Batch files hold either a JSON array or one JSON object per line. Objects
may use alert-style field names (ticker, action, quantity); long/short
are accepted as sides.

Examples:
  tradegate execute --user alice --symbol BTC/USDT --side buy --amount 0.5
  tradegate execute --file signals.jsonl --workers 8
  cat signals.jsonl | tradegate execute --file -`,
	Args: cobra.NoArgs,
	RunE: runExecute,
}

var (
	execUser        string
	execSymbol      string
	execSide        string
	execAmount      float64
	execType        string
	execPrice       float64
	execExchange    string
	execFile        string
	execWorkers     int
	execMetricsAddr string
	execJSON        bool
)

func init() {
	rootCmd.AddCommand(executeCmd)

	f := executeCmd.Flags()
	f.StringVarP(&execUser, "user", "u", "", "user id")
	f.StringVarP(&execSymbol, "symbol", "s", "", "symbol, e.g. BTC/USDT")
	f.StringVar(&execSide, "side", "", "buy or sell (long/short accepted)")
	f.Float64VarP(&execAmount, "amount", "a", 0, "order amount")
	f.StringVarP(&execType, "type", "t", "market", "market or limit")
	f.Float64Var(&execPrice, "price", 0, "limit price")
	f.StringVarP(&execExchange, "exchange", "x", "", "exchange (defaults to broker.default_exchange)")
	f.StringVarP(&execFile, "file", "f", "", "JSON or JSONL file of signals ('-' for stdin)")
	f.IntVarP(&execWorkers, "workers", "w", 4, "concurrent executions in batch mode")
	f.StringVar(&execMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	f.BoolVar(&execJSON, "json", false, "print results as JSON lines")
}

func runExecute(cmd *cobra.Command, args []string) error {
	signals, err := signalsFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := execMetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		stop, err := serveMetrics(addr, a)
		if err != nil {
			return err
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	outcomes := a.orch.Run(ctx, signals, execWorkers)

	if execJSON {
		if err := printOutcomesJSON(cmd.OutOrStdout(), outcomes); err != nil {
			return err
		}
	} else {
		printOutcomes(cmd.OutOrStdout(), outcomes)
	}

	for _, o := range outcomes {
		if o.Err != nil {
			return errors.New("some signals failed")
		}
	}
	return nil
}

func signalsFromFlags(cmd *cobra.Command) ([]tgsignal.Signal, error) {
	if execFile != "" {
		var r io.Reader
		if execFile == "-" {
			r = cmd.InOrStdin()
		} else {
			f, err := os.Open(execFile)
			if err != nil {
				return nil, fmt.Errorf("open signals: %w", err)
			}
			defer f.Close()
			r = f
		}
		return readSignals(r)
	}

	side, err := market.ParseSide(execSide)
	if err != nil {
		return nil, err
	}
	typ, err := market.ParseOrderType(execType)
	if err != nil {
		return nil, err
	}
	s := tgsignal.Signal{
		Source:   "cli",
		UserID:   execUser,
		Symbol:   execSymbol,
		Side:     side,
		Amount:   execAmount,
		Type:     typ,
		Exchange: execExchange,
	}
	if cmd.Flags().Changed("price") {
		p := execPrice
		s.Price = &p
	}
	sig, err := tgsignal.New(s)
	if err != nil {
		return nil, err
	}
	return []tgsignal.Signal{sig}, nil
}

// readSignals accepts a JSON array of payloads or JSON lines.
func readSignals(r io.Reader) ([]tgsignal.Signal, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no signals given")
	}

	var payloads []map[string]any
	if data[0] == '[' {
		if err := json.Unmarshal(data, &payloads); err != nil {
			return nil, fmt.Errorf("parse signals: %w", err)
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for sc.Scan() {
			line++
			text := strings.TrimSpace(sc.Text())
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			var p map[string]any
			if err := json.Unmarshal([]byte(text), &p); err != nil {
				return nil, fmt.Errorf("parse signals line %d: %w", line, err)
			}
			payloads = append(payloads, p)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read signals: %w", err)
		}
	}

	out := make([]tgsignal.Signal, 0, len(payloads))
	for i, p := range payloads {
		source, _ := p["source"].(string)
		if source == "" {
			source = "file"
		}
		s, err := tgsignal.FromPayload(source, p)
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i+1, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func serveMetrics(addr string, a *app) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printOutcomesJSON(w io.Writer, outcomes []execution.Outcome) error {
	enc := json.NewEncoder(w)
	for _, o := range outcomes {
		line := struct {
			SignalID string           `json:"signal_id"`
			UserID   string           `json:"user_id"`
			Result   execution.Result `json:"result"`
			Error    string           `json:"error,omitempty"`
		}{SignalID: o.Signal.ID, UserID: o.Signal.UserID, Result: o.Result}
		if o.Err != nil {
			line.Error = o.Err.Error()
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

func printOutcomes(w io.Writer, outcomes []execution.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"User", "Symbol", "Side", "Amount", "Status", "Reason / Order", "Filled"})

	counts := map[string]int{}
	for _, o := range outcomes {
		status := string(o.Result.Status)
		detail := string(o.Result.Reason)
		filled := ""
		switch {
		case o.Err != nil:
			if status == "" {
				status = "invalid"
			}
			detail = o.Err.Error()
		case o.Result.Order != nil:
			detail = o.Result.Order.ID + " (" + string(o.Result.Order.Status) + ")"
			filled = fmt.Sprintf("%g", o.Result.Order.Filled)
		}
		counts[status]++
		t.AppendRow(table.Row{o.Signal.UserID, o.Signal.Symbol, o.Signal.Side, o.Signal.Amount, status, detail, filled})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("executed %d, rejected %d, failed %d",
		counts["executed"], counts["rejected"], counts["failed"]+counts["invalid"]), ""})
	t.Render()
}
