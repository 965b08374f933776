// Command agent is a buyer-side negotiation client. It haggles with a
// clearinghouse over one asset, and settles the deal if a price is struck.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/x402/clearinghouse/internal/haggle"
	"github.com/x402/clearinghouse/internal/session"
)

func main() {
	var (
		server     = flag.String("server", "http://localhost:8080", "clearinghouse base URL")
		assetID    = flag.String("asset", "DATA-FEED-01", "asset to bid on")
		agentAddr  = flag.String("agent", "0xAgent", "buyer agent address")
		budget     = flag.String("budget", "100", "maximum acceptable price")
		aggression = flag.String("aggression", "0.15", "opening discount as a fraction of budget (0-1)")
		rounds     = flag.Int("rounds", 3, "maximum negotiation rounds")
		volume     = flag.Int64("volume", 1, "units to buy")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	maxBudget, err := decimal.NewFromString(*budget)
	if err != nil {
		slog.Error("invalid budget", "value", *budget)
		os.Exit(1)
	}
	aggr, err := decimal.NewFromString(*aggression)
	if err != nil {
		slog.Error("invalid aggression", "value", *aggression)
		os.Exit(1)
	}

	strategy, err := haggle.New(*rounds, aggr)
	if err != nil {
		slog.Error("invalid strategy", "err", err)
		os.Exit(1)
	}

	client := session.NewClient(*server)
	runner := session.NewRunner(strategy, client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	slog.Info("opening negotiation",
		"server", *server,
		"asset", *assetID,
		"budget", maxBudget.String(),
		"max_rounds", *rounds,
	)

	outcome, err := runner.Run(ctx, *assetID, *agentAddr, *volume, maxBudget)
	if err != nil {
		slog.Error("negotiation failed", "err", err)
		os.Exit(1)
	}

	for i, r := range outcome.History {
		slog.Info("round", "n", i+1, "bid", r.Bid.String(), "counter", r.Counter.String())
	}

	switch outcome.State {
	case session.StateAccepted:
		slog.Info("deal struck",
			"price", outcome.FinalPrice.String(),
			"rounds", outcome.Rounds,
			"session", outcome.SessionID,
		)

		receipt, err := client.Settle(ctx, outcome.SessionID, *assetID, *agentAddr)
		if err != nil {
			slog.Error("settlement failed", "err", err)
			os.Exit(1)
		}
		slog.Info("settled", "tx_ref", receipt.TxRef, "price", receipt.Price.String())
		fmt.Printf("bought %d x %s at $%s (tx %s)\n",
			receipt.Volume, receipt.AssetID, receipt.Price.StringFixed(2), receipt.TxRef)

	case session.StateRejected:
		slog.Warn("seller rejected", "asking", outcome.FinalPrice.String(), "rounds", outcome.Rounds)
		os.Exit(2)

	case session.StateExpired:
		slog.Warn("quote expired before agreement", "rounds", outcome.Rounds)
		os.Exit(2)

	case session.StateWalkedAway:
		slog.Warn("walked away", "rounds", outcome.Rounds)
		os.Exit(2)
	}
}
