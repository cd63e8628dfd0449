// sizingreport prints a position sizing plan, the averaging ladder and a
// P&L scenario table for a given margin picture. It can take the margin
// from the command line or fetch it live from the broker account.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"execution-systemv1/config"
	"execution-systemv1/internal/broker"
	"execution-systemv1/internal/session"
	"execution-systemv1/internal/sizing"
	memorystore "execution-systemv1/internal/store/memory"
	"execution-systemv1/pkg/smartconnect"
)

func main() {
	var (
		availableMargin = flag.Float64("margin", 0, "available margin in rupees (0 = fetch from broker)")
		marginPerLot    = flag.Float64("margin-per-lot", 216_400, "margin required per lot in rupees")
		premium         = flag.Float64("premium", 312.5, "entry premium per unit in rupees")
		riskFraction    = flag.Float64("risk-fraction", 0.5, "fraction of margin used for initial sizing")
		lotSize         = flag.Int("lot-size", 75, "contract lot size in units")
		short           = flag.Bool("short", true, "short premium (true) or long (false) for the P&L table")
	)
	flag.Parse()

	margin := *availableMargin
	if margin == 0 {
		var err error
		if margin, err = fetchMargin(); err != nil {
			log.Fatalf("[sizingreport] margin fetch failed: %v", err)
		}
	}

	plan := sizing.BuildPlan(margin, *marginPerLot, *premium, *riskFraction, sizing.DefaultOffsets)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "available margin\t%.2f\n", plan.AvailableMargin)
	fmt.Fprintf(w, "margin per lot\t%.2f\n", plan.MarginPerLot)
	fmt.Fprintf(w, "risk fraction\t%.2f\n", *riskFraction)
	fmt.Fprintf(w, "recommended lots\t%d\n", plan.RecommendedLots)
	fmt.Fprintf(w, "initial quantity\t%d\n", plan.RecommendedLots*(*lotSize))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "level\ttrigger\tadd lots\tcum lots\tcum margin")
	for i, lv := range plan.Levels {
		fmt.Fprintf(w, "%d\t%.2f\t%d\t%d\t%.2f\n",
			i+1, lv.TriggerPrice, lv.LotsToAdd, lv.CumulativeLots, lv.CumulativeMargin)
	}
	fmt.Fprintln(w)

	direction := -1
	if !*short {
		direction = 1
	}
	moves := []float64{-0.5, -0.25, -0.1, 0, 0.1, 0.25, 0.5, 1.0}
	fmt.Fprintln(w, "move\texit\tpnl")
	for _, sc := range sizing.PnLScenarios(*premium, *lotSize, plan.RecommendedLots, direction, moves) {
		fmt.Fprintf(w, "%+.0f%%\t%.2f\t%.2f\n", sc.MovePct*100, sc.ExitPrice, sc.PnL)
	}
	w.Flush()
}

// fetchMargin logs in with the configured credentials and reads the RMS
// net margin. Requires the Angel One env vars.
func fetchMargin() (float64, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sc := smartconnect.New(smartconnect.Config{APIKey: cfg.AngelAPIKey})
	angel := broker.NewAngelOne(sc, cfg.SessionTTL, slogger)
	sessions := session.NewManager(angel, memorystore.NewSessionStore(), session.Credentials{
		ClientCode: cfg.AngelClientCode,
		Password:   cfg.AngelPassword,
		TOTPSecret: cfg.AngelTOTPSecret,
	}, slogger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sess, err := sessions.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	return angel.AvailableMargin(ctx, sess)
}
