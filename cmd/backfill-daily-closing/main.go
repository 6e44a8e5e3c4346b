package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
)

// backfill-daily-closing computes (or recomputes) one closing per day in
// [from, to], oldest first, so every previous_balance chains from the day
// before it.
func main() {
	from := flag.String("from", "", "Required: start date (YYYY-MM-DD).")
	to := flag.String("to", "", "Optional: end date (YYYY-MM-DD). Defaults to today in TIMEZONE.")
	username := flag.String("user", "admin", "Username recorded as the issuer of every closing.")
	skipEmpty := flag.Bool("skip-empty", true, "Skip days without sales, expenses or injections.")
	dryRun := flag.Bool("dry-run", false, "Print the previews without writing anything.")
	flag.Parse()

	start, err := models.ParseDate(strings.TrimSpace(*from))
	if err != nil {
		fmt.Fprintf(os.Stderr, "-from: %v\n", err)
		os.Exit(2)
	}
	end := models.Today()
	if strings.TrimSpace(*to) != "" {
		end, err = models.ParseDate(strings.TrimSpace(*to))
		if err != nil {
			fmt.Fprintf(os.Stderr, "-to: %v\n", err)
			os.Exit(2)
		}
	}
	if end.Before(start) {
		fmt.Fprintln(os.Stderr, "-to must not be before -from")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	// sessions, caches and the closing lock live in the server's Redis
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
		defer config.GetRedisDB().Close()
	}
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if err := models.Migrate(config.GetDB()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	user, err := models.GetUserByUsername(ctx, *username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup user %q: %v\n", *username, err)
		os.Exit(1)
	}
	actor := user.Actor("backfill-daily-closing")

	var created, recomputed, skipped int
	for day := start; !day.After(end); day = day.AddDays(1) {
		preview, err := models.PreviewClosing(ctx, day)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: preview failed: %v\n", day, err)
			os.Exit(1)
		}
		empty := preview.TotalSales.IsZero() && preview.TotalExpenses.IsZero() && preview.TotalInjections.IsZero()
		if *skipEmpty && empty && !preview.AlreadyClosed {
			skipped++
			continue
		}
		if *dryRun {
			fmt.Printf("%s: sales=%s expenses=%s injections=%s previous=%s final=%s closed=%t\n",
				day,
				preview.TotalSales.StringFixed(2),
				preview.TotalExpenses.StringFixed(2),
				preview.TotalInjections.StringFixed(2),
				preview.PreviousBalance.StringFixed(2),
				preview.FinalBalance.StringFixed(2),
				preview.AlreadyClosed,
			)
			continue
		}

		release, err := models.LockClosingChain(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", day, err)
			os.Exit(1)
		}
		var closing *models.DailyClosing
		if preview.AlreadyClosed {
			closing, err = models.RecomputeClosing(ctx, actor, day)
			recomputed++
		} else {
			closing, err = models.ComputeClosing(ctx, actor, day)
			if errors.Is(err, utils.ErrDuplicateClosing) {
				// closed by someone else meanwhile
				closing, err = models.RecomputeClosing(ctx, actor, day)
				recomputed++
			} else {
				created++
			}
		}
		release()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: closing failed: %v\n", day, err)
			os.Exit(1)
		}
		fmt.Printf("%s: final_balance=%s\n", day, closing.FinalBalance.StringFixed(2))
	}

	fmt.Printf("done: created=%d recomputed=%d skipped=%d\n", created, recomputed, skipped)
}
