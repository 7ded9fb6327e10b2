package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/luminote/luminote/adapters/sqlite"
	"github.com/luminote/luminote/domain/ledger"
)

var usageCmd = &cobra.Command{
	Use:   "usage <user-id-or-username>",
	Short: "Inspect a user's token usage",
	Long: `Show a user's current balance and their daily token spend
over the last two weeks.

Examples:
  luminote usage alice`,
	Args: cobra.ExactArgs(1),
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	user, err := getUser(sqlite.NewUserStore(db), args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	start, end := ledger.BiweeklyRange(time.Now())
	records, err := sqlite.NewLedgerStore(db).UsageBetween(ctx, user.ID, start, end)
	if err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}

	fmt.Printf("User:    %s (%s)\n", user.Username, user.ID)
	fmt.Printf("Balance: %d tokens\n", user.TokenBalance)
	fmt.Println()

	if len(records) == 0 {
		fmt.Println("No usage in the last 14 days.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tTOKENS")
	fmt.Fprintln(w, "---\t------")

	total := 0
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\n", r.Day.Format("2006-01-02"), r.TokensSpent)
		total += r.TokensSpent
	}
	fmt.Fprintf(w, "\t\n")
	fmt.Fprintf(w, "TOTAL\t%d\n", total)

	w.Flush()
	return nil
}
