package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/lib/pq"
)

// Scheduled cleanup: drop presence rows that went a month without any
// observation. Active players are re-created on their next voice or game
// activity, so this only sheds long-gone accounts.
func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Sprintf("open: %v", err), nil
	}
	defer db.Close()

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := db.ExecContext(cctx, `
DELETE FROM players
 WHERE last_updated < now() - INTERVAL '30 days'
   AND current_channel = ''
   AND NOT in_game;`)
	if err != nil {
		return fmt.Sprintf("prune: %v", err), nil
	}
	n, _ := res.RowsAffected()
	return fmt.Sprintf("ok, pruned %d", n), nil
}

func main() { lambda.Start(handler) }
