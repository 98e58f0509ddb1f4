package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/mbbsolutions/com.shovibam-sub000/internal/cache"
	"github.com/mbbsolutions/com.shovibam-sub000/internal/commands"
	"github.com/mbbsolutions/com.shovibam-sub000/internal/history"
	"github.com/mbbsolutions/com.shovibam-sub000/internal/presenter"
	"github.com/mbbsolutions/com.shovibam-sub000/internal/reconcile"
	"github.com/mbbsolutions/com.shovibam-sub000/internal/types"
)

type CLI struct {
	commands.CommonConfig

	BaseURL       string        `help:"Base URL of the banking backend API" env:"SHOVIBAM_API_URL"`
	CustomerID    string        `help:"Customer identifier to fetch history for" required:""`
	Accounts      []string      `help:"Account numbers to fetch history for (default: all accounts)" name:"account"`
	Limit         int           `help:"Number of raw records to request per account" default:"50"`
	Timeout       time.Duration `help:"Timeout for a single backend request" default:"30s"`
	RetryAttempts uint          `help:"Number of attempts per backend request" default:"3"`
	Offline       bool          `help:"Render from the local cache without contacting the backend" default:"false"`
	NoProgress    bool          `help:"Disable progress bar" default:"false"`
	JSON          bool          `help:"Emit grouped transactions as JSON instead of a table" default:"false"`
}

func (c *CLI) Run() error {
	logger := c.SetupLogger()

	if !c.Offline && c.BaseURL == "" {
		return fmt.Errorf("--base-url is required unless --offline is set")
	}

	store, err := cache.New(c.DataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open history cache: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if c.Offline {
		return c.renderFromCache(ctx, store)
	}

	client := history.NewClient(logger, history.ClientConfig{
		BaseURL:       c.BaseURL,
		Timeout:       c.Timeout,
		RetryAttempts: c.RetryAttempts,
	})

	if len(c.Accounts) > 1 {
		return c.runMultiAccount(ctx, logger, client, store)
	}
	return c.runSingleAccount(ctx, logger, client, store)
}

// runSingleAccount drives the same refresh pipeline the dashboard screen
// uses, falling back to the cache when the backend is unreachable.
func (c *CLI) runSingleAccount(ctx context.Context, logger *log.Logger, client *history.Client, store *cache.Cache) error {
	accountNo := ""
	if len(c.Accounts) == 1 {
		accountNo = c.Accounts[0]
	}

	// successful fetches are written through to the cache so the next
	// offline run has something to show
	p := presenter.New(cache.NewCachingSource(client, store), logger, c.Limit)
	rows, err := p.Refresh(ctx, c.CustomerID, accountNo)
	if err != nil {
		logger.Warn("History fetch failed, trying local cache", "error", err)
		records, fetchedAt, cacheErr := store.Get(ctx, c.CustomerID, accountNo)
		if cacheErr != nil {
			if errors.Is(cacheErr, cache.ErrMiss) {
				return err
			}
			return cacheErr
		}
		fmt.Fprintf(os.Stderr, "Showing cached history from %s\n", fetchedAt.Format(time.RFC3339))
		return c.render(accountNo, reconcile.Reconcile(records))
	}

	return c.render(accountNo, rows)
}

// runMultiAccount fetches several accounts concurrently and renders each
// account's grouped history in turn.
func (c *CLI) runMultiAccount(ctx context.Context, logger *log.Logger, client *history.Client, store *cache.Cache) error {
	var progress history.Progress
	if c.NoProgress {
		progress = history.NewNoopProgress()
	} else {
		progress = history.NewBarProgress(len(c.Accounts))
	}

	feeds, err := client.FetchAll(ctx, c.CustomerID, c.Accounts, c.Limit, progress)
	if err != nil {
		return err
	}

	for _, accountNo := range c.Accounts {
		records := feeds[accountNo]
		if err := store.Put(ctx, c.CustomerID, accountNo, records); err != nil {
			logger.Warn("Failed to cache history feed", "account_no", accountNo, "error", err)
		}
		if err := c.render(accountNo, reconcile.Reconcile(records)); err != nil {
			return err
		}
	}

	return nil
}

func (c *CLI) renderFromCache(ctx context.Context, store *cache.Cache) error {
	accounts := c.Accounts
	if len(accounts) == 0 {
		accounts = []string{""}
	}

	for _, accountNo := range accounts {
		records, fetchedAt, err := store.Get(ctx, c.CustomerID, accountNo)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Showing cached history from %s\n", fetchedAt.Format(time.RFC3339))
		if err := c.render(accountNo, reconcile.Reconcile(records)); err != nil {
			return err
		}
	}

	return nil
}

func (c *CLI) render(accountNo string, rows []types.GroupedTransaction) error {
	if c.JSON {
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode grouped transactions: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if accountNo != "" {
		fmt.Printf("Account %s\n", accountNo)
	}
	return presenter.Render(os.Stdout, rows)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("history"),
		kong.Description("Fetch, reconcile and display account transaction history"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
