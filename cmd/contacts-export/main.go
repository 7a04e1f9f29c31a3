// Command contacts-export writes every Google contact of an account to an
// xlsx file without going through the browser.
//
// It takes an OAuth access token with the contacts.readonly scope, for
// example one printed by `gcloud auth print-access-token` with the right
// scopes, and runs the same aggregation and export as the web server.
//
//	contacts-export --token "$GOOGLE_ACCESS_TOKEN" --out contacts.xlsx
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sakif/contact-insight/internal/export"
	"github.com/sakif/contact-insight/internal/model"
	"github.com/sakif/contact-insight/internal/people"
)

type options struct {
	token          string
	out            string
	maxPages       int
	connectionsURL string
	verbose        bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: could not read .env:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "contacts-export",
		Short:         "Export all Google contacts of an account to an xlsx file",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" {
				opts.token = os.Getenv("GOOGLE_ACCESS_TOKEN")
			}
			if opts.token == "" {
				return errors.New("an access token is required (--token or GOOGLE_ACCESS_TOKEN)")
			}

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			return run(cmd.Context(), opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.token, "token", "", "OAuth access token (default $GOOGLE_ACCESS_TOKEN)")
	f.StringVarP(&opts.out, "out", "o", export.FileName, "output file")
	f.IntVar(&opts.maxPages, "max-pages", people.DefaultMaxPages, "stop after this many listing pages")
	f.StringVar(&opts.connectionsURL, "connections-url", people.DefaultConnectionsURL, "People API connections endpoint")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log every fetched page")
	_ = f.MarkHidden("connections-url")

	return cmd
}

// run aggregates the contacts and writes the workbook to opts.out. The file is
// only created once every page has been fetched.
func run(ctx context.Context, opts options, logger *slog.Logger) error {
	cfg := people.DefaultConfig()
	cfg.ConnectionsURL = opts.connectionsURL
	cfg.MaxPages = opts.maxPages
	client := people.New(cfg, logger, nil)

	res, err := client.FetchAllContacts(ctx, &model.Credential{AccessToken: opts.token, TokenType: "Bearer"})
	if err != nil {
		return fmt.Errorf("fetching contacts (%d pages done): %w", res.Pages, err)
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", opts.out, err)
	}
	if err := export.Write(f, res.Contacts); err != nil {
		f.Close()
		os.Remove(opts.out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", opts.out, err)
	}

	logger.Info("export written",
		slog.String("file", opts.out),
		slog.Int("contacts", len(res.Contacts)),
		slog.Int("pages", res.Pages),
	)
	return nil
}
