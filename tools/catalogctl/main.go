package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/afero"

	"mediastream/internal/catalog"
)

const usage = "usage: catalogctl -db <file> [-root <dir>] import|list"

func main() {
	dbPath := flag.String("db", "", "catalog database file")
	root := flag.String("root", ".", "media directory for import")
	verbose := flag.Bool("v", false, "log each imported file")
	flag.Parse()

	if *dbPath == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, logger, *dbPath, *root, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "catalogctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, logger *slog.Logger, dbPath, root, command string) error {
	db, err := catalog.NewDB(catalog.Config{DatabasePath: dbPath, Logger: logger})
	if err != nil {
		return err
	}
	defer db.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	switch command {
	case "import":
		fsys := afero.NewBasePathFs(afero.NewOsFs(), root)
		result, err := catalog.NewImporter(fsys, db.Repository, logger).Import(ctx, "/")
		if err != nil {
			return err
		}
		return enc.Encode(result)
	case "list":
		entries, err := db.Repository.List(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(entries)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}
