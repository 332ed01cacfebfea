package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"affidamento/internal"
	"affidamento/internal/config"
	"affidamento/internal/connectors"
	"affidamento/internal/document"
	"affidamento/internal/httpapi"
	"affidamento/internal/listener"
	"affidamento/internal/llm"
	"affidamento/internal/logger"
	"affidamento/internal/pipeline"
	"affidamento/internal/reconcile"
	"affidamento/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	must(err)
	defer log.Sync()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	quotes := pipeline.NewQuoteService(db, cfg, llm.NewClient(cfg, log.With("component", "llm")), log)

	cmd := os.Args[1]
	switch cmd {
	case "registry:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "suppliers xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		blob, err := os.ReadFile(*input)
		must(err)
		res, err := pipeline.ImportSuppliersXLSX(ctx, db, blob)
		must(err)
		must(db.SetMetadata("registry_last_import", time.Now().UTC().Format(time.RFC3339)))
		fmt.Printf("registry import done created=%d skipped=%d invalid=%d\n", res.Created, res.Skipped, res.Invalid)
	case "registry:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "fornitori.xlsx"), "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		records, err := db.ListSuppliers(ctx)
		must(err)
		must(pipeline.ExportSuppliersXLSX(records, *out))
		fmt.Printf("exported %d suppliers to %s\n", len(records), *out)
		if last, err := db.GetMetadata("registry_last_import"); err == nil && last != nil {
			fmt.Printf("last import: %s\n", *last)
		}
	case "quote:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "quote pdf or text file")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		blob, err := os.ReadFile(*input)
		must(err)
		var q internal.QuoteRow
		if strings.EqualFold(filepath.Ext(*input), ".pdf") {
			q, err = quotes.Upload(ctx, internal.SourceCLI, filepath.Base(*input), blob)
		} else {
			q, err = quotes.UploadText(ctx, internal.SourceCLI, nil, filepath.Base(*input), string(blob))
		}
		must(err)
		res, err := quotes.Parse(ctx, q.ID)
		must(err)
		printJSON(res)
	case "quote:resolve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "quote id")
		persistNovel := fs.Bool("persistNovel", true, "store values the registry does not have")
		choices := choiceFlag{}
		fs.Var(choices, "choice", "field=registry|extraction, repeatable")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		res, err := quotes.Resolve(ctx, *id, choices, *persistNovel)
		must(err)
		printJSON(res)
	case "quote:cancel":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "quote id")
		_ = fs.Parse(os.Args[2:])
		res, err := quotes.Cancel(ctx, *id)
		must(err)
		printJSON(res)
	case "quote:review":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "quote id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--id and --out are required"))
		}
		q, err := quotes.Quote(ctx, *id)
		must(err)
		session, err := pipeline.DecodeSession(q)
		must(err)
		must(pipeline.ExportReviewXLSX(q, session, *out))
		fmt.Printf("review sheet written to %s\n", *out)
	case "quote:generate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "quote id")
		formPath := fs.String("form", "", "form json path")
		out := fs.String("out", "", "output docx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		var form document.Form
		if *formPath != "" {
			blob, err := os.ReadFile(*formPath)
			must(err)
			must(json.Unmarshal(blob, &form))
		}
		if *out == "" {
			*out = filepath.Join(cfg.OutputDir, "affidamento_"+*id+".docx")
		}
		must(os.MkdirAll(filepath.Dir(*out), 0o755))
		must(quotes.GenerateFile(ctx, *id, form, *out))
		fmt.Printf("affidamento written to %s\n", *out)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := connectors.New(ctx, cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn, log)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", cfg.MailListenerProcessBatch, "batch size")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*messageID) != "" {
			res, err := quotes.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d quotes=%d needsReview=%d skipped=%t\n", res.EmailID, res.Quotes, res.NeedsReview, res.Skipped)
			return
		}
		emails, n, err := quotes.ProcessPending(ctx, *batch)
		must(err)
		fmt.Printf("processed pending emails=%d quotes=%d\n", emails, n)
	case "mail:listen":
		s := listener.NewService(db, cfg, quotes, nil, log.With("component", "listener"))
		must(s.Run(ctx))
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.HTTPAddr, "listen address")
		_ = fs.Parse(os.Args[2:])
		must(serve(ctx, *addr, cfg, db, quotes, log))
	default:
		usage()
		os.Exit(1)
	}
}

func serve(ctx context.Context, addr string, cfg config.Config, db *storage.DB, quotes *pipeline.QuoteService, log *logger.Logger) error {
	router := httpapi.NewRouter(httpapi.NewHandler(db, quotes, log.With("component", "http")), cfg.MaxUploadBytes(), log)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// choiceFlag collects repeated --choice field=side values.
type choiceFlag map[internal.Field]reconcile.Side

func (c choiceFlag) String() string {
	parts := make([]string, 0, len(c))
	for f, s := range c {
		parts = append(parts, string(f)+"="+string(s))
	}
	return strings.Join(parts, ",")
}

func (c choiceFlag) Set(value string) error {
	name, raw, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("choice %q: want field=side", value)
	}
	field, ok := internal.ParseField(name)
	if !ok {
		return fmt.Errorf("choice %q: unknown field", value)
	}
	side, ok := reconcile.ParseSide(raw)
	if !ok {
		return fmt.Errorf("choice %q: unknown side", value)
	}
	c[field] = side
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(v))
}

func usage() {
	fmt.Println("usage: affidamento <command>")
	fmt.Println("commands:")
	fmt.Println("  registry:import --input=fornitori.xlsx")
	fmt.Println("  registry:export [--out=./out/fornitori.xlsx]")
	fmt.Println("  quote:process --input=preventivo.pdf")
	fmt.Println("  quote:resolve --id=... [--choice=city=extraction ...] [--persistNovel=false]")
	fmt.Println("  quote:cancel --id=...")
	fmt.Println("  quote:review --id=... --out=review.xlsx")
	fmt.Println("  quote:generate --id=... [--form=form.json] [--out=affidamento.docx]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  serve [--addr=:8080]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
