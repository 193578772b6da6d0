package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manasetna/exams/internal/auth"
	"github.com/manasetna/exams/internal/catalog"
	"github.com/manasetna/exams/internal/handler"
	appI18n "github.com/manasetna/exams/internal/i18n"
	"github.com/manasetna/exams/internal/llm"
	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/session"
	"github.com/manasetna/exams/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "manasetna",
		Short: "Timed multiple-choice exams for school grades",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `manasetna --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "manasetna.db", "SQLite database path")
	f.StringP("lang", "l", "ar", "Default message language (ar, en)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.StringSlice("cors-origins", nil, "Browser origins allowed to call the API (repeatable)")
	f.StringSliceP("exams", "e", nil, "Exam JSON files to import at startup (repeatable)")
	f.String("admin-password", "", "Create the admin account with this password if it does not exist (or set MANASETNA_ADMIN_PASSWORD)")
	f.String("llm-url", "", "OpenAI-compatible API base URL; empty disables explanations")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON or CSV",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "manasetna.db", "SQLite database path")
	f.String("format", "json", "Output format (json, csv)")
	f.String("grade", "", "Only export results for this grade")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MANASETNA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("manasetna")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/manasetna")
	v.AddConfigPath("/etc/manasetna")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if n, err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired logins", "error", err)
	} else if n > 0 {
		slog.Info("removed expired logins", "count", n)
	}

	authSvc := auth.New(db, 0)
	if err := seedAdmin(authSvc, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	exams := catalog.New(db)
	if err := importExams(exams, v.GetStringSlice("exams")); err != nil {
		return fmt.Errorf("import exams: %w", err)
	}

	var llmClient *llm.Client
	if url := v.GetString("llm-url"); url != "" {
		llmClient, err = llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"))
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		slog.Info("explanations enabled", "url", url, "model", v.GetString("llm-model"))
	}

	engine := session.New(db, exams)
	defer engine.Close()

	h := handler.New(db, authSvc, exams, engine, llmClient, handler.Config{
		SecureCookies: v.GetBool("secure-cookies"),
		CORSOrigins:   v.GetStringSlice("cors-origins"),
	})

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"db", v.GetString("db"),
			"lang", lang,
			"secure_cookies", v.GetBool("secure-cookies"),
			"llm", llmClient != nil,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedAdmin registers the reserved admin account once, when a password is
// configured and the account does not exist yet.
func seedAdmin(a *auth.Service, db *store.Store, password string) error {
	if password == "" {
		return nil
	}
	existing, err := db.UserByUsername(auth.AdminUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if _, err := a.Register(auth.AdminUsername, password, ""); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	slog.Info("seeded admin user", "username", auth.AdminUsername)
	return nil
}

// importExams loads exam files named on the command line. Files already
// imported with the same content are skipped.
func importExams(c *catalog.Catalog, paths []string) error {
	author := model.User{ID: "import", Username: auth.AdminUsername, Role: model.RoleAdmin}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := c.Import(author, path, data); err != nil {
			if errors.Is(err, catalog.ErrAlreadyImported) {
				slog.Info("exam file unchanged, skipping", "path", path)
				continue
			}
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	format := strings.ToLower(v.GetString("format"))
	if format != "json" && format != "csv" {
		return fmt.Errorf("unknown format %q (want json or csv)", format)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportResults(v.GetString("grade"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return writeCSV(w, export.Results)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	slog.Info("exported results", "count", len(export.Results), "format", format)
	return nil
}

// writeCSV writes one row per result with the Arabic column headers the
// school spreadsheets expect. The byte order mark lets spreadsheet tools
// detect UTF-8.
func writeCSV(w io.Writer, results []model.ExamResult) error {
	if _, err := io.WriteString(w, "\uFEFF"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"الطالب", "الامتحان", "الصف", "الدرجة", "التاريخ"})
	for _, r := range results {
		_ = cw.Write([]string{
			r.Username,
			r.ExamName,
			r.Grade,
			strconv.Itoa(r.Score) + "/" + strconv.Itoa(model.MaxScore),
			r.CompletedAt.Format(time.DateOnly),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
