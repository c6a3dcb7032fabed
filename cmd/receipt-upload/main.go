package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-pipeline/internal/client"
	"github.com/zombor/receipt-pipeline/internal/logger"
	"github.com/zombor/receipt-pipeline/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// detectContentType prefers the file extension and falls back to sniffing
func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-upload")
	var (
		server      = fs.StringLong("server", "http://localhost:8080", "Receipt pipeline base URL")
		contentType = fs.StringLong("type", "", "Content type of the file (detected when empty)")
		settle      = fs.DurationLong("wait", client.DefaultSettle, "How long to wait for processing before fetching the latest receipt")
		latestOnly  = fs.BoolLong("latest", "Only print the latest receipt, do not upload")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel    = fs.StringLong("log-level", "warn", "Log level: debug, info, warn or error")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_UPLOAD"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger.Init(logger.Config{Level: *logLevel}, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		BaseURL:  *server,
		Username: *authUser,
		Password: *authPass,
		Settle:   *settle,
	})

	var (
		latest *receipt.Receipt
		err    error
	)
	if *latestOnly {
		latest, err = c.Latest(ctx)
	} else {
		args := fs.GetArgs()
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
			fmt.Fprintln(os.Stderr, "error: exactly one file to upload is required")
			os.Exit(1)
		}
		path := args[0]

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			slog.Error("Failed to read file", "path", path, "error", readErr)
			os.Exit(1)
		}

		ct := *contentType
		if ct == "" {
			ct = detectContentType(path, data)
		}
		latest, err = c.UploadReceipt(ctx, filepath.Base(path), ct, data)
	}
	if err != nil {
		slog.Error("Request failed", "error", err)
		os.Exit(1)
	}

	if latest == nil {
		fmt.Fprintln(os.Stderr, "No receipts found")
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(latest); err != nil {
		slog.Error("Failed to print receipt", "error", err)
		os.Exit(1)
	}
}
