package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-pipeline/internal/logger"
	"github.com/zombor/receipt-pipeline/internal/receipt"
	"github.com/zombor/receipt-pipeline/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const (
	defaultTable   = "ReceiptsTable"
	defaultAddress = "receipts@example.com"
)

// firstNonEmpty returns the first non-empty value. Used for settings that
// also honour the un-prefixed environment names of the hosted deployment.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A .env file is optional; real environment variables win
	for _, envFile := range []string{".env", "../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	fs := ff.NewFlagSet("receipt-pipeline")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		logLevel     = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat    = fs.StringLong("log-format", "text", "Log format: text or json")
		storeType    = fs.StringLong("store", "bolt", "Record store: 'bolt', 'postgres' or 'dynamodb'")
		dbPath       = fs.StringLong("db", "receipts.db", "Bolt database file path")
		postgresDSN  = fs.StringLong("postgres-dsn", "", "Postgres connection string")
		table        = fs.StringLong("table", "", "Record table name (or set TABLE_NAME env var)")
		analyzerType = fs.StringLong("analyzer", "textract", "Document analyzer: 'textract', 'gemini' or 'ollama'")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		s3Endpoint   = fs.StringLong("s3-endpoint", "s3.amazonaws.com", "S3 or MinIO endpoint (host[:port])")
		s3Insecure   = fs.BoolLong("s3-insecure", "Connect to the S3 endpoint without TLS")
		region       = fs.StringLong("region", "us-east-1", "AWS region")
		accessKey    = fs.StringLong("s3-access-key", "", "S3 access key (defaults to the AWS credential chain)")
		secretKey    = fs.StringLong("s3-secret-key", "", "S3 secret key")
		bucket       = fs.StringLong("bucket", "pro-receipts", "Bucket receiving uploads")
		prefix       = fs.StringLong("upload-prefix", receipt.DefaultUploadPrefix, "Key prefix for uploaded receipts")
		listen       = fs.BoolLong("listen", "Subscribe to MinIO bucket notifications instead of relying on webhooks")
		mailerType   = fs.StringLong("mailer", "ses", "Notification mailer: 'ses' or 'log'")
		sender       = fs.StringLong("sender", "", "Notification sender (or set SENDER_EMAIL env var)")
		recipient    = fs.StringLong("recipient", "", "Notification recipient (or set RECIPIENT_EMAIL env var)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_PIPELINE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger.Init(logger.Config{Level: *logLevel, Format: *logFormat}, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tableName := firstNonEmpty(*table, os.Getenv("TABLE_NAME"), defaultTable)
	senderAddr := firstNonEmpty(*sender, os.Getenv("SENDER_EMAIL"), defaultAddress)
	recipientAddr := firstNonEmpty(*recipient, os.Getenv("RECIPIENT_EMAIL"), defaultAddress)

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(*region))
	if err != nil {
		slog.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Initialize content store
	slog.Info("Initializing object store...", "endpoint", *s3Endpoint, "bucket", *bucket)
	objects, err := receipt.NewObjectStore(receipt.ObjectStoreConfig{
		Endpoint:  *s3Endpoint,
		Region:    *region,
		AccessKey: *accessKey,
		SecretKey: *secretKey,
		Bucket:    *bucket,
		UseSSL:    !*s3Insecure,
	})
	if err != nil {
		slog.Error("Failed to initialize object store", "error", err)
		os.Exit(1)
	}

	// Initialize record table based on type
	slog.Info("Initializing record store...", "store", *storeType, "table", tableName)
	var db receipt.Table
	switch *storeType {
	case "bolt":
		db, err = receipt.NewBoltDB(*dbPath, tableName)
	case "postgres":
		if *postgresDSN == "" {
			slog.Error("Postgres DSN is required. Set --postgres-dsn flag or RECEIPT_PIPELINE_POSTGRES_DSN environment variable")
			os.Exit(1)
		}
		db, err = receipt.NewPostgresDB(ctx, *postgresDSN, tableName)
	case "dynamodb":
		db = receipt.NewDynamoDB(awsCfg, tableName)
	default:
		slog.Error("Invalid store type", "type", *storeType, "valid", "bolt, postgres or dynamodb")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize record store", "error", err)
		os.Exit(1)
	}
	records := receipt.NewRecordStore(db)
	defer records.Close()

	// Initialize analyzer based on type
	var analyzer scanning.Analyzer
	switch *analyzerType {
	case "textract":
		slog.Info("Initializing Textract analyzer...", "region", *region)
		analyzer = scanning.NewTextract(awsCfg)
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY"))
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini analyzer...", "model", *geminiModel)
		analyzer, err = scanning.NewGemini(apiKey, *geminiModel, objects)
	case "ollama":
		slog.Info("Initializing Ollama analyzer...", "url", *ollamaURL, "model", *ollamaModel)
		analyzer, err = scanning.NewOllama(*ollamaURL, *ollamaModel, objects)
	default:
		slog.Error("Invalid analyzer type", "type", *analyzerType, "valid", "textract, gemini or ollama")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize analyzer", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	var mailer receipt.Mailer
	switch *mailerType {
	case "ses":
		mailer = receipt.NewSESMailer(awsCfg)
	case "log":
		mailer = receipt.LogMailer{}
	default:
		slog.Error("Invalid mailer type", "type", *mailerType, "valid", "ses or log")
		os.Exit(1)
	}

	pipeline := receipt.NewPipeline(
		analyzer,
		receipt.NewNormalizer(),
		records,
		receipt.NewNotifier(mailer, senderAddr, recipientAddr),
	)

	if *listen {
		listener := receipt.NewListener(objects, pipeline, *prefix)
		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Listener stopped", "error", err)
			}
		}()
	}

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receipt.NewCredentialIssuer(objects, *prefix), records, pipeline, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
