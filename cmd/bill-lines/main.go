package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/bill-lines/internal/extraction"
	"github.com/zombor/bill-lines/internal/receipt"
	"github.com/zombor/bill-lines/internal/scanning"
	"github.com/zombor/bill-lines/internal/scanning/tesseract"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	defaults := extraction.DefaultConfig()

	fs := ff.NewFlagSet("bill-lines")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "bill-lines.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./uploads", "Storage directory path")
		_               = fs.StringLong("config", "", "Config file (one 'flag value' per line)")
		ocrLangs        = fs.StringLong("ocr-lang", "eng", "Tesseract languages, comma separated")
		classifierType  = fs.StringLong("classifier", "http", "Token classifier: 'http' or 'gemini'")
		classifierURL   = fs.StringLong("classifier-url", "http://localhost:8500", "Token classification server base URL")
		classifierModel = fs.StringLong("classifier-model", "nielsr/layoutlmv3-finetuned-cord", "Token classification model name")
		classifierWait  = fs.DurationLong("classifier-timeout", 0, "Token classification request timeout (0 uses the default)")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		rowThreshold    = fs.Float64Long("row-threshold", defaults.RowThreshold, "Max vertical gap between tokens of one row (0-1000 grid)")
		serialMaxX      = fs.IntLong("serial-max-x", defaults.SerialMaxX, "Integers left of this x are serial numbers")
		qtyMinX         = fs.IntLong("qty-min-x", defaults.QuantityMinX, "Left edge of the unlabelled quantity column")
		qtyMaxX         = fs.IntLong("qty-max-x", defaults.QuantityMaxX, "Right edge of the unlabelled quantity column")
		maxQty          = fs.Float64Long("max-qty", defaults.MaxQuantity, "Quantities at or above this are ignored")
		taxGapRatio     = fs.Float64Long("tax-gap-ratio", defaults.TaxGapRatio, "Max total-subtotal gap, as a share of subtotal, inferred as tax")
		headerKeywords  = fs.StringLong("header-keywords", strings.Join(defaults.HeaderKeywords, ","), "Keywords marking table header rows, comma separated")
		categoryMarker  = fs.StringLong("category-total-marker", defaults.CategoryTotalMarker, "Row text marking a category total")
		maxDimension    = fs.IntLong("max-dimension", scanning.DefaultMaxDimension, "Downsize pages larger than this many pixels (0 disables)")
		serialize       = fs.BoolLong("serialize-inference", "Allow only one classification at a time")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILL_LINES"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
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

	cfg := extraction.Config{
		RowThreshold:        *rowThreshold,
		SerialMaxX:          *serialMaxX,
		QuantityMinX:        *qtyMinX,
		QuantityMaxX:        *qtyMaxX,
		MaxQuantity:         *maxQty,
		TaxGapRatio:         *taxGapRatio,
		HeaderKeywords:      splitList(*headerKeywords),
		CategoryTotalMarker: *categoryMarker,
		Labels:              defaults.Labels,
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize classifier based on type
	var classifier scanning.Classifier
	switch *classifierType {
	case "http":
		slog.Info("Initializing HTTP classifier...", "url", *classifierURL, "model", *classifierModel)
		classifier, err = scanning.NewHTTPClassifier(*classifierURL, *classifierModel, *classifierWait)
		if err != nil {
			slog.Error("Failed to initialize HTTP classifier", "error", err)
			os.Exit(1)
		}
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini classifier...", "model", *geminiModel)
		classifier, err = scanning.NewGeminiClassifier(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid classifier type", "type", *classifierType, "valid", "http or gemini")
		os.Exit(1)
	}
	defer classifier.Close()

	var tokenClassifier extraction.Classifier = classifier
	if *serialize {
		tokenClassifier = extraction.Serialized(classifier)
	}

	// Initialize extraction engine
	engine := extraction.NewEngine(
		cfg,
		scanning.NewConverter(*maxDimension),
		tesseract.NewEngine(splitList(*ocrLangs)...),
		tokenClassifier,
	)

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	receiptService := receipt.NewService(db, engine, store)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// splitList splits a comma separated flag value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
