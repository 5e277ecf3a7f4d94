package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/card-statement-parser/internal/api"
	"github.com/insightdelivered/card-statement-parser/internal/config"
	"github.com/insightdelivered/card-statement-parser/internal/extractor"
	"github.com/insightdelivered/card-statement-parser/internal/logging"
	"github.com/insightdelivered/card-statement-parser/internal/models"
	"github.com/insightdelivered/card-statement-parser/internal/parser"
	"github.com/insightdelivered/card-statement-parser/internal/writer"
)

const version = "1.0.0"

var (
	cliFilters filters
	cfgFile    string
	trace      bool
)

var rootCmd = &cobra.Command{
	Use:   "statement-parser [flags] <statement.pdf>",
	Short: "Extract card statement transactions from a PDF",
	Long: `Card Statement PDF Transaction Extractor

Reconstructs wrapped statement lines and extracts dated transactions
(date, description, signed amount) from credit-card statement PDFs.

Supported profiles:
  isbank   - Türkiye İş Bankası Maximum card
  generic  - English-labelled statements
A custom keyword profile can be loaded with --profile.`,
	Version: version,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger := logging.New(cfg.LogLevel, "statement-parser")

		keep, err := cliFilters.toFilterFunc()
		if err != nil {
			return err
		}

		input := args[0]
		info := &models.StatementInfo{Source: filepath.Base(input)}

		pages, err := extractor.ExtractText(input)
		if err != nil {
			logger.Error("failed to read statement", "file", input, "err", err)
			return emit(cmd.OutOrStdout(), cfg, info)
		}

		p, err := newParser(cfg, pages, logger)
		if err != nil {
			return err
		}

		parsed, err := p.Parse(pages)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", input, err)
		}
		parsed.Source = info.Source
		parsed.Transactions = apply(parsed.Transactions, keep)

		if trace {
			printTrace(cmd.ErrOrStderr(), parsed.DebugLines)
		}

		if err := emit(cmd.OutOrStdout(), cfg, parsed); err != nil {
			return err
		}
		if cfg.Output != "" {
			logger.Info("wrote transactions", "count", len(parsed.Transactions), "total", parsed.Total().StringFixed(2), "output", cfg.Output)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP extraction API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger := logging.New(cfg.LogLevel, "statement-parser")

		h := &api.Handler{Version: version, Logger: logger}
		if cfg.Profile != "" || cfg.Bank != "" {
			// the bank form field is ignored once a profile is fixed
			profile, err := resolveProfile(cfg, nil)
			if err != nil {
				return err
			}
			h.Profile = &profile
		} else if cfg.MaxAmount != "" {
			if h.MaxAmount, err = parseCeiling(cfg.MaxAmount); err != nil {
				return err
			}
		}

		logger.Info("listening", "addr", cfg.Addr)
		return api.NewApp(h).Listen(cfg.Addr)
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks <statement.pdf>",
	Short: "Print reconstructed blocks and the decision taken for each",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger := logging.New(cfg.LogLevel, "statement-parser")

		pages, err := extractor.ExtractText(args[0])
		if err != nil {
			return err
		}
		p, err := newParser(cfg, pages, logger)
		if err != nil {
			return err
		}

		printer := pp.New()
		printer.SetOutput(cmd.OutOrStdout())
		for i, page := range pages {
			for j, block := range parser.Reconstruct(parser.SplitLines(page), parser.DateAnchor) {
				r := p.Explain(block)
				entry := blockEntry{Page: i + 1, Block: j + 1, Text: block, Reason: r.Reason}
				if r.OK() {
					entry.Date = r.Transaction.Date
					entry.Description = r.Transaction.Description
					entry.Amount = r.Transaction.Amount.StringFixed(2)
				}
				printer.Println(entry)
			}
		}
		return nil
	},
}

// blockEntry is one line of the blocks dump.
type blockEntry struct {
	Page        int
	Block       int
	Text        string
	Reason      parser.Reason
	Date        string
	Description string
	Amount      string
}

// newParser builds the parser for the configured profile or bank, falling
// back to auto-detection from the page text.
func newParser(cfg *config.Config, pages []string, logger *log.Logger) (*parser.StatementParser, error) {
	profile, err := resolveProfile(cfg, pages)
	if err != nil {
		return nil, err
	}
	return parser.NewWithProfile(profile, logger)
}

func resolveProfile(cfg *config.Config, pages []string) (parser.Profile, error) {
	var profile parser.Profile
	var err error
	switch {
	case cfg.Profile != "":
		profile, err = parser.LoadProfile(cfg.Profile)
	case cfg.Bank != "":
		profile, err = parser.LookupProfile(models.BankType(cfg.Bank))
	default:
		var detected models.BankType
		if detected, err = parser.AutoDetect(pages); err == nil {
			profile, err = parser.LookupProfile(detected)
		}
	}
	if err != nil {
		return parser.Profile{}, err
	}

	if cfg.MaxAmount != "" {
		if profile.MaxAmount, err = parseCeiling(cfg.MaxAmount); err != nil {
			return parser.Profile{}, err
		}
	}
	return profile, nil
}

func parseCeiling(s string) (decimal.Decimal, error) {
	ceiling, err := decimal.NewFromString(s)
	if err != nil || !ceiling.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid max amount %q", s)
	}
	return ceiling, nil
}

func emit(out io.Writer, cfg *config.Config, info *models.StatementInfo) error {
	var w writer.Writer = &writer.JSONWriter{Indent: true}
	if cfg.Format == "csv" {
		w = &writer.CSVWriter{IncludeHeader: true}
	}
	if cfg.Output != "" {
		return writer.WriteToFile(w, cfg.Output, info)
	}
	return w.Write(out, info)
}

func printTrace(out io.Writer, lines []models.DebugLine) {
	for _, d := range lines {
		fmt.Fprintf(out, "p%d b%-3d %-9s %-20s %s\n", d.Page, d.Block, d.Result, d.Reason, d.Text)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is statement-parser.yaml)")
	rootCmd.PersistentFlags().String("bank", "", "Bank profile: isbank, generic (auto-detected if omitted)")
	rootCmd.PersistentFlags().String("profile", "", "YAML keyword profile (overrides --bank)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("max-amount", "", "Override the implausible-amount ceiling")

	rootCmd.Flags().StringP("format", "f", "json", "Output format: json or csv")
	rootCmd.Flags().StringP("output", "o", "", "Output file path (defaults to stdout)")
	rootCmd.Flags().BoolVar(&trace, "trace", false, "Print the per-block decisions to stderr")

	// Filter flags
	rootCmd.Flags().StringVar(&cliFilters.startDate, "start", "", "Start date (DD/MM/YYYY)")
	rootCmd.Flags().StringVar(&cliFilters.endDate, "end", "", "End date (DD/MM/YYYY)")
	rootCmd.Flags().Float64Var(&cliFilters.minAmount, "min", 0, "Minimum amount")
	rootCmd.Flags().Float64Var(&cliFilters.maxAmount, "max", 0, "Maximum amount")
	rootCmd.Flags().StringVar(&cliFilters.payee, "payee", "", "Filter by description (case insensitive)")

	serveCmd.Flags().String("addr", ":8080", "Listen address")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(blocksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
