package parser

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/insightdelivered/card-statement-parser/internal/models"
)

// ErrUnknownBank is returned for bank types without a built-in profile.
var ErrUnknownBank = errors.New("unknown bank")

// Parser defines the interface for card statement parsers.
type Parser interface {
	// Parse takes raw text from PDF pages and returns structured statement data.
	Parse(pages []string) (*models.StatementInfo, error)
	// BankName returns the profile name the parser was built from.
	BankName() string
}

// StatementParser runs line reconstruction and transaction extraction over
// every page of a statement.
type StatementParser struct {
	profile   Profile
	extractor blockExplainer
	logger    *log.Logger
}

// blockExplainer decides what one reconstructed block contributes.
type blockExplainer interface {
	Explain(block string) Result
}

// New returns the parser for a built-in bank profile.
func New(bankType models.BankType, logger *log.Logger) (*StatementParser, error) {
	p, err := LookupProfile(bankType)
	if err != nil {
		return nil, err
	}
	return NewWithProfile(p, logger)
}

// LookupProfile returns the built-in profile named by bankType.
func LookupProfile(bankType models.BankType) (Profile, error) {
	for _, p := range Profiles() {
		if p.Name == string(bankType) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownBank, bankType)
}

// NewWithProfile returns a parser for a custom profile.
func NewWithProfile(p Profile, logger *log.Logger) (*StatementParser, error) {
	e, err := NewExtractor(p)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StatementParser{
		profile:   p,
		extractor: e,
		logger:    logger.WithPrefix(p.Name),
	}, nil
}

func (p *StatementParser) BankName() string {
	return p.profile.Name
}

// pageResult is what one page contributes to the statement.
type pageResult struct {
	transactions []models.Transaction
	debug        []models.DebugLine
}

// Parse processes pages concurrently and returns transactions in document order.
func (p *StatementParser) Parse(pages []string) (*models.StatementInfo, error) {
	info := &models.StatementInfo{
		Bank:  models.BankType(p.profile.Name),
		Pages: len(pages),
	}

	results := make([]pageResult, len(pages))
	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		go func(i int, page string) {
			defer wg.Done()
			results[i] = p.parsePage(i+1, page)
		}(i, page)
	}
	wg.Wait()

	for _, r := range results {
		info.Transactions = append(info.Transactions, r.transactions...)
		info.DebugLines = append(info.DebugLines, r.debug...)
	}

	p.logger.Info("parsed statement", "pages", len(pages), "blocks", len(info.DebugLines), "transactions", len(info.Transactions))
	return info, nil
}

func (p *StatementParser) parsePage(pageNum int, page string) pageResult {
	var out pageResult
	for i, block := range Reconstruct(SplitLines(page), DateAnchor) {
		r := p.explain(block)
		line := models.DebugLine{
			Page:   pageNum,
			Block:  i + 1,
			Text:   block,
			Reason: string(r.Reason),
		}
		if r.OK() {
			line.Result = "parsed"
			out.transactions = append(out.transactions, r.Transaction)
		} else {
			line.Result = "discarded"
			p.logger.Debug("discarded block", "page", pageNum, "block", i+1, "reason", r.Reason, "text", block)
		}
		out.debug = append(out.debug, line)
	}
	return out
}

// explain isolates one block so a failure cannot abort the rest of the page.
func (p *StatementParser) explain(block string) (r Result) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("extractor crashed", "block", block, "panic", rec)
			r = Result{Reason: ReasonMalformedBlock}
		}
	}()
	return p.extractor.Explain(block)
}

// Explain exposes the per-block decision for debugging tools.
func (p *StatementParser) Explain(block string) Result {
	return p.explain(block)
}

// AutoDetect tries to identify the issuer from the PDF text content.
// Matching folds case the Turkish way, so "BANKASI" and "Bankası" agree.
func AutoDetect(pages []string) (models.BankType, error) {
	combined := foldCase(strings.Join(pages, "\n"))
	for _, p := range Profiles() {
		for _, marker := range p.Detect {
			if strings.Contains(combined, foldCase(marker)) {
				return models.BankType(p.Name), nil
			}
		}
	}
	return "", fmt.Errorf("%w: could not auto-detect issuer from statement content; please specify --bank", ErrUnknownBank)
}

// foldCase lowers s with Turkish rules, then merges dotless ı into i so text
// cased either way compares equal.
func foldCase(s string) string {
	lower := cases.Lower(language.Turkish).String(s)
	return strings.ReplaceAll(lower, "ı", "i")
}
