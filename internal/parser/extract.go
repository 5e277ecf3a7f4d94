package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/card-statement-parser/internal/models"
)

// amountExpr is the statement amount grammar: 1-3 digits, optional groups of
// three behind '.' or ',', then a two-digit fraction behind '.' or ','.
const amountExpr = `-?\d{1,3}(?:[.,]\d{3})*[.,]\d{2}`

var (
	blockPattern  = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s*(.*)$`)
	amountPattern = regexp.MustCompile(amountExpr)
)

// Reason explains why a block was kept or discarded.
type Reason string

const (
	ReasonParsed              Reason = "parsed"
	ReasonInstallment         Reason = "installment"
	ReasonMalformedBlock      Reason = "malformed-block"
	ReasonNoCandidate         Reason = "no-candidate"
	ReasonLimitSuppressed     Reason = "limit-suppressed"
	ReasonMagnitudeSuppressed Reason = "magnitude-suppressed"
	ReasonPointOnly           Reason = "point-only"
	ReasonDecodeFailure       Reason = "decode-failure"
)

// Result is the outcome of extracting one block.
type Result struct {
	Transaction models.Transaction
	Reason      Reason
}

// OK reports whether the block produced a transaction.
func (r Result) OK() bool {
	return r.Reason == ReasonParsed || r.Reason == ReasonInstallment
}

// token is an amount-shaped substring of a block.
type token struct {
	value  decimal.Decimal
	offset int
}

type limitRule struct {
	keyword string
	window  int
}

// Extractor turns transaction blocks into transactions. It is immutable after
// construction and safe for concurrent use.
type Extractor struct {
	installment *regexp.Regexp
	points      []string
	limits      []limitRule
	suffixes    []string
	masks       []string
	maxAmount   decimal.Decimal
	minPoint    decimal.Decimal
}

// NewExtractor compiles the keyword table of a profile.
func NewExtractor(p Profile) (*Extractor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	markers := p.Keywords(RoleInstallment)
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	installment, err := regexp.Compile(`(` + amountExpr + `)\s+\d{1,3}/\d{1,3}(?:` + strings.Join(quoted, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile installment pattern for %s: %w", p.Name, err)
	}

	e := &Extractor{
		installment: installment,
		points:      p.Keywords(RolePoint),
		suffixes:    p.Keywords(RoleBankSuffix),
		masks:       p.Keywords(RoleMask),
		maxAmount:   p.MaxAmount,
		minPoint:    p.MinPointAmount,
	}
	for _, r := range p.Rules {
		if r.Role != RoleLimit {
			continue
		}
		window := r.Window
		if window == 0 {
			window = DefaultLimitWindow
		}
		e.limits = append(e.limits, limitRule{keyword: r.Keyword, window: window})
	}
	return e, nil
}

// Extract returns the transaction of a block, or false when the block is not
// a transaction.
func (e *Extractor) Extract(block string) (models.Transaction, bool) {
	r := e.Explain(block)
	return r.Transaction, r.OK()
}

// Explain runs the extraction and reports the decision taken for the block.
func (e *Extractor) Explain(block string) Result {
	m := blockPattern.FindStringSubmatch(block)
	if m == nil {
		return Result{Reason: ReasonMalformedBlock}
	}
	date, rest := m[1], m[2]

	// Installment rows carry exactly one authoritative amount.
	if loc := e.installment.FindStringSubmatchIndex(rest); loc != nil {
		amount, err := ParseAmount(rest[loc[2]:loc[3]])
		if err != nil {
			return Result{Reason: ReasonDecodeFailure}
		}
		return Result{
			Transaction: models.Transaction{
				Date:        date,
				Description: strings.TrimSpace(rest[:loc[2]]),
				Amount:      amount,
			},
			Reason: ReasonInstallment,
		}
	}

	tokens, err := harvest(rest)
	if err != nil {
		return Result{Reason: ReasonDecodeFailure}
	}
	if len(tokens) == 0 {
		return Result{Reason: ReasonNoCandidate}
	}

	candidates := e.dropLimits(rest, tokens)
	if len(candidates) == 0 {
		return Result{Reason: ReasonLimitSuppressed}
	}

	candidates = e.dropImplausible(candidates)
	if len(candidates) == 0 {
		return Result{Reason: ReasonMagnitudeSuppressed}
	}

	var chosen token
	var description string
	if kw := e.firstPoint(rest); kw < 0 {
		chosen = candidates[0]
		description = rest[:chosen.offset]
	} else {
		values := e.realValues(candidates)
		if len(values) == 0 {
			return Result{Reason: ReasonPointOnly}
		}
		chosen = largest(values)
		description = e.stripPoints(rest[:kw])
	}

	return Result{
		Transaction: models.Transaction{
			Date:        date,
			Description: e.cleanDescription(description),
			Amount:      chosen.value,
		},
		Reason: ReasonParsed,
	}
}

// harvest finds every amount token of rest in offset order.
func harvest(rest string) ([]token, error) {
	locs := amountPattern.FindAllStringIndex(rest, -1)
	tokens := make([]token, 0, len(locs))
	for _, loc := range locs {
		v, err := ParseAmount(rest[loc[0]:loc[1]])
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token{value: v, offset: loc[0]})
	}
	return tokens, nil
}

// dropLimits removes tokens printed shortly after a limit or total keyword.
func (e *Extractor) dropLimits(rest string, tokens []token) []token {
	var out []token
	for _, t := range tokens {
		if !e.nearLimit(rest, t.offset) {
			out = append(out, t)
		}
	}
	return out
}

func (e *Extractor) nearLimit(rest string, offset int) bool {
	before := rest[:offset]
	for _, l := range e.limits {
		pos := strings.LastIndex(before, l.keyword)
		if pos < 0 {
			continue
		}
		if utf8.RuneCountInString(before[pos:]) < l.window {
			return true
		}
	}
	return false
}

// dropImplausible removes amounts above the ceiling; those are statement totals.
func (e *Extractor) dropImplausible(tokens []token) []token {
	var out []token
	for _, t := range tokens {
		if t.value.Abs().LessThanOrEqual(e.maxAmount) {
			out = append(out, t)
		}
	}
	return out
}

// realValues drops sub-unit amounts, which are point increments on point rows.
func (e *Extractor) realValues(tokens []token) []token {
	var out []token
	for _, t := range tokens {
		if t.value.Abs().GreaterThanOrEqual(e.minPoint) {
			out = append(out, t)
		}
	}
	return out
}

// largest returns the token with the greatest absolute value, the earliest on ties.
func largest(tokens []token) token {
	best := tokens[0]
	for _, t := range tokens[1:] {
		if t.value.Abs().GreaterThan(best.value.Abs()) {
			best = t
		}
	}
	return best
}

// firstPoint returns the offset of the earliest point keyword in rest, or -1.
func (e *Extractor) firstPoint(rest string) int {
	first := -1
	for _, kw := range e.points {
		if pos := strings.Index(rest, kw); pos >= 0 && (first < 0 || pos < first) {
			first = pos
		}
	}
	return first
}

func (e *Extractor) stripPoints(s string) string {
	for _, kw := range e.points {
		s = strings.ReplaceAll(s, kw, "")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, ":"))
}

// cleanDescription cuts redacted card numbers and the issuer suffix.
func (e *Extractor) cleanDescription(s string) string {
	for _, mask := range e.masks {
		if pos := strings.Index(s, mask); pos >= 0 {
			s = s[:pos]
		}
	}
	s = strings.TrimSpace(s)
	for _, suffix := range e.suffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	return s
}
