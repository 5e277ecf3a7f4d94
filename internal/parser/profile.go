package parser

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/card-statement-parser/internal/models"
)

// Role is what a keyword means when it appears in a transaction block.
type Role string

const (
	// RoleInstallment marks the word printed right after "k/n" on installment rows.
	RoleInstallment Role = "installment"
	// RolePoint marks loyalty points earned, loaded or reversed.
	RolePoint Role = "point"
	// RoleLimit marks a running credit limit or balance total printed inline.
	RoleLimit Role = "limit"
	// RoleBankSuffix is an issuer name printed at the end of descriptions.
	RoleBankSuffix Role = "bank-suffix"
	// RoleMask is a marker used to redact card numbers.
	RoleMask Role = "mask"
)

// DefaultLimitWindow is how far before an amount a limit keyword suppresses it.
const DefaultLimitWindow = 40

// ErrInvalidProfile is returned by Validate and LoadProfile.
var ErrInvalidProfile = errors.New("invalid profile")

// Rule binds a keyword to a role. Window only applies to RoleLimit; zero
// means DefaultLimitWindow.
type Rule struct {
	Keyword string `yaml:"keyword"`
	Role    Role   `yaml:"role"`
	Window  int    `yaml:"window,omitempty"`
}

// Profile is the keyword table and thresholds for one statement issuer.
// Profiles are values: NewExtractor copies what it needs.
type Profile struct {
	Name           string          `yaml:"name"`
	Detect         []string        `yaml:"detect"`
	Rules          []Rule          `yaml:"rules"`
	MaxAmount      decimal.Decimal `yaml:"-"`
	MinPointAmount decimal.Decimal `yaml:"-"`
}

// profileFile is the YAML shape of a profile; amounts are strings so they keep
// their exact decimal value.
type profileFile struct {
	Name           string   `yaml:"name"`
	Detect         []string `yaml:"detect"`
	Rules          []Rule   `yaml:"rules"`
	MaxAmount      string   `yaml:"max_amount"`
	MinPointAmount string   `yaml:"min_point_amount"`
}

// Keywords returns the keywords with the given role, in table order.
func (p Profile) Keywords(role Role) []string {
	var out []string
	for _, r := range p.Rules {
		if r.Role == role {
			out = append(out, r.Keyword)
		}
	}
	return out
}

// Validate checks the profile for unknown roles, blank keywords and bad thresholds.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProfile)
	}
	hasInstallment := false
	for i, r := range p.Rules {
		if r.Keyword == "" {
			return fmt.Errorf("%w: rule %d has no keyword", ErrInvalidProfile, i)
		}
		switch r.Role {
		case RoleInstallment:
			hasInstallment = true
		case RolePoint, RoleBankSuffix, RoleMask:
		case RoleLimit:
			if r.Window < 0 {
				return fmt.Errorf("%w: rule %q has negative window", ErrInvalidProfile, r.Keyword)
			}
		default:
			return fmt.Errorf("%w: rule %q has unknown role %q", ErrInvalidProfile, r.Keyword, r.Role)
		}
	}
	if !hasInstallment {
		return fmt.Errorf("%w: %s has no installment marker", ErrInvalidProfile, p.Name)
	}
	if !p.MaxAmount.IsPositive() {
		return fmt.Errorf("%w: max amount must be positive", ErrInvalidProfile)
	}
	if p.MinPointAmount.IsNegative() {
		return fmt.Errorf("%w: min point amount must not be negative", ErrInvalidProfile)
	}
	return nil
}

// LoadProfile reads a YAML profile. Missing thresholds take the defaults.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Profile{}, fmt.Errorf("failed to parse yaml: %w", err)
	}

	p := Profile{
		Name:           f.Name,
		Detect:         f.Detect,
		Rules:          f.Rules,
		MaxAmount:      defaultMaxAmount,
		MinPointAmount: defaultMinPointAmount,
	}
	if f.MaxAmount != "" {
		if p.MaxAmount, err = ParseAmount(f.MaxAmount); err != nil {
			return Profile{}, fmt.Errorf("%w: max_amount: %v", ErrInvalidProfile, err)
		}
	}
	if f.MinPointAmount != "" {
		if p.MinPointAmount, err = ParseAmount(f.MinPointAmount); err != nil {
			return Profile{}, fmt.Errorf("%w: min_point_amount: %v", ErrInvalidProfile, err)
		}
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

var (
	defaultMaxAmount      = decimal.NewFromInt(50000)
	defaultMinPointAmount = decimal.NewFromInt(1)
)

// IsbankProfile is the İşbank (Maximum card) statement layout.
func IsbankProfile() Profile {
	return Profile{
		Name:   string(models.BankIsbank),
		Detect: []string{"Türkiye İş Bankası", "İş Bankası", "İşbank", "ISBANK", "MAXIMUM KART", "MAXIPUAN", "MAXİPUAN"},
		Rules: []Rule{
			{Keyword: "taksidi", Role: RoleInstallment},
			{Keyword: "TAKSİDİ", Role: RoleInstallment},
			{Keyword: "TAKSIDI", Role: RoleInstallment},

			{Keyword: "MAXIPUANILAVE", Role: RolePoint},
			{Keyword: "KAZANILAN", Role: RolePoint},
			{Keyword: "MAXIPUAN", Role: RolePoint},
			{Keyword: "MAXİPUAN", Role: RolePoint},
			{Keyword: "PUANYÜKLEME", Role: RolePoint},
			{Keyword: "PUANGERİALIM", Role: RolePoint},

			{Keyword: "Müşteri", Role: RoleLimit, Window: DefaultLimitWindow},
			{Keyword: "TOPLAM", Role: RoleLimit, Window: DefaultLimitWindow},
			{Keyword: "Limit", Role: RoleLimit, Window: DefaultLimitWindow},
			{Keyword: "BORÇTOPLAMI", Role: RoleLimit, Window: DefaultLimitWindow},

			{Keyword: "TÜRKİYEİŞBANKASI", Role: RoleBankSuffix},
			{Keyword: "İŞBANKASI", Role: RoleBankSuffix},
			{Keyword: "ISBANK", Role: RoleBankSuffix},

			{Keyword: "***", Role: RoleMask},
		},
		MaxAmount:      defaultMaxAmount,
		MinPointAmount: defaultMinPointAmount,
	}
}

// GenericProfile is an English-language layout for issuers without their own profile.
func GenericProfile() Profile {
	return Profile{
		Name:   string(models.BankGeneric),
		Detect: []string{"POINTS-EARNED", "Customer Limit", "Total Debt"},
		Rules: []Rule{
			{Keyword: "INSTALLMENT", Role: RoleInstallment},

			{Keyword: "POINTS-EARNED", Role: RolePoint},
			{Keyword: "POINT-LOAD", Role: RolePoint},
			{Keyword: "POINT-REVERSAL", Role: RolePoint},

			{Keyword: "Customer Limit", Role: RoleLimit, Window: DefaultLimitWindow},
			{Keyword: "Total Debt", Role: RoleLimit, Window: DefaultLimitWindow},
			{Keyword: "Limit", Role: RoleLimit, Window: DefaultLimitWindow},

			{Keyword: "***", Role: RoleMask},
		},
		MaxAmount:      defaultMaxAmount,
		MinPointAmount: defaultMinPointAmount,
	}
}

// Profiles returns the built-in profiles in auto-detection order.
func Profiles() []Profile {
	return []Profile{IsbankProfile(), GenericProfile()}
}
