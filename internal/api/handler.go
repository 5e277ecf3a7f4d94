package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/card-statement-parser/internal/extractor"
	"github.com/insightdelivered/card-statement-parser/internal/models"
	"github.com/insightdelivered/card-statement-parser/internal/parser"
)

// PageSeparator splits client-side extracted text into pages.
const PageSeparator = "\n---PAGE_BREAK---\n"

// ExtractResponse is the JSON response from the /api/extract endpoint.
type ExtractResponse struct {
	Success      bool                 `json:"success"`
	Error        string               `json:"error,omitempty"`
	Bank         string               `json:"bank,omitempty"`
	Transactions []models.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
	TotalAmount  json.Number          `json:"totalAmount"`
	Version      string               `json:"version,omitempty"`
	DebugLines   []models.DebugLine   `json:"debugLines,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Version string
	Logger  *log.Logger
	// Profile, when set, replaces the bank lookup for every request.
	Profile *parser.Profile
	// MaxAmount, when positive, overrides the profile's amount ceiling.
	MaxAmount decimal.Decimal
	// ExtractText reads uploaded PDFs. Defaults to extractor.ExtractText.
	ExtractText func(path string) ([]string, error)
}

// NewApp builds a fiber app with the API routes registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "card-statement-parser",
		DisableStartupMessage: true,
		BodyLimit:             32 << 20,
	})
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, GET, OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/extract", h.HandleExtract)
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": h.Version,
		"engine":  "fiber",
	})
}

func (h *Handler) HandleExtract(c *fiber.Ctx) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger().Error("extract handler crashed", "panic", rec)
			err = writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("Internal server error (recovered from crash): %v", rec))
		}
	}()

	pages := splitPages(c.FormValue("extractedText"))

	if len(pages) == 0 {
		header, ferr := c.FormFile("file")
		if ferr != nil {
			return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form field 'file' or 'extractedText'.")
		}
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			return writeError(c, fiber.StatusBadRequest, "Only PDF files are supported.")
		}

		dir, derr := os.MkdirTemp("", "statement-*")
		if derr != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to create temp file.")
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "upload.pdf")
		if serr := c.SaveFile(header, path); serr != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to save uploaded file.")
		}

		extracted, xerr := h.extractText(path)
		if xerr != nil {
			h.logger().Warn("pdf extraction failed", "file", header.Filename, "err", xerr)
			return writeError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("PDF extraction failed: %v", xerr))
		}
		pages = extracted
	}

	p, perr := h.parserFor(c.FormValue("bank"), pages)
	if perr != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(perr, parser.ErrUnknownBank) {
			status = fiber.StatusBadRequest
			if c.FormValue("bank") == "" {
				status = fiber.StatusUnprocessableEntity
			}
		}
		return writeError(c, status, perr.Error())
	}

	info, perr := p.Parse(pages)
	if perr != nil {
		return writeError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("Parsing failed: %v", perr))
	}

	// nil marshals to null, not []
	txns := info.Transactions
	if txns == nil {
		txns = []models.Transaction{}
	}

	return c.JSON(ExtractResponse{
		Success:      true,
		Bank:         p.BankName(),
		Transactions: txns,
		Count:        len(txns),
		TotalAmount:  json.Number(info.Total().StringFixed(2)),
		Version:      h.Version,
		DebugLines:   info.DebugLines,
	})
}

func (h *Handler) parserFor(bank string, pages []string) (*parser.StatementParser, error) {
	var profile parser.Profile
	if h.Profile != nil {
		profile = *h.Profile
	} else {
		bankType := models.BankType(strings.ToLower(strings.TrimSpace(bank)))
		if bankType == "" {
			detected, err := parser.AutoDetect(pages)
			if err != nil {
				return nil, err
			}
			bankType = detected
		}
		p, err := parser.LookupProfile(bankType)
		if err != nil {
			return nil, err
		}
		profile = p
	}
	if h.MaxAmount.IsPositive() {
		profile.MaxAmount = h.MaxAmount
	}
	return parser.NewWithProfile(profile, h.logger())
}

func (h *Handler) extractText(path string) ([]string, error) {
	if h.ExtractText != nil {
		return h.ExtractText(path)
	}
	return extractor.ExtractText(path)
}

func (h *Handler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

func splitPages(text string) []string {
	var pages []string
	for _, page := range strings.Split(text, PageSeparator) {
		if page = strings.TrimSpace(page); page != "" {
			pages = append(pages, page)
		}
	}
	return pages
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ExtractResponse{
		Success: false,
		Error:   msg,
	})
}
