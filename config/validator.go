package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/robfig/cron/v3"
)

var modelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*[a-zA-Z0-9]$`)

// ValidatorFunc checks one field value.
type ValidatorFunc func(value any) *ValidationResult

type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type ValidationReport struct {
	Valid        bool                         `json:"valid"`
	OverallScore float64                      `json:"overall_score"`
	Results      map[string]*ValidationResult `json:"results"`
	Summary      ValidationSummary            `json:"summary"`
	Timestamp    time.Time                    `json:"timestamp"`
}

type ValidationSummary struct {
	TotalFields   int `json:"total_fields"`
	ValidFields   int `json:"valid_fields"`
	InvalidFields int `json:"invalid_fields"`
	WarningFields int `json:"warning_fields"`
	TotalErrors   int `json:"total_errors"`
	TotalWarnings int `json:"total_warnings"`
}

// Validator runs named field validators over a Config and scores the result.
type Validator struct {
	validators map[string]ValidatorFunc
	logger     *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	v := &Validator{validators: map[string]ValidatorFunc{}, logger: logger.With("component", "config-validator")}
	v.registerBuiltinValidators()
	return v
}

func fail(msg string) *ValidationResult { return &ValidationResult{Valid: false, Errors: []string{msg}} }
func ok() *ValidationResult            { return &ValidationResult{Valid: true} }

func (v *Validator) registerBuiltinValidators() {
	v.validators["api_key"] = func(value any) *ValidationResult {
		str := strings.TrimSpace(fmt.Sprint(value))
		if str == "" {
			return fail("API key must not be empty")
		}
		if len(str) < 10 {
			return &ValidationResult{Valid: false, Errors: []string{"API key is shorter than 10 characters"}}
		}
		lower := strings.ToLower(str)
		for _, placeholder := range []string{"your-api-key", "placeholder", "example"} {
			if strings.Contains(lower, placeholder) {
				return &ValidationResult{Valid: false, Errors: []string{"API key contains placeholder text"}, Warnings: []string{"use a real API key"}}
			}
		}
		return ok()
	}

	v.validators["url"] = func(value any) *ValidationResult {
		str := strings.TrimSpace(fmt.Sprint(value))
		if str == "" {
			return fail("URL must not be empty")
		}
		u, err := url.Parse(str)
		if err != nil {
			return fail(fmt.Sprintf("invalid URL: %v", err))
		}
		if u.Scheme == "" {
			return fail("URL must include a scheme (http:// or https://)")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return &ValidationResult{Valid: true, Warnings: []string{"HTTP or HTTPS is recommended"}}
		}
		return ok()
	}

	v.validators["model_name"] = func(value any) *ValidationResult {
		str := strings.TrimSpace(fmt.Sprint(value))
		if str == "" {
			return fail("model name must not be empty")
		}
		if !modelNamePattern.MatchString(str) {
			return fail("model name may only contain letters, digits, dots, slashes, underscores and hyphens")
		}
		return ok()
	}

	v.validators["database_url"] = func(value any) *ValidationResult {
		str := strings.TrimSpace(fmt.Sprint(value))
		if str == "" {
			return &ValidationResult{Valid: true, Warnings: []string{"no database URL, the local default is used"}}
		}
		if !strings.HasPrefix(str, "postgres://") && !strings.HasPrefix(str, "postgresql://") {
			return fail("database URL must start with postgres:// or postgresql://")
		}
		u, err := url.Parse(str)
		if err != nil {
			return fail(fmt.Sprintf("invalid database URL: %v", err))
		}
		if u.Host == "" {
			return fail("database URL must include a host")
		}
		if u.Path == "" || u.Path == "/" {
			return &ValidationResult{Valid: true, Warnings: []string{"database name is not set"}}
		}
		return ok()
	}

	v.validators["positive_int"] = func(value any) *ValidationResult {
		if n, isInt := value.(int); !isInt || n <= 0 {
			return fail(fmt.Sprintf("must be a positive integer, got %v", value))
		}
		return ok()
	}

	v.validators["port"] = func(value any) *ValidationResult {
		n, isInt := value.(int)
		if !isInt || n <= 0 || n > 65535 {
			return fail(fmt.Sprintf("port must be between 1 and 65535, got %v", value))
		}
		if n < 1024 {
			return &ValidationResult{Valid: true, Warnings: []string{"ports below 1024 need elevated privileges"}}
		}
		return ok()
	}

	v.validators["cron"] = func(value any) *ValidationResult {
		str := strings.TrimSpace(fmt.Sprint(value))
		if str == "" {
			return &ValidationResult{Valid: true, Warnings: []string{"index maintenance disabled"}}
		}
		if _, err := cron.ParseStandard(str); err != nil {
			return fail(fmt.Sprintf("invalid schedule: %v", err))
		}
		return ok()
	}
}

func enum(allowed ...string) ValidatorFunc {
	return func(value any) *ValidationResult {
		str := strings.ToLower(strings.TrimSpace(fmt.Sprint(value)))
		for _, a := range allowed {
			if str == a {
				return ok()
			}
		}
		return fail(fmt.Sprintf("must be one of %s, got %q", strings.Join(allowed, ", "), str))
	}
}

// Validate checks every known field of cfg.
func (v *Validator) Validate(cfg *Config) *ValidationReport {
	report := &ValidationReport{Valid: true, Results: map[string]*ValidationResult{}, Timestamp: time.Now()}

	check := func(field string, fn ValidatorFunc, value any) {
		res := fn(value)
		report.Results[field] = res
		if !res.Valid {
			report.Valid = false
		}
	}
	check("api_key", v.validators["api_key"], cfg.APIKey)
	check("base_url", v.validators["url"], cfg.BaseURL)
	check("embedding_model", v.validators["model_name"], cfg.EmbeddingModel)
	check("chat_model", v.validators["model_name"], cfg.ChatModel)
	check("embedding_dim", v.validators["positive_int"], cfg.EmbeddingDim)
	check("port", v.validators["port"], cfg.Port)
	check("store", enum("memory", "pgvector", "milvus"), cfg.Store)
	check("chatlog", enum("sqlite", "redis", "memory"), cfg.ChatLog)
	check("caption_source", enum("ytdlp", "supadata"), cfg.CaptionSource)
	check("chunk_size", v.validators["positive_int"], cfg.Processor.ChunkSize)
	check("max_para_chars", v.validators["positive_int"], cfg.Processor.MaxParaChars)

	overlap := ok()
	if cfg.Processor.ChunkOverlap < 0 || cfg.Processor.ChunkOverlap >= cfg.Processor.ChunkSize {
		overlap = fail(fmt.Sprintf("overlap %d must be in [0, chunk_size)", cfg.Processor.ChunkOverlap))
	}
	report.Results["chunk_overlap"] = overlap
	if !overlap.Valid {
		report.Valid = false
	}

	switch cfg.Store {
	case "pgvector":
		check("database_url", v.validators["database_url"], cfg.DatabaseURL)
		check("index_maintenance_cron", v.validators["cron"], cfg.IndexMaintenanceCron)
	case "milvus":
		if cfg.MilvusAddr == "" {
			report.Results["milvus_addr"] = &ValidationResult{Valid: true, Warnings: []string{"no address, localhost:19530 is used"}}
		}
	}
	if cfg.CaptionSource == "supadata" {
		check("supadata_api_key", v.validators["api_key"], cfg.SupadataAPIKey)
	}

	report.Summary = summarize(report.Results)
	report.OverallScore = score(report.Summary)
	v.logger.Debug("configuration validated", "valid", report.Valid, "score", report.OverallScore)
	return report
}

func summarize(results map[string]*ValidationResult) ValidationSummary {
	s := ValidationSummary{TotalFields: len(results)}
	for _, r := range results {
		if r.Valid {
			s.ValidFields++
		} else {
			s.InvalidFields++
		}
		if len(r.Warnings) > 0 {
			s.WarningFields++
		}
		s.TotalErrors += len(r.Errors)
		s.TotalWarnings += len(r.Warnings)
	}
	return s
}

// score is the valid-field percentage minus 2 per warning and 5 per error.
func score(s ValidationSummary) float64 {
	if s.TotalFields == 0 {
		return 0
	}
	v := float64(s.ValidFields)/float64(s.TotalFields)*100 - float64(s.TotalWarnings)*2 - float64(s.TotalErrors)*5
	return max(v, 0)
}

// Table renders the report as a text table, one row per field.
func (r *ValidationReport) Table() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Configuration report (score %.0f/100)", r.OverallScore))
	t.AppendHeader(table.Row{"Field", "Status", "Details"})

	fields := make([]string, 0, len(r.Results))
	for f := range r.Results {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		res := r.Results[f]
		status := "ok"
		switch {
		case !res.Valid:
			status = "error"
		case len(res.Warnings) > 0:
			status = "warning"
		}
		details := append(append([]string{}, res.Errors...), res.Warnings...)
		t.AppendRow(table.Row{f, status, strings.Join(details, "; ")})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d valid", r.Summary.ValidFields, r.Summary.TotalFields), ""})
	return t.Render()
}
