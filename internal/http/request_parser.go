// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// transaction form or JSON bodies, the window width query and input sanitizing.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cashbook/internal/aggregate"
	"cashbook/internal/core"
)

const (
	maxBodyBytes      = 64 << 10
	maxDescriptionLen = 200
	maxWindowWidth    = 60
)

var (
	ErrInvalidWindowWidth = errors.New("invalid window width")
	ErrBodyTooLarge       = errors.New("request body too large")
)

// TransactionInput is a validated request to record one transaction.
type TransactionInput struct {
	Category    core.Category
	Description string
	Amount      core.Money
}

// ParseTransactionInput validates the category path value and the body fields.
// Errors wrap core.ErrInvalidCategory or core.ErrInvalidAmount. The description
// is free text: it is sanitized and truncated but never rejected.
func ParseTransactionInput(category string, p *RequestBodyParser) (TransactionInput, error) {
	c, err := core.ParseCategory(category)
	if err != nil {
		return TransactionInput{}, err
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return TransactionInput{}, fmt.Errorf("%w: %q", err, p.Get("amount"))
	}
	return TransactionInput{
		Category:    c,
		Description: truncate(p.Get("description"), maxDescriptionLen),
		Amount:      amount,
	}, nil
}

// ParseWindowWidth reads the width query parameter, falling back to def when absent.
func ParseWindowWidth(query url.Values, def int) (int, error) {
	if def <= 0 {
		def = aggregate.DefaultWindowWidth
	}
	v := strings.TrimSpace(query.Get("width"))
	if v == "" {
		return def, nil
	}
	width, err := strconv.Atoi(v)
	if err != nil || width < 1 || width > maxWindowWidth {
		return 0, fmt.Errorf("%w: %q (want 1-%d)", ErrInvalidWindowWidth, v, maxWindowWidth)
	}
	return width, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing. Bodies over
// maxBodyBytes fail with ErrBodyTooLarge instead of being cut short.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(p.err, &tooLarge) {
		p.body = nil
		p.err = fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
