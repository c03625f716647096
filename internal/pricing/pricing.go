// Package pricing prices generation jobs from a per-second rate table that is
// supplied as configuration.
package pricing

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"sorastudio/internal/domain"
)

//go:embed default_rates.toml
var defaultRates []byte

// Table is the on-disk shape of the rate configuration.
type Table struct {
	Currency string                        `toml:"currency" json:"currency"`
	Rates    map[string]map[string]float64 `toml:"rates" json:"rates"`
}

// Calculator maps (model, resolution, duration) to a cost.
type Calculator struct {
	table Table
}

// Default returns a calculator built from the embedded rate table.
func Default() *Calculator {
	calc, err := Parse(defaultRates)
	if err != nil {
		panic(fmt.Sprintf("pricing: embedded rates invalid: %v", err))
	}
	return calc
}

// Load reads a TOML rate table from path. An empty path yields Default().
func Load(path string) (*Calculator, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a TOML rate table.
func Parse(data []byte) (*Calculator, error) {
	var table Table
	if err := toml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("pricing: decode rates: %w", err)
	}
	if len(table.Rates) == 0 {
		return nil, errors.New("pricing: rate table is empty")
	}
	for model, byRes := range table.Rates {
		for res, rate := range byRes {
			if rate < 0 {
				return nil, fmt.Errorf("pricing: negative rate for %s %s", model, res)
			}
		}
	}
	if table.Currency == "" {
		table.Currency = "USD"
	}
	return New(table), nil
}

// New wraps an already decoded table.
func New(table Table) *Calculator {
	return &Calculator{table: table}
}

// Rate returns the per-second rate for a pair and whether it is configured.
func (c *Calculator) Rate(model domain.Model, res domain.Resolution) (float64, bool) {
	byRes, ok := c.table.Rates[string(model)]
	if !ok {
		return 0, false
	}
	rate, ok := byRes[string(res)]
	return rate, ok
}

// Cost returns rate * duration rounded to cents. Unknown pairs cost 0: that
// signals a gap in the table rather than a user error.
func (c *Calculator) Cost(model domain.Model, res domain.Resolution, durationSeconds int) float64 {
	rate, ok := c.Rate(model, res)
	if !ok {
		return 0
	}
	return math.Round(rate*float64(durationSeconds)*100) / 100
}

// Supports reports whether res may be requested with model.
func (c *Calculator) Supports(model domain.Model, res domain.Resolution) bool {
	_, ok := c.Rate(model, res)
	return ok
}

// Resolutions lists the resolutions configured for model, sorted.
func (c *Calculator) Resolutions(model domain.Model) []domain.Resolution {
	byRes := c.table.Rates[string(model)]
	out := make([]domain.Resolution, 0, len(byRes))
	for res := range byRes {
		out = append(out, domain.Resolution(res))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Table returns a copy of the configured rates.
func (c *Calculator) Table() Table {
	out := Table{Currency: c.table.Currency, Rates: make(map[string]map[string]float64, len(c.table.Rates))}
	for model, byRes := range c.table.Rates {
		inner := make(map[string]float64, len(byRes))
		for res, rate := range byRes {
			inner[res] = rate
		}
		out.Rates[model] = inner
	}
	return out
}

// FormatCost renders an amount for display, e.g. "$0.80".
func FormatCost(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
