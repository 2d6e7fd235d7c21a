// Package pricing holds the immutable field-group price list. It is loaded
// once at startup; changing a price means a restart.
package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/shopspring/decimal"
)

// Field-groups sold by default.
const (
	GroupEmail            = "email"
	GroupMobile           = "mobile"
	GroupLinkedIn         = "linkedin"
	GroupPsychometricData = "psychometric_data"
)

// DefaultPrices returns a fresh copy of the built-in price table, in tokens.
func DefaultPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		GroupEmail:            decimal.RequireFromString("0.40"),
		GroupMobile:           decimal.RequireFromString("1.50"),
		GroupLinkedIn:         decimal.RequireFromString("0.25"),
		GroupPsychometricData: decimal.RequireFromString("2.00"),
	}
}

// PriceList maps field-group -> price. The zero value has no prices.
type PriceList struct {
	prices map[string]decimal.Decimal
}

// New builds a PriceList from prices. The map is copied, so later changes to
// it are not visible. Every price must be strictly positive with at most
// common.AmountScale decimal places.
func New(prices map[string]decimal.Decimal) (*PriceList, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("price list is empty")
	}
	copied := make(map[string]decimal.Decimal, len(prices))
	for group, price := range prices {
		if group == "" {
			return nil, fmt.Errorf("price list has an empty field group")
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("price for %q must be positive, got %s", group, price)
		}
		if !price.Equal(price.Round(common.AmountScale)) {
			return nil, fmt.Errorf("price for %q has more than %d decimal places: %s", group, common.AmountScale, price)
		}
		copied[group] = price
	}
	return &PriceList{prices: copied}, nil
}

// Load reads a JSON object of field-group -> price from path. Prices may be
// given as strings ("0.40") or numbers. An empty path yields DefaultPrices.
func Load(path string) (*PriceList, error) {
	if path == "" {
		return New(DefaultPrices())
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price list: %w", err)
	}

	var raw map[string]decimal.Decimal
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse price list: %w", err)
	}
	return New(raw)
}

// PriceOf returns the price of fieldGroup or common.ErrUnknownFieldGroup.
func (p *PriceList) PriceOf(fieldGroup string) (decimal.Decimal, error) {
	price, ok := p.prices[fieldGroup]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", common.ErrUnknownFieldGroup, fieldGroup)
	}
	return price, nil
}

// Groups returns the registered field-groups in sorted order.
func (p *PriceList) Groups() []string {
	groups := make([]string, 0, len(p.prices))
	for g := range p.prices {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Validate checks that every group in groups has a price.
func (p *PriceList) Validate(groups []string) error {
	for _, g := range groups {
		if _, ok := p.prices[g]; !ok {
			return fmt.Errorf("%w: %q has no price", common.ErrUnknownFieldGroup, g)
		}
	}
	return nil
}
