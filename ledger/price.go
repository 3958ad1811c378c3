package ledger

import (
	"sort"

	"github.com/robinvdvleuten/beancount/ast"
	"github.com/shopspring/decimal"
)

// pricePoint is one dated quote for a currency pair.
type pricePoint struct {
	Date *ast.Date
	Rate decimal.Decimal
}

// priceTable is a flat, non-transitive table of currency conversion rates.
// Lookups only ever consider the direct pair or its inverse - there is no
// path-finding through intermediate currencies.
type priceTable struct {
	points map[string]map[string][]pricePoint // from -> to -> points sorted by date
}

func newPriceTable() *priceTable {
	return &priceTable{points: make(map[string]map[string][]pricePoint)}
}

// Set records a dated quote: one unit of `from` is worth `rate` units of `to`.
func (pt *priceTable) Set(from, to string, date *ast.Date, rate decimal.Decimal) {
	if pt.points[from] == nil {
		pt.points[from] = make(map[string][]pricePoint)
	}

	points := pt.points[from][to]
	points = append(points, pricePoint{Date: date, Rate: rate})
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Time.Before(points[j].Date.Time)
	})
	pt.points[from][to] = points
}

// latestOnOrBefore returns the most recent quote at or before date, using
// forward-fill semantics. Returns false if no quote exists in range.
func (pt *priceTable) latestOnOrBefore(from, to string, date *ast.Date) (decimal.Decimal, bool) {
	points := pt.points[from][to]
	var best *pricePoint
	for i := range points {
		if points[i].Date.Time.After(date.Time) {
			break
		}
		best = &points[i]
	}
	if best == nil {
		return decimal.Zero, false
	}
	return best.Rate, true
}

// Get returns the rate to convert one unit of fromCurrency into toCurrency at
// the given date. It tries, in order: identity (same currency), the direct
// quote, then the inverse quote (inverted arithmetically). No transitive
// conversion through a third currency is attempted.
func (pt *priceTable) Get(date *ast.Date, fromCurrency, toCurrency string) (decimal.Decimal, bool) {
	if fromCurrency == toCurrency {
		return decimal.NewFromInt(1), true
	}

	if rate, ok := pt.latestOnOrBefore(fromCurrency, toCurrency, date); ok {
		return rate, true
	}

	if rate, ok := pt.latestOnOrBefore(toCurrency, fromCurrency, date); ok && !rate.IsZero() {
		return decimal.NewFromInt(1).Div(rate), true
	}

	return decimal.Zero, false
}
