package ledger

import (
	"strings"

	"github.com/robinvdvleuten/beancount/ast"
	"github.com/shopspring/decimal"
)

// pnlRule designates fromAccount (and its descendants) as accounts whose
// realized gains, on reduction of a cost-basis lot, accumulate into
// toAccount. Built once from the file's pnl directives, which carry no date
// and apply for the whole solve.
type pnlRule struct {
	FromAccount string
	ToAccount   string
}

// pnlRulesFromTree builds the pnl rule table from the pnl directives
// collected during parsing.
func pnlRulesFromTree(tree *ast.AST) []pnlRule {
	if len(tree.Pnls) == 0 {
		return nil
	}
	rules := make([]pnlRule, 0, len(tree.Pnls))
	for _, p := range tree.Pnls {
		rules = append(rules, pnlRule{
			FromAccount: string(p.FromAccount),
			ToAccount:   string(p.ToAccount),
		})
	}
	return rules
}

// lookupPnlRule returns the to_account of the most specific rule whose
// from_account is account or an ancestor of it. When several rules match,
// the one with the longest (most specific) from_account wins.
func lookupPnlRule(rules []pnlRule, account string) (string, bool) {
	best := ""
	bestLen := -1
	for _, r := range rules {
		if account != r.FromAccount && !strings.HasPrefix(account, r.FromAccount+":") {
			continue
		}
		if len(r.FromAccount) > bestLen {
			best = r.ToAccount
			bestLen = len(r.FromAccount)
		}
	}
	return best, bestLen >= 0
}

// pnlSalePrice derives the per-unit sale price from a posting's price
// annotation. It returns false when the posting carries no price, since a
// realized gain cannot be computed without one.
func pnlSalePrice(posting *ast.Posting, amount decimal.Decimal) (decimal.Decimal, string, bool) {
	if posting.Price == nil {
		return decimal.Zero, "", false
	}

	priceAmount, err := ParseAmount(posting.Price)
	if err != nil {
		return decimal.Zero, "", false
	}

	if posting.PriceTotal {
		if amount.IsZero() {
			return decimal.Zero, posting.Price.Currency, false
		}
		return priceAmount.Div(amount.Abs()), posting.Price.Currency, true
	}

	return priceAmount, posting.Price.Currency, true
}

// realizedGain sums units * (sale_price - cost_price) over the lots actually
// consumed by a reduction, then flips the sign to match the income
// convention where gains post as negative numbers.
func realizedGain(consumed []lotConsumption, salePricePerUnit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, c := range consumed {
		if !c.HasCost {
			continue
		}
		total = total.Add(c.Amount.Mul(salePricePerUnit.Sub(c.CostPerUnit)))
	}
	return total.Neg()
}

// pnlPosting builds the synthetic balancing posting carrying the realized
// gain from consuming cost-basis lots in accountName, or nil when no pnl
// rule covers accountName, the posting has no sale price, or the gain is
// zero.
func (l *Ledger) pnlPosting(accountName string, posting *ast.Posting, amount decimal.Decimal, consumed []lotConsumption) *ast.Posting {
	if len(consumed) == 0 || len(l.pnlRules) == 0 {
		return nil
	}

	toAccountName, ok := lookupPnlRule(l.pnlRules, accountName)
	if !ok {
		return nil
	}

	salePrice, priceCurrency, ok := pnlSalePrice(posting, amount)
	if !ok {
		return nil
	}

	gain := realizedGain(consumed, salePrice)
	if gain.IsZero() {
		return nil
	}

	return ast.NewPosting(ast.Account(toAccountName),
		ast.WithAmount(gain.String(), priceCurrency),
	)
}
