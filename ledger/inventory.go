package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Inventory tracks lots of commodities with cost basis
type Inventory struct {
	// Map: commodity -> list of lots
	lots map[string][]*lot
}

// NewInventory creates a new inventory
func NewInventory() *Inventory {
	return &Inventory{
		lots: make(map[string][]*lot),
	}
}

// Add adds an amount without cost basis
func (inv *Inventory) Add(commodity string, amount decimal.Decimal) {
	// Add as a lot without cost spec
	inv.AddLot(commodity, amount, nil)
}

// AddLot adds an amount with a specific cost basis
func (inv *Inventory) AddLot(commodity string, amount decimal.Decimal, spec *lotSpec) {
	// Find existing lot with matching spec
	lots := inv.lots[commodity]
	for _, lot := range lots {
		if lotSpecsMatch(lot.Spec, spec) {
			// Add to existing lot
			lot.Amount = lot.Amount.Add(amount)
			return
		}
	}

	// Create new lot
	newLot := newLot(commodity, amount, spec)
	inv.lots[commodity] = append(inv.lots[commodity], newLot)
}

// Get returns the total amount of a commodity (summing all lots)
func (inv *Inventory) Get(commodity string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range inv.lots[commodity] {
		total = total.Add(lot.Amount)
	}
	return total
}

// GetLots returns all lots for a commodity
func (inv *Inventory) GetLots(commodity string) []*lot {
	return inv.lots[commodity]
}

// lotConsumption records the units taken from one lot during a reduction,
// together with that lot's cost basis. Used to compute realized gains for
// pnl accounting.
type lotConsumption struct {
	Amount       decimal.Decimal // positive units consumed
	CostPerUnit  decimal.Decimal
	CostCurrency string
	HasCost      bool
}

// ReduceLot reduces from a specific lot or uses booking method. Mutates the
// inventory; callers that need a dry-run check should use CanReduceLot first.
// Returns the lots consumed, for realized-gain accounting.
func (inv *Inventory) ReduceLot(commodity string, amount decimal.Decimal, spec *lotSpec, bookingMethod string) ([]lotConsumption, error) {
	// Reducing means amount should be negative
	if amount.GreaterThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("reduce amount must be negative, got %s", amount.String())
	}

	// Get absolute value for comparison
	reduceAmount := amount.Abs()

	// Empty spec {} means use booking method
	if spec != nil && spec.IsEmpty() {
		return inv.reduceWithBooking(commodity, reduceAmount, bookingMethod)
	}

	// Specific lot spec - find matching lot
	if spec != nil && spec.Cost != nil {
		consumption, err := inv.reduceSpecificLot(commodity, reduceAmount, spec)
		if err != nil {
			return nil, err
		}
		return []lotConsumption{consumption}, nil
	}

	// No spec at all - treat as simple amount
	// Just add the negative amount to first available lot or create new lot
	inv.AddLot(commodity, amount, nil)
	return nil, nil
}

// CanReduceLot performs the same checks as ReduceLot without mutating the
// inventory. Used by validation to reject a transaction before any lots
// are touched.
func (inv *Inventory) CanReduceLot(commodity string, amount decimal.Decimal, spec *lotSpec, bookingMethod string) error {
	if amount.GreaterThanOrEqual(decimal.Zero) {
		return fmt.Errorf("reduce amount must be negative, got %s", amount.String())
	}

	reduceAmount := amount.Abs()

	if spec != nil && spec.IsEmpty() {
		return inv.canReduceWithBooking(commodity, reduceAmount, bookingMethod)
	}

	if spec != nil && spec.Cost != nil {
		return inv.canReduceSpecificLot(commodity, reduceAmount, spec)
	}

	return nil
}

// reduceSpecificLot reduces from a specific lot matching the spec
func (inv *Inventory) reduceSpecificLot(commodity string, amount decimal.Decimal, spec *lotSpec) (lotConsumption, error) {
	lot, err := inv.findSpecificLot(commodity, amount, spec)
	if err != nil {
		return lotConsumption{}, err
	}

	consumption := consumptionFromLot(lot, amount)

	// Reduce from lot
	lot.Amount = lot.Amount.Sub(amount)

	// Remove lot if empty
	if lot.Amount.IsZero() {
		inv.removeLot(commodity, lot)
	}

	return consumption, nil
}

// consumptionFromLot records `amount` units consumed from lot at its cost basis.
func consumptionFromLot(l *lot, amount decimal.Decimal) lotConsumption {
	if l.Spec == nil || l.Spec.Cost == nil {
		return lotConsumption{Amount: amount}
	}
	return lotConsumption{
		Amount:       amount,
		CostPerUnit:  *l.Spec.Cost,
		CostCurrency: l.Spec.CostCurrency,
		HasCost:      true,
	}
}

// canReduceSpecificLot is the read-only counterpart of reduceSpecificLot.
func (inv *Inventory) canReduceSpecificLot(commodity string, amount decimal.Decimal, spec *lotSpec) error {
	_, err := inv.findSpecificLot(commodity, amount, spec)
	return err
}

func (inv *Inventory) findSpecificLot(commodity string, amount decimal.Decimal, spec *lotSpec) (*lot, error) {
	lots := inv.lots[commodity]

	for _, lot := range lots {
		if lotSpecsMatch(lot.Spec, spec) {
			if lot.Amount.LessThan(amount) {
				return nil, fmt.Errorf("insufficient amount in lot %s: have %s, need %s",
					spec.String(), lot.Amount.String(), amount.String())
			}
			return lot, nil
		}
	}

	return nil, fmt.Errorf("lot not found: %s %s", commodity, spec.String())
}

// reduceWithBooking reduces using booking method (FIFO, LIFO, STRICT).
// Assumes booking method has already been validated by the validator; NONE
// and AVERAGE are not supported booking methods.
func (inv *Inventory) reduceWithBooking(commodity string, amount decimal.Decimal, bookingMethod string) ([]lotConsumption, error) {
	sortedLots, err := inv.orderedCandidates(commodity, amount, bookingMethod)
	if err != nil {
		return nil, err
	}

	// Reduce from lots in booking method order
	var consumed []lotConsumption
	remaining := amount
	for _, lot := range sortedLots {
		if remaining.IsZero() {
			break
		}

		if lot.Amount.GreaterThanOrEqual(remaining) {
			// This lot has enough
			consumed = append(consumed, consumptionFromLot(lot, remaining))
			lot.Amount = lot.Amount.Sub(remaining)
			if lot.Amount.IsZero() {
				inv.removeLot(commodity, lot)
			}
			remaining = decimal.Zero
		} else {
			// Take all from this lot
			consumed = append(consumed, consumptionFromLot(lot, lot.Amount))
			remaining = remaining.Sub(lot.Amount)
			lot.Amount = decimal.Zero
			inv.removeLot(commodity, lot)
		}
	}

	if !remaining.IsZero() {
		return nil, fmt.Errorf("insufficient total amount for %s: need %s more",
			commodity, remaining.String())
	}

	return consumed, nil
}

// canReduceWithBooking is the read-only counterpart of reduceWithBooking.
func (inv *Inventory) canReduceWithBooking(commodity string, amount decimal.Decimal, bookingMethod string) error {
	sortedLots, err := inv.orderedCandidates(commodity, amount, bookingMethod)
	if err != nil {
		return err
	}

	remaining := amount
	for _, lot := range sortedLots {
		if remaining.IsZero() {
			break
		}
		if lot.Amount.GreaterThanOrEqual(remaining) {
			remaining = decimal.Zero
		} else {
			remaining = remaining.Sub(lot.Amount)
		}
	}

	if !remaining.IsZero() {
		return fmt.Errorf("insufficient total amount for %s: need %s more",
			commodity, remaining.String())
	}

	return nil
}

// orderedCandidates selects and orders the lots a booking-method reduction
// will consume from, without mutating the inventory.
//
// STRICT requires the candidate set to hold exactly one lot, unless the
// requested amount equals the total held for the currency (a whole-position
// close is unambiguous regardless of lot count).
func (inv *Inventory) orderedCandidates(commodity string, amount decimal.Decimal, bookingMethod string) ([]*lot, error) {
	lots := inv.lots[commodity]

	if len(lots) == 0 {
		return nil, fmt.Errorf("no lots available for %s", commodity)
	}

	if bookingMethod == "" {
		bookingMethod = "FIFO"
	}

	if bookingMethod == "STRICT" {
		total := decimal.Zero
		for _, lot := range lots {
			total = total.Add(lot.Amount)
		}
		if len(lots) != 1 && !amount.Equal(total) {
			return nil, fmt.Errorf("ambiguous_strict_booking: %d lots held for %s, reduction of %s does not close the whole position",
				len(lots), commodity, amount.String())
		}
		// Either a single candidate, or a whole-position close across all
		// lots - insertion order is as good as any for the latter case.
		sortedLots := make([]*lot, len(lots))
		copy(sortedLots, lots)
		return sortedLots, nil
	}

	sortedLots := make([]*lot, len(lots))
	copy(sortedLots, lots)

	switch bookingMethod {
	case "FIFO":
		// FIFO: oldest first (lots without date come first)
		sort.SliceStable(sortedLots, func(i, j int) bool {
			iHasDate := sortedLots[i].Spec != nil && sortedLots[i].Spec.Date != nil
			jHasDate := sortedLots[j].Spec != nil && sortedLots[j].Spec.Date != nil

			// Both lack dates - maintain stable order (not less than)
			if !iHasDate && !jHasDate {
				return false
			}
			// i lacks date, j has date - i comes first
			if !iHasDate {
				return true
			}
			// j lacks date, i has date - j comes first
			if !jHasDate {
				return false
			}
			// Both have dates - compare chronologically (oldest first)
			return sortedLots[i].Spec.Date.Before(sortedLots[j].Spec.Date.Time)
		})
	case "LIFO":
		// LIFO: newest first (lots with dates come first, reverse chronological)
		sort.SliceStable(sortedLots, func(i, j int) bool {
			iHasDate := sortedLots[i].Spec != nil && sortedLots[i].Spec.Date != nil
			jHasDate := sortedLots[j].Spec != nil && sortedLots[j].Spec.Date != nil

			// Both lack dates - maintain stable order (not less than)
			if !iHasDate && !jHasDate {
				return false
			}
			// i has date, j lacks date - i comes first (dated lots first for LIFO)
			if iHasDate && !jHasDate {
				return true
			}
			// j has date, i lacks date - j comes first
			if !iHasDate && jHasDate {
				return false
			}
			// Both have dates - compare reverse chronologically (newest first)
			return sortedLots[i].Spec.Date.After(sortedLots[j].Spec.Date.Time)
		})
	default:
		// Should never reach here - validator should have caught unsupported methods
		panic(fmt.Sprintf("unsupported booking method %q after validation (validator bug)", bookingMethod))
	}

	return sortedLots, nil
}

// removeLot removes a lot from the inventory
func (inv *Inventory) removeLot(commodity string, lotToRemove *lot) {
	lots := inv.lots[commodity]
	newLots := make([]*lot, 0, len(lots)-1)
	for _, lot := range lots {
		if lot != lotToRemove {
			newLots = append(newLots, lot)
		}
	}
	if len(newLots) == 0 {
		delete(inv.lots, commodity)
	} else {
		inv.lots[commodity] = newLots
	}
}

// IsEmpty returns true if the inventory has no lots
func (inv *Inventory) IsEmpty() bool {
	return len(inv.lots) == 0
}

// Currencies returns all commodities in the inventory
func (inv *Inventory) Currencies() []string {
	currencies := make([]string, 0, len(inv.lots))
	for currency := range inv.lots {
		currencies = append(currencies, currency)
	}
	return currencies
}

// String returns a string representation of the inventory
func (inv *Inventory) String() string {
	if inv.IsEmpty() {
		return "{}"
	}

	var buf strings.Builder
	buf.WriteByte('{')

	first := true
	for commodity, lots := range inv.lots {
		for _, lot := range lots {
			if !first {
				buf.WriteString(", ")
			}
			if lot.Spec == nil || lot.Spec.IsEmpty() {
				buf.WriteString(lot.Amount.String())
				buf.WriteByte(' ')
				buf.WriteString(commodity)
			} else {
				buf.WriteString(lot.String())
			}
			first = false
		}
	}
	buf.WriteByte('}')
	return buf.String()
}

// lotSpecsMatch checks if two lot specs match
func lotSpecsMatch(a, b *lotSpec) bool {
	// Both nil
	if a == nil && b == nil {
		return true
	}

	// One nil, one not
	if a == nil || b == nil {
		return false
	}

	return a.Equal(b)
}
