package ledger

import (
	"fmt"
	"sort"

	"github.com/robinvdvleuten/beancount/ast"
)

// Error types for ledger validation errors.
//
// Every error carries enough position/context information to be rendered
// bean-check style by a presentation layer; this package only builds the
// error values, it does not render them.

// location formats a "filename:line" prefix, falling back to the directive's
// date when no filename is available (e.g. directives built in-memory).
func location(pos ast.Position, date *ast.Date) string {
	if pos.Filename == "" {
		if date != nil {
			return date.Format("2006-01-02")
		}
		return ""
	}
	return fmt.Sprintf("%s:%d", pos.Filename, pos.Line)
}

// AccountNotOpenError is returned when a directive references an account
// that hasn't been opened (or is closed) at the directive's date.
type AccountNotOpenError struct {
	Account   ast.Account
	Date      *ast.Date
	Pos       ast.Position
	Directive ast.Directive
}

func (e *AccountNotOpenError) Error() string {
	return fmt.Sprintf("%s: Invalid reference to unknown account '%s'", location(e.Pos, e.Date), e.Account)
}

func (e *AccountNotOpenError) GetPosition() ast.Position  { return e.Pos }
func (e *AccountNotOpenError) GetDirective() ast.Directive { return e.Directive }
func (e *AccountNotOpenError) GetAccount() ast.Account    { return e.Account }
func (e *AccountNotOpenError) GetDate() *ast.Date         { return e.Date }

// NewAccountNotOpenError builds an AccountNotOpenError for a posting inside a transaction.
func NewAccountNotOpenError(txn *ast.Transaction, account ast.Account) *AccountNotOpenError {
	return &AccountNotOpenError{Account: account, Date: txn.Date, Pos: txn.Pos, Directive: txn}
}

// NewAccountNotOpenErrorFromBalance builds an AccountNotOpenError for a balance assertion.
func NewAccountNotOpenErrorFromBalance(balance *ast.Balance) *AccountNotOpenError {
	return &AccountNotOpenError{Account: balance.Account, Date: balance.Date, Pos: balance.Pos, Directive: balance}
}

// NewAccountNotOpenErrorFromPad builds an AccountNotOpenError for either side of a pad directive.
func NewAccountNotOpenErrorFromPad(pad *ast.Pad, account ast.Account) *AccountNotOpenError {
	return &AccountNotOpenError{Account: account, Date: pad.Date, Pos: pad.Pos, Directive: pad}
}

// NewAccountNotOpenErrorFromNote builds an AccountNotOpenError for a note directive.
func NewAccountNotOpenErrorFromNote(note *ast.Note) *AccountNotOpenError {
	return &AccountNotOpenError{Account: note.Account, Date: note.Date, Pos: note.Pos, Directive: note}
}

// NewAccountNotOpenErrorFromDocument builds an AccountNotOpenError for a document directive.
func NewAccountNotOpenErrorFromDocument(doc *ast.Document) *AccountNotOpenError {
	return &AccountNotOpenError{Account: doc.Account, Date: doc.Date, Pos: doc.Pos, Directive: doc}
}

// AccountAlreadyOpenError is returned when trying to open an account that's already open.
type AccountAlreadyOpenError struct {
	Account    ast.Account
	Date       *ast.Date
	OpenedDate *ast.Date
}

func (e *AccountAlreadyOpenError) Error() string {
	return fmt.Sprintf("%s: Account %s is already open (opened on %s)",
		e.Date.Format("2006-01-02"), e.Account, e.OpenedDate.Format("2006-01-02"))
}

// NewAccountAlreadyOpenError builds an AccountAlreadyOpenError for a duplicate open directive.
func NewAccountAlreadyOpenError(open *ast.Open, openedDate *ast.Date) *AccountAlreadyOpenError {
	return &AccountAlreadyOpenError{Account: open.Account, Date: open.Date, OpenedDate: openedDate}
}

// AccountAlreadyClosedError is returned when trying to use or close an account that's already closed.
type AccountAlreadyClosedError struct {
	Account    ast.Account
	Date       *ast.Date
	ClosedDate *ast.Date
}

func (e *AccountAlreadyClosedError) Error() string {
	return fmt.Sprintf("%s: Account %s is already closed (closed on %s)",
		e.Date.Format("2006-01-02"), e.Account, e.ClosedDate.Format("2006-01-02"))
}

// NewAccountAlreadyClosedError builds an AccountAlreadyClosedError for a duplicate close directive.
func NewAccountAlreadyClosedError(close *ast.Close, closedDate *ast.Date) *AccountAlreadyClosedError {
	return &AccountAlreadyClosedError{Account: close.Account, Date: close.Date, ClosedDate: closedDate}
}

// AccountNotClosedError is returned when trying to close an account that was never opened.
type AccountNotClosedError struct {
	Account ast.Account
	Date    *ast.Date
}

func (e *AccountNotClosedError) Error() string {
	return fmt.Sprintf("%s: Cannot close account %s that was never opened",
		e.Date.Format("2006-01-02"), e.Account)
}

// NewAccountNotClosedError builds an AccountNotClosedError for a close directive with no matching open.
func NewAccountNotClosedError(close *ast.Close) *AccountNotClosedError {
	return &AccountNotClosedError{Account: close.Account, Date: close.Date}
}

// TransactionNotBalancedError is returned when a transaction doesn't balance within tolerance.
type TransactionNotBalancedError struct {
	Pos         ast.Position
	Date        *ast.Date
	Narration   string
	Residuals   map[string]string
	Transaction *ast.Transaction
}

func (e *TransactionNotBalancedError) Error() string {
	return fmt.Sprintf("%s: Transaction does not balance: %s", location(e.Pos, e.Date), e.formatResiduals())
}

func (e *TransactionNotBalancedError) formatResiduals() string {
	if len(e.Residuals) == 0 {
		return ""
	}

	currencies := make([]string, 0, len(e.Residuals))
	for currency := range e.Residuals {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	result := "("
	for i, currency := range currencies {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%s %s", e.Residuals[currency], currency)
	}
	result += ")"

	return result
}

func (e *TransactionNotBalancedError) GetPosition() ast.Position   { return e.Pos }
func (e *TransactionNotBalancedError) GetDirective() ast.Directive { return e.Transaction }
func (e *TransactionNotBalancedError) GetDate() *ast.Date          { return e.Date }

// NewTransactionNotBalancedError builds a TransactionNotBalancedError from the per-currency residuals
// left over after weight calculation and amount/cost inference.
func NewTransactionNotBalancedError(txn *ast.Transaction, residuals map[string]string) *TransactionNotBalancedError {
	return &TransactionNotBalancedError{
		Pos:         txn.Pos,
		Date:        txn.Date,
		Narration:   txn.Narration.Value,
		Residuals:   residuals,
		Transaction: txn,
	}
}

// InvalidAmountError is returned when an amount cannot be parsed.
type InvalidAmountError struct {
	Date       *ast.Date
	Account    ast.Account
	Value      string
	Underlying error
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("%s: Invalid amount %q for account %s: %v",
		e.Date.Format("2006-01-02"), e.Value, e.Account, e.Underlying)
}

func (e *InvalidAmountError) GetDate() *ast.Date { return e.Date }

// NewInvalidAmountError builds an InvalidAmountError for an unparseable posting amount.
func NewInvalidAmountError(txn *ast.Transaction, account ast.Account, value string, err error) *InvalidAmountError {
	return &InvalidAmountError{Date: txn.Date, Account: account, Value: value, Underlying: err}
}

// NewInvalidAmountErrorFromBalance builds an InvalidAmountError for an unparseable balance amount.
func NewInvalidAmountErrorFromBalance(balance *ast.Balance, err error) *InvalidAmountError {
	return &InvalidAmountError{Date: balance.Date, Account: balance.Account, Value: balance.Amount.Value, Underlying: err}
}

// InvalidCostError is returned when a posting's cost specification is invalid.
type InvalidCostError struct {
	Date          *ast.Date
	Account       ast.Account
	PostingIndex  int
	CostSpec      string
	Underlying    error
}

func (e *InvalidCostError) Error() string {
	return fmt.Sprintf("%s: Invalid cost specification (Posting #%d: %s): %s: %v",
		e.Date.Format("2006-01-02"), e.PostingIndex+1, e.Account, e.CostSpec, e.Underlying)
}

func (e *InvalidCostError) GetDate() *ast.Date { return e.Date }

// NewInvalidCostError builds an InvalidCostError for an invalid posting cost spec.
func NewInvalidCostError(txn *ast.Transaction, account ast.Account, postingIndex int, costSpec string, err error) *InvalidCostError {
	return &InvalidCostError{Date: txn.Date, Account: account, PostingIndex: postingIndex, CostSpec: costSpec, Underlying: err}
}

// InvalidPriceError is returned when a posting's price specification is invalid.
type InvalidPriceError struct {
	Date         *ast.Date
	Account      ast.Account
	PostingIndex int
	PriceSpec    string
	Underlying   error
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("%s: Invalid price specification (Posting #%d: %s): %s: %v",
		e.Date.Format("2006-01-02"), e.PostingIndex+1, e.Account, e.PriceSpec, e.Underlying)
}

func (e *InvalidPriceError) GetDate() *ast.Date { return e.Date }

// NewInvalidPriceError builds an InvalidPriceError for an invalid posting price spec.
func NewInvalidPriceError(txn *ast.Transaction, account ast.Account, postingIndex int, priceSpec string, err error) *InvalidPriceError {
	return &InvalidPriceError{Date: txn.Date, Account: account, PostingIndex: postingIndex, PriceSpec: priceSpec, Underlying: err}
}

// InvalidMetadataError is returned for duplicate metadata keys or empty metadata values.
type InvalidMetadataError struct {
	Date    *ast.Date
	Account ast.Account // empty when the metadata belongs to the transaction itself
	Key     string
	Value   *ast.MetadataValue
	Reason  string
}

func (e *InvalidMetadataError) Error() string {
	valueStr := ""
	if e.Value != nil && e.Value.StringValue != nil {
		valueStr = *e.Value.StringValue
	}
	if e.Account != "" {
		return fmt.Sprintf("%s: Invalid metadata (account %s): key=%q, value=%q: %s",
			e.Date.Format("2006-01-02"), e.Account, e.Key, valueStr, e.Reason)
	}
	return fmt.Sprintf("%s: Invalid metadata: key=%q, value=%q: %s",
		e.Date.Format("2006-01-02"), e.Key, valueStr, e.Reason)
}

func (e *InvalidMetadataError) GetDate() *ast.Date { return e.Date }

// NewInvalidMetadataError builds an InvalidMetadataError for a duplicate key or empty value.
func NewInvalidMetadataError(txn *ast.Transaction, account ast.Account, key string, value *ast.MetadataValue, reason string) *InvalidMetadataError {
	return &InvalidMetadataError{Date: txn.Date, Account: account, Key: key, Value: value, Reason: reason}
}

// BalanceMismatchError is returned when a balance assertion fails.
type BalanceMismatchError struct {
	Date     *ast.Date
	Account  ast.Account
	Expected string
	Actual   string
	Currency string
}

func (e *BalanceMismatchError) Error() string {
	return fmt.Sprintf("%s: Balance mismatch for %s:\n  Expected: %s %s\n  Actual:   %s %s",
		e.Date.Format("2006-01-02"), e.Account,
		e.Expected, e.Currency,
		e.Actual, e.Currency)
}

func (e *BalanceMismatchError) GetDate() *ast.Date { return e.Date }

// NewBalanceMismatchError builds a BalanceMismatchError for a failed balance assertion.
func NewBalanceMismatchError(balance *ast.Balance, expected, actual, currency string) *BalanceMismatchError {
	return &BalanceMismatchError{Date: balance.Date, Account: balance.Account, Expected: expected, Actual: actual, Currency: currency}
}

// InsufficientInventoryError is returned when a lot reduction can't be satisfied by
// the inventory currently held in an account.
type InsufficientInventoryError struct {
	Pos       ast.Position
	Date      *ast.Date
	Payee     string
	Account   ast.Account
	Directive ast.Directive
	Details   error
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("%s: Insufficient inventory in %s: %v", location(e.Pos, e.Date), e.Account, e.Details)
}

func (e *InsufficientInventoryError) GetPosition() ast.Position   { return e.Pos }
func (e *InsufficientInventoryError) GetDirective() ast.Directive { return e.Directive }
func (e *InsufficientInventoryError) GetAccount() ast.Account     { return e.Account }
func (e *InsufficientInventoryError) GetDate() *ast.Date          { return e.Date }

// NewInsufficientInventoryError builds an InsufficientInventoryError for a failed lot reduction.
func NewInsufficientInventoryError(txn *ast.Transaction, account ast.Account, details error) *InsufficientInventoryError {
	return &InsufficientInventoryError{
		Pos:       txn.Pos,
		Date:      txn.Date,
		Payee:     txn.Payee.Value,
		Account:   account,
		Directive: txn,
		Details:   details,
	}
}

// CurrencyConstraintError is returned when a posting uses a currency the account
// wasn't opened to accept.
type CurrencyConstraintError struct {
	Pos               ast.Position
	Date              *ast.Date
	Payee             string
	Account           ast.Account
	Directive         ast.Directive
	Currency          string
	AllowedCurrencies []string
}

func (e *CurrencyConstraintError) Error() string {
	return fmt.Sprintf("%s: Currency %s not allowed for account %s (allowed: %v)",
		location(e.Pos, e.Date), e.Currency, e.Account, e.AllowedCurrencies)
}

func (e *CurrencyConstraintError) GetPosition() ast.Position   { return e.Pos }
func (e *CurrencyConstraintError) GetDirective() ast.Directive { return e.Directive }
func (e *CurrencyConstraintError) GetAccount() ast.Account     { return e.Account }
func (e *CurrencyConstraintError) GetDate() *ast.Date          { return e.Date }

// NewCurrencyConstraintError builds a CurrencyConstraintError for a disallowed posting currency.
func NewCurrencyConstraintError(txn *ast.Transaction, account ast.Account, currency string, allowedCurrencies []string) *CurrencyConstraintError {
	return &CurrencyConstraintError{
		Pos:               txn.Pos,
		Date:              txn.Date,
		Payee:             txn.Payee.Value,
		Account:           account,
		Directive:         txn,
		Currency:          currency,
		AllowedCurrencies: allowedCurrencies,
	}
}

// InvalidBookingMethodError is returned when an open directive names a booking
// method other than FIFO, LIFO, STRICT, or the plain (empty) default.
type InvalidBookingMethodError struct {
	Account ast.Account
	Date    *ast.Date
	Method  string
}

func (e *InvalidBookingMethodError) Error() string {
	return fmt.Sprintf("%s: Account %s declares unsupported booking method %q (expected FIFO, LIFO, or STRICT)",
		e.Date.Format("2006-01-02"), e.Account, e.Method)
}

func (e *InvalidBookingMethodError) GetDate() *ast.Date { return e.Date }

// NewInvalidBookingMethodError builds an InvalidBookingMethodError for an open directive.
func NewInvalidBookingMethodError(open *ast.Open) *InvalidBookingMethodError {
	return &InvalidBookingMethodError{Account: open.Account, Date: open.Date, Method: open.BookingMethod}
}

// UnusedPadWarning is returned when a pad directive is never consumed by a later
// balance assertion for the same account.
type UnusedPadWarning struct {
	Account    ast.Account
	PadAccount ast.Account
	Date       *ast.Date
}

func (e *UnusedPadWarning) Error() string {
	return fmt.Sprintf("%s: Pad for %s (from %s) was never used by a balance assertion",
		e.Date.Format("2006-01-02"), e.Account, e.PadAccount)
}

func (e *UnusedPadWarning) GetDate() *ast.Date { return e.Date }

// NewUnusedPadWarning builds an UnusedPadWarning for a pad directive with no matching balance.
func NewUnusedPadWarning(pad *ast.Pad) *UnusedPadWarning {
	return &UnusedPadWarning{Account: pad.Account, PadAccount: pad.AccountPad, Date: pad.Date}
}
