package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Known category tags. Any other value is accepted and displayed verbatim.
const (
	CategorySalary        = "salary"
	CategoryBusiness      = "business"
	CategoryInvestment    = "investment"
	CategoryFood          = "food"
	CategoryShopping      = "shopping"
	CategoryTransport     = "transport"
	CategoryEntertainment = "entertainment"
	CategoryBills         = "bills"
	CategoryEMI           = "emi"
	CategoryOther         = "other"
)

// DateLayout is the wire format of a transaction date.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	// Date is a calendar date. A value that could not be parsed keeps its
	// original text so it survives a load/persist round trip.
	Date struct {
		time.Time
		raw string
	}

	Transaction struct {
		ID       int64           `json:"id"`
		Name     string          `json:"name"`
		Amount   Amount          `json:"amount"`
		Type     TransactionType `json:"type"`
		Category string          `json:"category"`
		Date     Date            `json:"date"`
	}
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrEmptyName      = fmt.Errorf("%w: empty name", ErrInvalidInput)
	ErrInvalidAmount  = fmt.Errorf("%w: amount is not a finite number", ErrInvalidInput)
	ErrNegativeAmount = fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	ErrInvalidType    = fmt.Errorf("%w: type must be income or expense", ErrInvalidInput)
	ErrInvalidDate    = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
)

// Categories returns the known category tags in display order.
func Categories() []string {
	return []string{
		CategorySalary, CategoryBusiness, CategoryInvestment,
		CategoryFood, CategoryShopping, CategoryTransport,
		CategoryEntertainment, CategoryBills, CategoryEMI, CategoryOther,
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTransactionType is case-insensitive and ignores surrounding spaces.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD and, for stored data written by other
// clients, full RFC 3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, ErrInvalidDate
}

func (d Date) String() string {
	if d.IsZero() {
		return d.raw
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON never fails on an unparseable string; the date becomes
// zero and sorts last.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{raw: s}
		return nil
	}
	*d = parsed
	return nil
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() Amount {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}
