package domain

import (
	"errors"
	"math"
	"time"
	"unicode/utf8"

	"github.com/govalues/decimal"
)

// Limits of the orders table columns.
const (
	MaxUserIDLength  = 50
	MaxNumberOfItems = math.MaxInt32
	TotalAmountScale = 2
)

// NUMERIC(12, 2) holds values below 10^10.
var maxTotalAmount = decimal.MustParse("10000000000")

var (
	ErrUserIDTooLong         = errors.New("user_id exceeds 50 characters")
	ErrEmptyUserID           = errors.New("user_id must not be empty")
	ErrNegativeNumberOfItems = errors.New("number_of_items must not be negative")
	ErrNegativeTotalAmount   = errors.New("total_amount must not be negative")
	ErrTooManyItems          = errors.New("number_of_items is out of range")
	ErrTotalAmountTooLarge   = errors.New("total_amount is out of range")
)

// Order is created once by the billing consumer and never updated.
// ID is assigned by storage on insert.
type Order struct {
	ID            int64
	UserID        string
	NumberOfItems int
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
}

func NewOrder(userID string, numberOfItems int, totalAmount decimal.Decimal) (*Order, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if utf8.RuneCountInString(userID) > MaxUserIDLength {
		return nil, ErrUserIDTooLong
	}
	if numberOfItems < 0 {
		return nil, ErrNegativeNumberOfItems
	}
	if numberOfItems > MaxNumberOfItems {
		return nil, ErrTooManyItems
	}
	if totalAmount.IsNeg() {
		return nil, ErrNegativeTotalAmount
	}
	totalAmount = totalAmount.Round(TotalAmountScale)
	if totalAmount.Cmp(maxTotalAmount) >= 0 {
		return nil, ErrTotalAmountTooLarge
	}
	return &Order{
		UserID:        userID,
		NumberOfItems: numberOfItems,
		TotalAmount:   totalAmount,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
