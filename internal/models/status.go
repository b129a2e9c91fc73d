package models

import "strings"

// ModeOf maps any status to its base offering mode (reading, borrow or sale).
// It returns "" for an unknown status.
func ModeOf(s BookStatus) BookStatus {
	switch s {
	case BookStatusReading, BookStatusReadingOut:
		return BookStatusReading
	case BookStatusBorrow, BookStatusBorrowOut:
		return BookStatusBorrow
	case BookStatusSale, BookStatusSoldOut:
		return BookStatusSale
	default:
		return ""
	}
}

// OutStatus returns the exhausted form of a mode.
func OutStatus(mode BookStatus) BookStatus {
	switch ModeOf(mode) {
	case BookStatusReading:
		return BookStatusReadingOut
	case BookStatusBorrow:
		return BookStatusBorrowOut
	case BookStatusSale:
		return BookStatusSoldOut
	default:
		return ""
	}
}

// NormalizeStatus derives the stored status from a mode and a copy count:
// zero copies gives the _out form, anything else the base mode.
func NormalizeStatus(status BookStatus, copies int) BookStatus {
	mode := ModeOf(status)
	if mode == "" {
		return ""
	}
	if copies <= 0 {
		return OutStatus(mode)
	}
	return mode
}

// ParseStatus accepts the wire spellings used by the front desk
// ("borrow", "Borrow Out", "sold-out", ...).
func ParseStatus(s string) BookStatus {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	switch v {
	case "reading", "read":
		return BookStatusReading
	case "reading_out":
		return BookStatusReadingOut
	case "borrow", "borrowing":
		return BookStatusBorrow
	case "borrow_out", "borrowed_out":
		return BookStatusBorrowOut
	case "sale", "for_sale":
		return BookStatusSale
	case "sold_out", "sale_out":
		return BookStatusSoldOut
	default:
		return ""
	}
}

// ParseAction normalizes a transaction action filter; "" and "all" yield "".
func ParseAction(s string) (TransactionAction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", true
	case "borrow":
		return TransactionActionBorrow, true
	case "buy", "sale", "sell":
		return TransactionActionBuy, true
	case "read", "reading":
		return TransactionActionRead, true
	default:
		return "", false
	}
}
