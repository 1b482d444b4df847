package model

import (
	"fmt"
	"strconv"
	"strings"
)

// PaymentKind distinguishes the two code shapes a polymorphic top-up
// service accepts.
type PaymentKind string

const (
	// Prepaid codes carry a top-up amount alongside the phone number and
	// are persisted as the composite "phone|amount" business key.
	Prepaid PaymentKind = "prepaid"
	// Postpaid codes are a bare subscriber number.
	Postpaid PaymentKind = "postpaid"
)

// Code is the parsed business key for one unit of work. The raw
// "phone|amount" delimiter convention is resolved here, once, at the intake
// boundary; downstream components never re-split strings.
type Code struct {
	Kind   PaymentKind
	Phone  string
	Amount int64
}

// ParseCode parses one line of user input into a Code. A "|" delimiter
// marks a prepaid top-up with its amount; anything else is a bare
// subscriber or bill code.
func ParseCode(raw string) (Code, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Code{}, fmt.Errorf("empty code")
	}
	phone, amountPart, found := strings.Cut(raw, "|")
	phone = strings.TrimSpace(phone)
	if !found {
		return Code{Kind: Postpaid, Phone: phone}, nil
	}
	if phone == "" {
		return Code{}, fmt.Errorf("prepaid code %q has no phone number", raw)
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(amountPart), 10, 64)
	if err != nil {
		return Code{}, fmt.Errorf("prepaid code %q has invalid amount: %v", raw, err)
	}
	if amount <= 0 {
		return Code{}, fmt.Errorf("prepaid code %q has non-positive amount", raw)
	}
	return Code{Kind: Prepaid, Phone: phone, Amount: amount}, nil
}

// String renders the code back to its stored business-key form.
func (c Code) String() string {
	if c.Kind == Prepaid {
		return c.Phone + "|" + strconv.FormatInt(c.Amount, 10)
	}
	return c.Phone
}
