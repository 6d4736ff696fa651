package models

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. It exists so that amounts never travel
// through binary floats: DynamoDB sees a number attribute built from the
// decimal string form, and all comparisons happen in decimal arithmetic.
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal string such as "100.00".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Money{d}, nil
}

// MustMoney parses a decimal string and panics on failure. For fixtures and
// seed data only.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromDecimal wraps an existing decimal value.
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{d} }

// ZeroMoney returns the zero amount.
func ZeroMoney() Money { return Money{decimal.Zero} }

// MarshalDynamoDBAttributeValue writes the amount as a DynamoDB number
// attribute using the exact decimal string form.
func (m Money) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.Decimal.String()}, nil
}

// UnmarshalDynamoDBAttributeValue reads a number attribute back into an
// exact decimal. String attributes are accepted too since seed data written
// by earlier tooling stored amounts as strings.
func (m *Money) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		m.Decimal = decimal.Zero
		return nil
	default:
		return fmt.Errorf("amount attribute has unexpected type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parse amount attribute %q: %w", raw, err)
	}
	m.Decimal = d
	return nil
}
