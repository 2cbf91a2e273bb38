package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"39,90", 3990, true},
		{"0.01", 1, true},
		{"0,005", 1, true}, // half-up rounding
		{"12,345", 1235, true},
		{" 2.50 ", 250, true},
		{"R$ 35,00", 3500, true},
		{"R$12", 1200, true},
		{"R$ 1.234,56", 123456, true},
		{"1234.56", 123456, true},
		{"1,234.56", 123456, true},
		{"1.234", 123400, true},
		{"1.234.567,8", 123456780, true},
		{"12.5", 1250, true},
		{"-1", 0, false},
		{"-10,00", 0, false},
		{"0", 0, false},
		{"0,00", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"R$", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.ok {
				if err != nil || got.Cents != tt.want {
					t.Fatalf("ParseMoney(%q) = %d, %v; want %d", tt.in, got.Cents, err, tt.want)
				}
				return
			}
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("ParseMoney(%q) error = %v, want ErrInvalidAmount", tt.in, err)
			}
		})
	}
}

func TestMoneyFromFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
		ok   bool
	}{
		{39.9, 3990, true},
		{39.900, 3990, true},
		{0.125, 13, true},
		{12.345, 1235, true},
		{1.005, 101, true},
		{1234, 123400, true},
		{0.001, 0, false},
		{0, 0, false},
		{-5, 0, false},
	}
	for _, tt := range tests {
		got, err := MoneyFromFloat(tt.in)
		if tt.ok {
			if err != nil || got.Cents != tt.want {
				t.Errorf("MoneyFromFloat(%v) = %d, %v; want %d", tt.in, got.Cents, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("MoneyFromFloat(%v) error = %v, want ErrInvalidAmount", tt.in, err)
		}
	}
}

func TestMoneyFormatting(t *testing.T) {
	m := Money{Cents: 3990}
	if got := m.Decimal(); got != "39.90" {
		t.Fatalf("Decimal() = %q, want 39.90", got)
	}
	if got := (Money{Cents: -5}).Decimal(); got != "-0.05" {
		t.Fatalf("Decimal() = %q, want -0.05", got)
	}
	if s := m.String(); !strings.HasPrefix(s, "R$ ") || !strings.Contains(s, "39") {
		t.Fatalf("String() = %q, want BRL formatted amount", s)
	}
	if sum := m.Add(Money{Cents: 10}); sum.Cents != 4000 {
		t.Fatalf("Add() = %d, want 4000", sum.Cents)
	}
}
