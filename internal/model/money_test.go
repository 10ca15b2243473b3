package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{in: "1500", want: 150000},
		{in: "1500.25", want: 150025},
		{in: " 0.5 ", want: 50},
		{in: "-12.10", want: -1210},
		{in: "1.005", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("expected ErrInvalidAmount, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMoneySub(t *testing.T) {
	if got, err := Money(1000).Sub(400); err != nil || got != 600 {
		t.Fatalf("Sub = %d, %v", got, err)
	}
	if _, err := Money(100).Sub(101); !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
	if got := Money(100).SubAllowNegative(150); got != -50 {
		t.Fatalf("SubAllowNegative = %d", got)
	}
	if got := Sum(1, 2, 3); got != 6 {
		t.Fatalf("Sum = %d", got)
	}
}

func TestMoneyCheckedArithmetic(t *testing.T) {
	if got, err := Money(1500).AddChecked(1500); err != nil || got != 3000 {
		t.Fatalf("AddChecked = %d, %v", got, err)
	}
	if _, err := Money(math.MaxInt64 - 10).AddChecked(11); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("positive overflow: %v", err)
	}
	if _, err := Money(math.MinInt64 + 10).AddChecked(-11); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative overflow: %v", err)
	}

	if got, err := Money(25000).MulChecked(4); err != nil || got != 100000 {
		t.Fatalf("MulChecked = %d, %v", got, err)
	}
	if _, err := Money(math.MaxInt64 / 3).MulChecked(4); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("multiply overflow: %v", err)
	}
	if _, err := Money(math.MinInt64).MulChecked(-1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negate min: %v", err)
	}

	if got, err := SumChecked(1000, 2000); err != nil || got != 3000 {
		t.Fatalf("SumChecked = %d, %v", got, err)
	}
	half := Money(math.MaxInt64/2 + 10)
	if _, err := SumChecked(half, half); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("sum overflow: %v", err)
	}
}

func TestBuildLinesRejectOverflow(t *testing.T) {
	half := Money(math.MaxInt64/2 + 10)
	if _, _, err := BuildQuotationLines([]CostLine{{Description: "a", Amount: half}, {Description: "b", Amount: half}}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("quotation total overflow: %v", err)
	}

	lines, total, err := BuildPurchaseOrderLines([]OrderLine{{ProductName: "Beam", Quantity: 3, UnitPrice: 2500}})
	if err != nil || total != 7500 || lines[0].LineTotal != 7500 {
		t.Fatalf("order lines = %+v, %d, %v", lines, total, err)
	}
	if _, _, err := BuildPurchaseOrderLines([]OrderLine{{ProductName: "Beam", Quantity: 4, UnitPrice: math.MaxInt64 / 3}}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("line total overflow: %v", err)
	}
	if _, _, err := BuildPurchaseOrderLines([]OrderLine{
		{ProductName: "a", Quantity: 1, UnitPrice: half},
		{ProductName: "b", Quantity: 1, UnitPrice: half},
	}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("order total overflow: %v", err)
	}
}

func TestMoneyJSON(t *testing.T) {
	line := CostLine{Description: "Survey", Amount: 123456}
	data, err := json.Marshal(line)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"description":"Survey","amount":"1234.56"}` {
		t.Fatalf("unexpected json: %s", data)
	}

	var fromNumber CostLine
	if err := json.Unmarshal([]byte(`{"description":"x","amount":12.5}`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if fromNumber.Amount != 1250 {
		t.Fatalf("amount = %d", fromNumber.Amount)
	}

	var bad CostLine
	if err := json.Unmarshal([]byte(`{"amount":"1.234"}`), &bad); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
