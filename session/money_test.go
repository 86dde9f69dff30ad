package session

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"10", 1000, false},
		{"10.5", 1050, false},
		{"10.50", 1050, false},
		{"10.500", 1050, false},
		{"0.01", 1, false},
		{".99", 99, false},
		{"-3.25", -325, false},
		{"+7", 700, false},
		{"10.555", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"1e3", 0, true},
		{"--1", 0, true},
		{".", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMoney(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMoney(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoney_String(t *testing.T) {
	tests := map[Money]string{
		0:     "0.00",
		5:     "0.05",
		1050:  "10.50",
		-325:  "-3.25",
		-5:    "-0.05",
		12345: "123.45",
	}
	for m, want := range tests {
		if got := m.String(); got != want {
			t.Errorf("Money(%d).String() = %q, want %q", int64(m), got, want)
		}
	}
}

func TestMoney_MulBasisPoints(t *testing.T) {
	tests := []struct {
		amount Money
		bp     int
		want   Money
	}{
		{10000, 1500, 1500},
		{333, 1500, 50},  // 49.95 rounds up
		{330, 1500, 50},  // 49.5 rounds up
		{329, 1500, 49},  // 49.35 rounds down
		{-333, 1500, -50},
		{0, 1500, 0},
	}
	for _, tt := range tests {
		if got := tt.amount.MulBasisPoints(tt.bp); got != tt.want {
			t.Errorf("%s x %dbp = %s, want %s", tt.amount, tt.bp, got, tt.want)
		}
	}
}

func TestMoney_JSON(t *testing.T) {
	var item struct {
		Price Money `json:"price"`
	}
	if err := json.Unmarshal([]byte(`{"price": 19.99}`), &item); err != nil {
		t.Fatalf("Unmarshal number: %v", err)
	}
	if item.Price != 1999 {
		t.Errorf("Price = %d, want 1999", item.Price)
	}

	if err := json.Unmarshal([]byte(`{"price": "5.5"}`), &item); err != nil {
		t.Fatalf("Unmarshal string: %v", err)
	}
	if item.Price != 550 {
		t.Errorf("Price = %d, want 550", item.Price)
	}

	if err := json.Unmarshal([]byte(`{"price": 1.005}`), &item); err == nil {
		t.Error("expected error for sub-cent precision")
	}

	out, err := json.Marshal(struct {
		Price Money `json:"price"`
	}{Price: 1050})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"price":10.50}` {
		t.Errorf("Marshal = %s, want {\"price\":10.50}", out)
	}
}
