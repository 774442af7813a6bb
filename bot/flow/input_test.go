package flow

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1000", 1000, true},
		{"0", 0, true},
		{"۱۰۰۰", 1000, true},
		{"١٢", 12, true},
		{" 1000", 0, false},
		{"10.5", 0, false},
		{"-5", 0, false},
		{"", 0, false},
		{"9223372036854775808", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseAmount(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseAmount(%q) = %d, %v", tc.in, got, ok)
		}
	}
}

func TestParseCardNumber(t *testing.T) {
	valid := map[string]string{
		"4111111111111111":      "4111111111111111",
		" 4111 1111 1111 1111 ": "4111111111111111",
		"4111-1111-1111-1111":   "4111111111111111",
		"۴۱۱۱۱۱۱۱۱۱۱۱۱۱۱۱":      "4111111111111111",
		"6011 0009 9013 9424":   "6011000990139424",
	}
	for in, want := range valid {
		got, ok := parseCardNumber(in)
		if !ok || got != want {
			t.Fatalf("parseCardNumber(%q) = %q, %v", in, got, ok)
		}
	}
	for _, in := range []string{"", "4111", "4111111111111112", "4111_1111_1111_1111", "41111111111111111111"} {
		if _, ok := parseCardNumber(in); ok {
			t.Fatalf("parseCardNumber(%q) accepted", in)
		}
	}
}

func TestMaskCard(t *testing.T) {
	if got := MaskCard("4111111111111111"); got != "411111******1111" {
		t.Fatalf("MaskCard = %q", got)
	}
	if got := MaskCard("1234"); got != "****" {
		t.Fatalf("short MaskCard = %q", got)
	}
}
