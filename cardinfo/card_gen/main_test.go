package main

import "testing"

func TestCheckReport(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"4000008449433403", "VALID 400000******3403", true},
		{"4000 0084 4943 3403", "VALID 400000******3403", true},
		{"4000008449433404", "INVALID: expected check digit 3", false},
		{"abc", "INVALID: not a card number", false},
		{"", "INVALID: not a card number", false},
	}
	for _, c := range cases {
		got, ok := checkReport(c.in)
		if got != c.out || ok != c.ok {
			t.Fatalf("checkReport(%q) = %q,%v want %q,%v", c.in, got, ok, c.out, c.ok)
		}
	}
}
