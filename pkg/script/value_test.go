package script

import "testing"

func TestParseValueCoercion(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
	}{
		{"42", KindInt},
		{"-5", KindInt},
		{"3.14", KindFloat},
		{"hello", KindString},
		{"", KindString},
		{"1e3", KindFloat},
		{"0x10", KindString},
	}
	for _, tt := range tests {
		v := ParseValue(tt.in)
		if v.Kind() != tt.kind {
			t.Errorf("ParseValue(%q): kind = %v, want %v", tt.in, v.Kind(), tt.kind)
		}
		if v.Text() != tt.in {
			t.Errorf("ParseValue(%q).Text() = %q", tt.in, v.Text())
		}
	}
	if ParseValue("42").Int() != 42 {
		t.Errorf("ParseValue(42).Int() != 42")
	}
	if ParseValue("-5").Int() != -5 {
		t.Errorf("ParseValue(-5).Int() != -5")
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{IntValue(0), false},
		{IntValue(7), true},
		{IntValue(-1), true},
		{FloatValue(0), false},
		{FloatValue(0.5), true},
		{StringValue(""), false},
		{StringValue("0"), false},
		{StringValue("false"), true},
		{StringValue("x"), true},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
