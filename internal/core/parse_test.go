package core

import (
	"reflect"
	"testing"
)

func TestTokenizeCommandLine(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"/ping", []string{"/ping"}},
		{"/echo a b", []string{"/echo", "a", "b"}},
		{`/echo "b c" d`, []string{"/echo", "b c", "d"}},
		{`/echo 'quoted here'`, []string{"/echo", "quoted here"}},
		{`/echo esc\ aped`, []string{"/echo", "esc aped"}},
		{`/echo "mixed 'inner'"`, []string{"/echo", "mixed 'inner'"}},
		{"/echo\ttab\nnewline", []string{"/echo", "tab", "newline"}},
	}
	for _, c := range cases {
		got := tokenizeCommandLine(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("tokenize(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	pos, flags, bools := parseFlags([]string{
		"hello", "--date=2025-01-01", "--time", "09:30", "--quiet", "-v", "-xyz", "world",
	})

	if !reflect.DeepEqual(pos, []string{"hello", "world"}) {
		t.Fatalf("positionals = %v", pos)
	}
	if flags["date"] != "2025-01-01" || flags["time"] != "09:30" {
		t.Fatalf("flags = %v", flags)
	}
	if !bools["quiet"] || !bools["v"] || !bools["x"] || !bools["y"] || !bools["z"] {
		t.Fatalf("bools = %v", bools)
	}
}

func TestParseFlagsValueAfterBoolGroup(t *testing.T) {
	pos, flags, bools := parseFlags([]string{"--flag", "--key", "value"})
	if len(pos) != 0 {
		t.Fatalf("positionals = %v", pos)
	}
	if !bools["flag"] {
		t.Fatalf("bools = %v", bools)
	}
	if flags["key"] != "value" {
		t.Fatalf("flags = %v", flags)
	}
}

func TestNewReqIDLength(t *testing.T) {
	a, b := newReqID(), newReqID()
	if len(a) != 8 || len(b) != 8 {
		t.Fatalf("req id lengths: %q %q", a, b)
	}
	if a == b {
		t.Fatalf("req ids collided: %q", a)
	}
}
