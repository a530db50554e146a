package normalize_test

import (
	"testing"

	"codeduel/internal/judge/normalize"
)

func TestOutput(t *testing.T) {
	n := normalize.New(nil)
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "hello", want: "hello"},
		{name: "crlf", raw: "1\r\n2\r\n", want: "1\n2"},
		{name: "blank lines dropped", raw: "\n\n1\n   \n2\n\n", want: "1\n2"},
		{name: "compiler warning dropped", raw: "main.c:3: Warning: unused variable\n42", want: "42"},
		{name: "note dropped", raw: "note: expanded from macro\n7", want: "7"},
		{name: "vendor marker dropped", raw: "JDoodle quota notice\nok", want: "ok"},
		{name: "inner indentation kept", raw: "a\n  b", want: "a\n  b"},
		{name: "empty", raw: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := n.Output(tc.raw); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestOutputIdempotent(t *testing.T) {
	n := normalize.New(nil)
	inputs := []string{
		"  x\r\n\r\ny  \r\n",
		"warning: a\nNOTE: b\n\t\n c \n",
		"a\r\r\nb",
		"\r\n\r\n",
		"line1\n  line2\n\nline3",
	}
	for _, in := range inputs {
		once := n.Output(in)
		if twice := n.Output(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCustomMarkers(t *testing.T) {
	n := normalize.New([]string{"Sandbox"})
	if got := n.Output("sandbox: started\n1\nwarning: kept"); got != "1\nwarning: kept" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestCanonical(t *testing.T) {
	if got := normalize.Canonical("\r\n 1 2\r\n3 \r\n"); got != "1 2\n3" {
		t.Fatalf("unexpected canonical %q", got)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"abcdef", 3, "abc"},
		{"ab", 3, "ab"},
		{"héllo", 2, "hé"},
		{"abc", 0, ""},
	}
	for _, tc := range cases {
		if got := normalize.Truncate(tc.in, tc.limit); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}
