package mcp

import (
	"runtime"
	"strings"
	"testing"
)

func TestIsBareCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path rules")
	}

	tests := []struct {
		command string
		want    bool
	}{
		{"npx", true},
		{"uvx", true},
		{"python3", true},
		{"/usr/bin/python3", false},
		{"./server", false},
		{"bin/server", false},
		{"", true},
	}

	for _, tt := range tests {
		if got := isBareCommand(tt.command); got != tt.want {
			t.Errorf("isBareCommand(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestShQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", `'plain'`},
		{"", `''`},
		{"has space", `'has space'`},
		{"it's", `'it'\''s'`},
		{"''", `''\'''\'''`},
		{"$HOME", `'$HOME'`},
		{"a;rm -rf /", `'a;rm -rf /'`},
		{"back`tick`", "'back`tick`'"},
	}

	for _, tt := range tests {
		if got := shQuote(tt.in); got != tt.want {
			t.Errorf("shQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// evalSingleQuoted undoes POSIX single-quote escaping: it walks a
// quoted word and reconstructs the literal argument a shell would hand
// to the program.
func evalSingleQuoted(t *testing.T, quoted string) string {
	t.Helper()

	var out strings.Builder
	inQuote := false
	i := 0
	for i < len(quoted) {
		c := quoted[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			i++
		case !inQuote && c == '\\' && i+1 < len(quoted):
			out.WriteByte(quoted[i+1])
			i += 2
		case !inQuote:
			t.Fatalf("unquoted byte %q in %s", c, quoted)
		default:
			out.WriteByte(c)
			i++
		}
	}
	if inQuote {
		t.Fatalf("unterminated quote in %s", quoted)
	}
	return out.String()
}

func TestShQuoteRoundTrip(t *testing.T) {
	inputs := []string{
		"simple",
		"with spaces and\ttabs",
		"single'quote",
		"'''",
		`"double"`,
		"$VAR `cmd` $(cmd) ; && || > < | &",
		"newline\nin arg",
		"trailing'",
		"'leading",
	}

	for _, in := range inputs {
		quoted := shQuote(in)
		if got := evalSingleQuoted(t, quoted); got != in {
			t.Errorf("round trip of %q through %s = %q", in, quoted, got)
		}
	}
}

func TestComposeShellLine(t *testing.T) {
	got := composeShellLine("npx", []string{"-y", "@scope/pkg", "it's"})
	want := `'npx' '-y' '@scope/pkg' 'it'\''s'`
	if got != want {
		t.Errorf("composeShellLine() = %s, want %s", got, want)
	}
}

func TestLoginShellFallback(t *testing.T) {
	t.Setenv("SHELL", "")
	if got := loginShell(); got != fallbackShell {
		t.Errorf("loginShell() = %q, want %q", got, fallbackShell)
	}

	t.Setenv("SHELL", "/bin/bash")
	if got := loginShell(); got != "/bin/bash" {
		t.Errorf("loginShell() = %q, want /bin/bash", got)
	}
}

func FuzzShQuote(f *testing.F) {
	f.Add("plain")
	f.Add("it's")
	f.Add("'")
	f.Add("$(rm -rf /)")
	f.Fuzz(func(t *testing.T, in string) {
		if got := evalSingleQuoted(t, shQuote(in)); got != in {
			t.Errorf("round trip of %q = %q", in, got)
		}
	})
}
