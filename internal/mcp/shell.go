package mcp

import (
	"os"
	"runtime"
	"strings"
)

// fallbackShell is used when $SHELL is unset.
const fallbackShell = "/bin/zsh"

// isBareCommand reports whether command looks like a bare program name
// with no path separator. Bare commands are resolved through the user's
// login shell so that shell-managed PATH customizations (nvm, rbenv,
// etc.) apply to the spawned process.
func isBareCommand(command string) bool {
	if runtime.GOOS == "windows" {
		return !strings.ContainsAny(command, `\/:`)
	}
	return !strings.Contains(command, "/")
}

// shQuote escapes arg for inclusion in a single-quoted shell word.
// The string is wrapped in single quotes and each embedded single quote
// is replaced with the POSIX-safe sequence '\'' (close quote, escaped
// quote, reopen quote). The result is safe to interpolate into a shell
// command line regardless of the bytes arg contains.
func shQuote(arg string) string {
	var b strings.Builder
	b.Grow(len(arg) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(arg); i++ {
		if arg[i] == '\'' {
			b.WriteString(`'\''`)
		} else {
			b.WriteByte(arg[i])
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// composeShellLine builds the single command line handed to the login
// shell's -c: every word individually quoted via shQuote.
func composeShellLine(command string, args []string) string {
	var b strings.Builder
	b.WriteString(shQuote(command))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(shQuote(a))
	}
	return b.String()
}

// loginShell returns the user's login shell, falling back to a fixed
// default when $SHELL is unset.
func loginShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return fallbackShell
}
