package main

import (
	"os"
	"strings"

	"shopadmin/internal/cli"
)

// lookupCommands maps an id prefix to the command that shows it.
var lookupCommands = []struct {
	prefix string
	cmd    []string
}{
	{"cat-", []string{"categories", "show"}},
	{"prd-", []string{"products", "show"}},
	{"usr-", []string{"users", "show"}},
}

func lookupFor(s string) []string {
	s = strings.TrimSpace(s)
	for _, l := range lookupCommands {
		if strings.HasPrefix(s, l.prefix) && len(s) > len(l.prefix) {
			return l.cmd
		}
	}
	return nil
}

func rewriteDirectLookupArgs(argv []string) []string {
	// Convenience: `shopadmin <prd-id>` works like `shopadmin products show <prd-id>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
	// Persistent flags may come first, so we look for the first positional token.
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--server":    true,
		"--format":    true,
		"--debug-log": true,
	}

	insert := func(i int, cmd []string) []string {
		out := make([]string, 0, len(argv)+len(cmd))
		out = append(out, argv[:i]...)
		out = append(out, cmd...)
		out = append(out, argv[i:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) {
				if cmd := lookupFor(argv[i+1]); cmd != nil {
					return insert(i+1, cmd)
				}
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if cmd := lookupFor(a); cmd != nil {
			return insert(i, cmd)
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
