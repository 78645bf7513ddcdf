// Package cli provides the raw-string tokenizer used at the command
// boundary.
package cli

import "strings"

// Command is the parsed form of a raw input line. Flags are boolean only:
// "--name value" sets the flag and emits value as a positional argument.
type Command struct {
	Name  string
	Args  []string
	Flags map[string]bool
}

// Tokenize splits a raw line into command, positional arguments and flags.
// Quoting is honored for single and double quotes; a quoted token may
// contain spaces. An empty line yields an empty command name.
func Tokenize(raw string) Command {
	cmd := Command{Flags: make(map[string]bool)}

	tokens := splitTokens(raw)
	if len(tokens) == 0 {
		return cmd
	}

	cmd.Name = tokens[0]
	for _, tok := range tokens[1:] {
		switch {
		case strings.HasPrefix(tok, "--"):
			if name := tok[2:]; name != "" {
				cmd.Flags[name] = true
			}
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			// Short flags may be bundled: -ab sets a and b.
			for _, r := range tok[1:] {
				cmd.Flags[string(r)] = true
			}
		default:
			cmd.Args = append(cmd.Args, tok)
		}
	}
	return cmd
}

// splitTokens splits on whitespace outside quotes. Quote characters are
// stripped from the emitted tokens.
func splitTokens(raw string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
	)

	flush := func() {
		if inToken {
			tokens = append(tokens, current.String())
			current.Reset()
			inToken = false
		}
	}

	for _, r := range raw {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	flush()
	return tokens
}
