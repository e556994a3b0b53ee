package config

import (
	"fmt"
	"strings"
	"unicode"
)

// splitCommand breaks a command line into argv using shell-like quoting:
// single and double quotes group words, and a backslash escapes the next rune.
// No expansion of any kind is performed.
func splitCommand(line string) ([]string, error) {
	var (
		argv    []string
		word    strings.Builder
		inWord  bool
		quote   rune
		quoteAt int
		escaped bool
	)

	for i, r := range line {
		if escaped {
			word.WriteRune(r)
			escaped = false
			continue
		}
		if quote != 0 {
			switch {
			case r == quote:
				quote = 0
			case r == '\\' && quote == '"':
				escaped = true
			default:
				word.WriteRune(r)
			}
			continue
		}
		switch {
		case r == '\\':
			escaped, inWord = true, true
		case r == '\'' || r == '"':
			quote, quoteAt, inWord = r, i, true
		case unicode.IsSpace(r):
			if inWord {
				argv = append(argv, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	switch {
	case escaped:
		return nil, fmt.Errorf("command %q ends with a dangling backslash", line)
	case quote != 0:
		return nil, fmt.Errorf("command %q has an unterminated %c quote at offset %d", line, quote, quoteAt)
	}
	if inWord {
		argv = append(argv, word.String())
	}
	return argv, nil
}

func commandConfig(raw string) (CommandConfig, error) {
	argv, err := splitCommand(raw)
	if err != nil {
		return CommandConfig{}, err
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}
