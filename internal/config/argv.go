package config

import (
	"fmt"
	"strings"
	"unicode"
)

// parseArgv splits a command line with POSIX shell quoting: single quotes are
// literal, double quotes and bare words honor backslash escapes. A line that
// starts with '#' is treated as unset.
func parseArgv(input string) ([]string, error) {
	line := strings.TrimSpace(input)
	if line == "" || line[0] == '#' {
		return nil, nil
	}

	var (
		argv    []string
		word    strings.Builder
		inWord  bool
		state   = argvBare
		escaped bool
	)
	for _, r := range line {
		if escaped {
			word.WriteRune(r)
			escaped = false
			continue
		}
		switch state {
		case argvSingle:
			if r == '\'' {
				state = argvBare
			} else {
				word.WriteRune(r)
			}
		case argvDouble:
			switch r {
			case '"':
				state = argvBare
			case '\\':
				escaped = true
			default:
				word.WriteRune(r)
			}
		default:
			switch {
			case unicode.IsSpace(r):
				if inWord {
					argv = append(argv, word.String())
					word.Reset()
					inWord = false
				}
				continue
			case r == '\'':
				state = argvSingle
			case r == '"':
				state = argvDouble
			case r == '\\':
				escaped = true
			default:
				word.WriteRune(r)
			}
		}
		inWord = true
	}

	switch {
	case escaped:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	case state != argvBare:
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	if inWord {
		argv = append(argv, word.String())
	}
	return argv, nil
}

type argvState int

const (
	argvBare argvState = iota
	argvSingle
	argvDouble
)

// mustParseArgv is for compiled-in defaults only.
func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
