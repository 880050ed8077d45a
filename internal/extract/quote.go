// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var errBadLiteral = errors.New("malformed string literal")

// unquote decodes a JavaScript string literal token, quotes included.
func unquote(lit []byte) (string, error) {
	if len(lit) < 2 || (lit[0] != '"' && lit[0] != '\'') || lit[len(lit)-1] != lit[0] {
		return "", fmt.Errorf("%w: %s", errBadLiteral, lit)
	}
	body := string(lit[1 : len(lit)-1])
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("%w: trailing backslash", errBadLiteral)
		}
		switch c = body[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case 'x':
			r, n, err := hexRune(body[i+1:], 2)
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
			i += n
		case 'u':
			rest := body[i+1:]
			if strings.HasPrefix(rest, "{") {
				end := strings.IndexByte(rest, '}')
				if end < 0 {
					return "", fmt.Errorf("%w: unterminated \\u{", errBadLiteral)
				}
				r, _, err := hexRune(rest[1:end], end-1)
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
				i += end + 1
				continue
			}
			r, n, err := hexRune(rest, 4)
			if err != nil {
				return "", err
			}
			i += n
			// surrogate pair
			if utf8.ValidRune(r) || !strings.HasPrefix(body[i+1:], `\u`) {
				sb.WriteRune(r)
				continue
			}
			lo, m, err := hexRune(body[i+3:], 4)
			if err != nil {
				return "", err
			}
			sb.WriteRune(combineSurrogates(r, lo))
			i += 2 + m
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func hexRune(s string, n int) (rune, int, error) {
	if n <= 0 || len(s) < n {
		return 0, 0, fmt.Errorf("%w: short hex escape", errBadLiteral)
	}
	v, err := strconv.ParseUint(s[:n], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", errBadLiteral, err)
	}
	return rune(v), n, nil
}

func combineSurrogates(hi, lo rune) rune {
	if hi < 0xD800 || hi > 0xDBFF || lo < 0xDC00 || lo > 0xDFFF {
		return utf8.RuneError
	}
	return (hi-0xD800)<<10 + (lo - 0xDC00) + 0x10000
}
