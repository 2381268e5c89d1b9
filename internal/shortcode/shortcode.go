// Package shortcode maps comment ids to short, case-insensitive codes that
// users can read aloud and type back.
package shortcode

import (
	"errors"
	"strconv"
	"strings"
)

const (
	// Width is the number of characters in an encoded code.
	Width = 6

	// Max is the largest id that fits in Width base-36 characters.
	Max int64 = 36*36*36*36*36*36 - 1
)

var (
	ErrInvalid    = errors.New("shortcode: invalid code")
	ErrOutOfRange = errors.New("shortcode: id out of range")
)

// Encode renders id as an upper-case base-36 code, zero-padded to Width.
func Encode(id int64) (string, error) {
	if id < 0 || id > Max {
		return "", ErrOutOfRange
	}
	s := strings.ToUpper(strconv.FormatInt(id, 36))
	if len(s) < Width {
		s = strings.Repeat("0", Width-len(s)) + s
	}
	return s, nil
}

// Decode parses a code produced by Encode. Input is case-insensitive and may
// carry surrounding whitespace; shorter codes without padding are accepted.
func Decode(code string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(code))
	if s == "" {
		return 0, ErrInvalid
	}
	for _, r := range s {
		if !isDigit(r) {
			return 0, ErrInvalid
		}
	}

	s = strings.TrimLeft(s, "0")
	if s == "" {
		return 0, nil
	}
	if len(s) > Width {
		return 0, ErrInvalid
	}

	id, err := strconv.ParseInt(s, 36, 64)
	if err != nil || id > Max {
		return 0, ErrInvalid
	}
	return id, nil
}

func isDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z')
}
