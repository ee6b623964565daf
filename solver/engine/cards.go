package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NumCards is the number of card kinds in a match.
const NumCards = 44

const kana = "あいうえおかきくけこさしすせそたちつてとなにぬねのはひふへほまみむめもやゆよらりるれろわ"

var kanaRunes = []rune(kana)

var ErrCardOutOfRange = errors.New("card index must be between 1 and 44")

// CardIndex identifies one of the 44 card kinds (1..44). The zero value is invalid.
type CardIndex uint8

func NewCardIndex(n int) (CardIndex, error) {
	if n < 1 || n > NumCards {
		return 0, fmt.Errorf("%w: got %d", ErrCardOutOfRange, n)
	}
	return CardIndex(n), nil
}

// MustCardIndex is NewCardIndex for constants and tests.
func MustCardIndex(n int) CardIndex {
	c, err := NewCardIndex(n)
	if err != nil {
		panic(err)
	}
	return c
}

// CardFromSymbol looks a card up by its kana.
func CardFromSymbol(s string) (CardIndex, error) {
	s = norm.NFKC.String(strings.TrimSpace(s))
	if r := []rune(s); len(r) == 1 {
		for i, k := range kanaRunes {
			if k == r[0] {
				return CardIndex(i + 1), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown symbol %q", ErrCardOutOfRange, s)
}

// CardFromCode parses the zero-padded form used on the wire ("01".."44").
func CardFromCode(s string) (CardIndex, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("card code %q: %w", s, err)
	}
	return NewCardIndex(n)
}

// AllCards returns every card in ascending order.
func AllCards() []CardIndex {
	out := make([]CardIndex, NumCards)
	for i := range out {
		out[i] = CardIndex(i + 1)
	}
	return out
}

func (c CardIndex) Int() int    { return int(c) }
func (c CardIndex) Valid() bool { return c >= 1 && c <= NumCards }

func (c CardIndex) String() string {
	if !c.Valid() {
		return fmt.Sprintf("CardIndex(%d)", int(c))
	}
	return string(kanaRunes[c-1])
}

// Code is the two-digit zero-padded form posted as an answer.
func (c CardIndex) Code() string { return fmt.Sprintf("%02d", int(c)) }

func (c CardIndex) bit() uint64 { return 1 << uint(c) }

// Codes converts cards to their answer codes.
func Codes(cs []CardIndex) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Code()
	}
	return out
}
