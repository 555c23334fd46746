// Package mnemonic implements BIP39 English mnemonics: entropy to phrase and
// back with checksum verification, and phrase to seed derivation.
package mnemonic

import (
	"crypto/sha256"
	"crypto/sha512"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	seedIterations = 2048
	seedLength     = 64
	bitsPerWord    = 11
)

var (
	ErrInvalidEntropyLength = errors.New("entropy must be 128-256 bits in multiples of 32")
	ErrInvalidWordCount     = errors.New("mnemonic must have 12, 15, 18, 21 or 24 words")
	ErrUnknownWord          = errors.New("word not in wordlist")
	ErrChecksumMismatch     = errors.New("mnemonic checksum mismatch")
)

//go:embed english.txt
var englishList string

var (
	wordList  = strings.Fields(englishList)
	wordIndex = func() map[string]int {
		m := make(map[string]int, len(wordList))
		for i, w := range wordList {
			m[w] = i
		}
		return m
	}()
)

// Words returns a copy of the 2048 word list.
func Words() []string {
	return append([]string(nil), wordList...)
}

// NewEntropy returns bitSize random bits for use with FromEntropy.
func NewEntropy(bitSize int) ([]byte, error) {
	if err := checkEntropyBits(bitSize); err != nil {
		return nil, err
	}
	return common.GenerateRandByteArray(bitSize / 8), nil
}

// Generate returns a fresh phrase with the requested number of words.
func Generate(words int) (string, error) {
	bits, err := entropyBitsForWords(words)
	if err != nil {
		return "", err
	}
	entropy, err := NewEntropy(bits)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(entropy)
	return FromEntropy(entropy)
}

// FromEntropy encodes entropy as a phrase. The checksum is the first
// len(entropy)*8/32 bits of SHA-256(entropy).
func FromEntropy(entropy []byte) (string, error) {
	entBits := len(entropy) * 8
	if err := checkEntropyBits(entBits); err != nil {
		return "", err
	}
	csBits := entBits / 32
	sum := sha256.Sum256(entropy)

	// entropy || checksum as one big integer, then peel off 11-bit groups.
	n := new(big.Int).SetBytes(entropy)
	n.Lsh(n, uint(csBits))
	n.Or(n, big.NewInt(int64(sum[0]>>(8-csBits))))

	count := (entBits + csBits) / bitsPerWord
	words := make([]string, count)
	mask := big.NewInt(1<<bitsPerWord - 1)
	idx := new(big.Int)
	for i := count - 1; i >= 0; i-- {
		idx.And(n, mask)
		words[i] = wordList[idx.Int64()]
		n.Rsh(n, bitsPerWord)
	}
	return strings.Join(words, " "), nil
}

// ToEntropy decodes a phrase back to its entropy, verifying every word and
// the checksum.
func ToEntropy(phrase string) ([]byte, error) {
	words := strings.Fields(Normalize(phrase))
	entBits, err := entropyBitsForWords(len(words))
	if err != nil {
		return nil, err
	}
	csBits := entBits / 32

	n := new(big.Int)
	for _, w := range words {
		i, ok := wordIndex[w]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownWord, w)
		}
		n.Lsh(n, bitsPerWord)
		n.Or(n, big.NewInt(int64(i)))
	}

	checksum := new(big.Int).And(n, big.NewInt(1<<csBits-1)).Int64()
	n.Rsh(n, uint(csBits))

	entropy := make([]byte, entBits/8)
	n.FillBytes(entropy)

	sum := sha256.Sum256(entropy)
	if int64(sum[0]>>(8-csBits)) != checksum {
		return nil, ErrChecksumMismatch
	}
	return entropy, nil
}

// Validate reports whether phrase is a well formed mnemonic with a correct
// checksum.
func Validate(phrase string) bool {
	_, err := ToEntropy(phrase)
	return err == nil
}

// Seed derives the 64-byte BIP39 seed. Seed does not validate the phrase;
// callers that accept user input run Validate first.
func Seed(phrase, passphrase string) []byte {
	p := norm.NFKD.String(Normalize(phrase))
	salt := norm.NFKD.String("mnemonic" + passphrase)
	return pbkdf2.Key([]byte(p), []byte(salt), seedIterations, seedLength, sha512.New)
}

// Normalize applies NFKD, lowercases and collapses whitespace.
func Normalize(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKD.String(phrase))), " ")
}

func checkEntropyBits(bits int) error {
	if bits < 128 || bits > 256 || bits%32 != 0 {
		return ErrInvalidEntropyLength
	}
	return nil
}

func entropyBitsForWords(words int) (int, error) {
	switch words {
	case 12, 15, 18, 21, 24:
		return words * bitsPerWord * 32 / 33, nil
	default:
		return 0, ErrInvalidWordCount
	}
}
