package domain

import (
	"encoding/hex"
	"strings"
	"unicode"

	dErrors "desci/pkg/domain-errors"
)

const (
	maxAccountIDLength = 256
	maxTagLength       = 32
	// HashSize is the length in bytes of a content hash.
	HashSize = 32
)

// AccountID is an opaque participant identifier (wallet address, contract
// address, or any other unique string the caller chooses).
type AccountID string

// ParseAccountID validates an account identifier at trust boundaries.
func ParseAccountID(s string) (AccountID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}
	if len(s) > maxAccountIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id must be at most 256 bytes")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "account id contains invalid characters")
		}
	}
	return AccountID(s), nil
}

func (a AccountID) String() string { return string(a) }

func (a AccountID) IsZero() bool { return a == "" }

// Hash is a 32-byte digest. Study records are keyed by it.
type Hash [HashSize]byte

// ParseHash decodes 64 hex characters, with or without a 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s) != hex.EncodedLen(HashSize) {
		return h, dErrors.New(dErrors.CodeInvalidInput, "hash must be 32 bytes of hex")
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, dErrors.New(dErrors.CodeInvalidInput, "hash must be 32 bytes of hex")
	}
	return h, nil
}

// String returns lowercase hex without a prefix.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Tag is a short interned token: 1-32 characters of [A-Za-z0-9_]. Lab
// identifiers, report identifiers and token tags are tags.
type Tag string

// ParseTag validates a tag.
func ParseTag(s string) (Tag, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tag is required")
	}
	if len(s) > maxTagLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tag must be at most 32 characters")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "tag may only contain letters, digits and underscores")
		}
	}
	return Tag(s), nil
}

// MustTag is ParseTag for package-level constants. It panics on error.
func MustTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tag) String() string { return string(t) }
