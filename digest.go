package chantal

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"hash"
)

// Digest is a SHA-256 content digest.
//
// Every Blob and Package in chantal is identified by one of these. Unlike claircore's multi-algorithm Digest, chantal only ever
// hashes with SHA-256 (spec.md §3), so the type is trimmed to that one case
// and stores the checksum as lowercase hex, matching the pool's on-disk
// fan-out path component.
type Digest struct {
	sum  [sha256.Size]byte
	repr string
}

// Assert Digest satisfies the interfaces callers expect of it.
var (
	_ fmt.Stringer  = Digest{}
	_ driver.Valuer = Digest{}
)

// Checksum returns the raw 32-byte checksum.
func (d Digest) Checksum() []byte { return d.sum[:] }

// Hash returns a fresh hash.Hash for computing a Digest.
func Hash() hash.Hash { return sha256.New() }

// String returns the lowercase hex representation.
func (d Digest) String() string { return d.repr }

// IsZero reports whether d is the zero value.
func (d Digest) IsZero() bool { return d.repr == "" }

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.repr), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(t []byte) error {
	if len(t) != hex.EncodedLen(sha256.Size) {
		return &DigestError{msg: fmt.Sprintf("bad digest length: %d", len(t))}
	}
	var b [sha256.Size]byte
	if _, err := hex.Decode(b[:], t); err != nil {
		return &DigestError{msg: "unable to decode digest as hex", inner: err}
	}
	d.sum = b
	d.repr = string(t)
	return nil
}

// DigestError is the concrete type backing errors returned from Digest's
// methods.
type DigestError struct {
	msg   string
	inner error
}

// Error implements error.
func (e *DigestError) Error() string { return e.msg }

// Unwrap enables errors.Unwrap.
func (e *DigestError) Unwrap() error { return e.inner }

// Scan implements sql.Scanner.
func (d *Digest) Scan(i any) error {
	switch v := i.(type) {
	case nil:
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	default:
		return &DigestError{msg: fmt.Sprintf("invalid digest type: %T", v)}
	}
}

// Value implements driver.Valuer.
func (d Digest) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.repr, nil
}

// NewDigest constructs a Digest from a raw 32-byte SHA-256 checksum.
func NewDigest(sum []byte) (Digest, error) {
	if len(sum) != sha256.Size {
		return Digest{}, &DigestError{msg: fmt.Sprintf("bad checksum length: %d", len(sum))}
	}
	var d Digest
	copy(d.sum[:], sum)
	d.repr = hex.EncodeToString(sum)
	return d, nil
}

// ParseDigest constructs a Digest from its hex string form, ensuring it's
// well-formed.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	return d, d.UnmarshalText([]byte(s))
}

// MustParseDigest works like ParseDigest but panics if s is not well-formed.
func MustParseDigest(s string) Digest {
	d, err := ParseDigest(s)
	if err != nil {
		panic(fmt.Sprintf("digest %q could not be parsed: %v", s, err))
	}
	return d
}

// FanOut returns the two hex byte-pair directories used for the pool's
// fan-out layout: pool/<aa>/<bb>/<sha256>.
func (d Digest) FanOut() (aa, bb string) {
	return d.repr[:2], d.repr[2:4]
}
