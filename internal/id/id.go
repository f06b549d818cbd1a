// Package id generates short random identifiers for log correlation.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet avoids characters that are easy to confuse when read from a log line.
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// Size of the random part of an identifier.
const Size = 12

// Generate creates a prefixed identifier such as "msg-7hq2k9xw4tnc".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, Size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Message returns a correlation id for one processed mail message.
func Message() string {
	return MustGenerate("msg")
}
