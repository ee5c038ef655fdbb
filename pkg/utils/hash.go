package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// NormalizeQuery trims, lowercases, and collapses whitespace runs so user
// queries that differ only in spacing or casing compare equal.
func NormalizeQuery(input string) string {
	return strings.Join(strings.Fields(strings.ToLower(input)), " ")
}

// QueryKey is the cache key for a user query: the hash of its normalized
// form.
func QueryKey(input string) string {
	return HashString(NormalizeQuery(input))
}
