// Package hashutil derives file names from cache keys.
package hashutil

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
)

// DefaultAlgo is the algorithm used to derive entry names when none is configured.
const DefaultAlgo = "sha256"

type algorithm struct {
	new  func() hash.Hash
	size int
}

var algorithms = map[string]algorithm{
	"sha256": {sha256.New, sha256.Size},
	"sha512": {sha512.New, sha512.Size},
}

func IsSupported(name string) bool {
	_, ok := algorithms[name]
	return ok
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sum hashes the UTF-8 bytes of s with the named algorithm and returns the hex digest.
func Sum(algo, s string) (string, error) {
	a, ok := algorithms[algo]
	if !ok {
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
	h := a.new()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsDigest reports whether name has the shape of a lowercase hex digest of algo.
func IsDigest(algo, name string) bool {
	a, ok := algorithms[algo]
	if !ok || len(name) != 2*a.size {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
