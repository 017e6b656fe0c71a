// Package cryptox implements password hashing for stored user credentials.
//
// New digests use argon2id in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
//
// bcrypt digests ($2a$, $2b$, $2y$) are still accepted by VerifyPassword so
// accounts imported from older systems keep working.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Parameters of freshly created digests.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// Upper bounds accepted from a stored digest. A digest claiming more is
// treated as malformed instead of burning CPU and memory on it.
const (
	maxTime    = 10
	maxMemory  = 1024 * 1024
	maxThreads = 64
	maxKeyLen  = 128
)

const argonPrefix = "$argon2id$"

var b64 = base64.RawStdEncoding

// DeriveKey runs argon2id with the default parameters.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// HashPassword returns a self-contained argon2id digest of password with a
// fresh random salt. Two calls with the same password yield different
// digests.
func HashPassword(password []byte) (string, error) {
	salt := common.GenerateRandByteArray(saltLen)
	key := DeriveKey(password, salt)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argonPrefix, argon2.Version, argonMemory, argonTime, argonThreads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches digest. A digest that can
// not be parsed never matches.
func VerifyPassword(password []byte, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argonPrefix):
		return verifyArgon2(password, digest)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(digest), password) == nil
	default:
		return false
	}
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func verifyArgon2(password []byte, digest string) bool {
	p, ok := parseArgon2(digest)
	if !ok {
		return false
	}
	candidate := argon2.IDKey(password, p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(candidate, p.key) == 1
}

// parseArgon2 splits "$argon2id$v=19$m=..,t=..,p=..$salt$hash".
func parseArgon2(digest string) (*argonParams, bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, false
	}

	var memory, iterations, threads uint64
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil || n != 3 {
		return nil, false
	}
	if memory == 0 || memory > maxMemory || iterations == 0 || iterations > maxTime || threads == 0 || threads > maxThreads {
		return nil, false
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, false
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxKeyLen {
		return nil, false
	}

	return &argonParams{
		memory:  uint32(memory),
		time:    uint32(iterations),
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, true
}
