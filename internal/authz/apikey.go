package authz

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Admin API keys are stored as argon2id hashes with the cost parameters
// encoded alongside, so verification always replays the original cost.
// Format: argon2id$v=1$m=<KiB>,t=<iters>,p=<threads>$<salt-b64>$<hash-b64>

const apiKeyAlgo = "argon2id"

var ErrBadKeyHash = errors.New("malformed api key hash")

type apiKeyParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
	saltLen uint32
}

var currentKeyParams = apiKeyParams{
	memory:  64 * 1024, // 64 MiB
	time:    3,
	threads: 1,
	keyLen:  32,
	saltLen: 16,
}

// HashAPIKey derives the storable hash for a raw key. Used by the ops CLI
// when provisioning ADMIN_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	salt := make([]byte, currentKeyParams.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(key), salt, currentKeyParams.time, currentKeyParams.memory, currentKeyParams.threads, currentKeyParams.keyLen)
	return fmt.Sprintf("%s$v=1$m=%d,t=%d,p=%d$%s$%s",
		apiKeyAlgo,
		currentKeyParams.memory,
		currentKeyParams.time,
		currentKeyParams.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyAPIKey checks a presented key against the stored hash in constant
// time. A malformed stored hash is an error, not a mismatch, so operators
// notice broken provisioning.
func VerifyAPIKey(encoded, key string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != apiKeyAlgo || parts[1] != "v=1" {
		return false, ErrBadKeyHash
	}
	var p apiKeyParams
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return false, ErrBadKeyHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, ErrBadKeyHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrBadKeyHash
	}

	got := argon2.IDKey([]byte(key), salt, p.time, p.memory, p.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
