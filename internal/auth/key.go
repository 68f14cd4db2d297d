package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	keyBytes  = 32
	saltBytes = 16
	hashBytes = 32

	hashTime    = 1
	hashMemory  = 64 * 1024
	hashThreads = 4
)

// GenerateKey returns a fresh admin API key. The key is shown once at
// generation; only its hash is stored.
func GenerateKey() (string, error) {
	raw := make([]byte, keyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "pulse_" + base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashKey derives an argon2id hash of the key in PHC string format, so
// the stored value carries its own salt and cost parameters.
func HashKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("api key is required")
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(trimmed), salt, hashTime, hashMemory, hashThreads, hashBytes)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemory, hashTime, hashThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// VerifyKey checks a presented key against a stored PHC hash using the
// parameters embedded in the hash, so old hashes survive cost changes.
func VerifyKey(key, encoded string) bool {
	trimmedKey := strings.TrimSpace(key)
	trimmedHash := strings.TrimSpace(encoded)
	if trimmedKey == "" || trimmedHash == "" {
		return false
	}

	params, salt, want, err := decodeHash(trimmedHash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(trimmedKey), salt, params.time, params.memory, params.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decodeHash(encoded string) (hashParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return hashParams{}, nil, nil, fmt.Errorf("malformed argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return hashParams{}, nil, nil, fmt.Errorf("parse argon2 version: %w", err)
	}
	if version != argon2.Version {
		return hashParams{}, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var p hashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return hashParams{}, nil, nil, fmt.Errorf("parse argon2 parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return hashParams{}, nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return hashParams{}, nil, nil, fmt.Errorf("decode hash: %w", err)
	}
	return p, salt, sum, nil
}
