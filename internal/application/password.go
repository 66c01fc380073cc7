package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidPasswordHash         = errors.New("application: invalid password hash format")
	ErrIncompatiblePasswordVersion = errors.New("application: incompatible password hash version")
)

// Argon2idParams tunes the argon2id key derivation used for stored passwords.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams is used for every account created through UserService.
var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// encodedHash is the decoded form of "$argon2id$v=19$m=..,t=..,p=..$salt$key".
type encodedHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h encodedHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func deriveKey(password string, salt []byte, params Argon2idParams) []byte {
	return argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
}

// CreatePasswordHash derives a salted argon2id hash in the PHC string format.
func CreatePasswordHash(password string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate password salt: %w", err)
	}
	return encodedHash{params: params, salt: salt, key: deriveKey(password, salt, params)}.String(), nil
}

func decodePasswordHash(encoded string) (encodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return encodedHash{}, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return encodedHash{}, ErrInvalidPasswordHash
	}
	if version != argon2.Version {
		return encodedHash{}, ErrIncompatiblePasswordVersion
	}

	var decoded encodedHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &decoded.params.Memory, &decoded.params.Iterations, &decoded.params.Parallelism); err != nil {
		return encodedHash{}, ErrInvalidPasswordHash
	}

	var err error
	if decoded.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return encodedHash{}, ErrInvalidPasswordHash
	}
	if decoded.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(decoded.key) == 0 {
		return encodedHash{}, ErrInvalidPasswordHash
	}
	decoded.params.SaltLength = uint32(len(decoded.salt))
	decoded.params.KeyLength = uint32(len(decoded.key))
	return decoded, nil
}

// VerifyPassword reports ErrInvalidCredentials when password does not match hashedPassword.
func VerifyPassword(hashedPassword, password string) error {
	decoded, err := decodePasswordHash(hashedPassword)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(decoded.key, deriveKey(password, decoded.salt, decoded.params)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
