package service

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"inkwell/internal/models"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// bcryptCost is lowered in tests.
var bcryptCost = bcrypt.DefaultCost

// Defaults applied by werkzeug when a stored method omits its parameters.
const (
	werkzeugPBKDF2Iterations = 600000
	werkzeugScryptN          = 1 << 15
	werkzeugScryptR          = 8
	werkzeugScryptP          = 1
	werkzeugScryptKeyLen     = 64
)

// bcryptInput digests password so bcrypt's 72 byte input limit never
// truncates or rejects it.
func bcryptInput(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

func hashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, bcryptCost)
}

// HashPasswordWithCost returns the stored bcrypt form of password, as
// written by Register and ChangePassword.
func HashPasswordWithCost(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hashed), nil
}

// verifyCredential checks password against a stored credential of any
// supported version.
func verifyCredential(stored, password string) bool {
	switch models.CredentialVersion(stored) {
	case models.CredentialBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored), bcryptInput(password)) == nil
	case models.CredentialWerkzeug:
		return verifyWerkzeug(stored, password)
	default:
		raw := models.PlaintextValue(stored)
		if raw == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(raw), []byte(password)) == 1
	}
}

// verifyWerkzeug checks "method$salt$hexdigest" credentials where method is
// pbkdf2:<hash>[:<iterations>] or scrypt[:<n>:<r>:<p>].
func verifyWerkzeug(stored, password string) bool {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, digest := parts[0], parts[1], parts[2]
	want, err := hex.DecodeString(digest)
	if err != nil || len(want) == 0 {
		return false
	}

	var got []byte
	args := strings.Split(method, ":")
	switch args[0] {
	case "pbkdf2":
		if len(args) < 2 {
			return false
		}
		newHash := hashFunc(args[1])
		if newHash == nil {
			return false
		}
		iterations := werkzeugPBKDF2Iterations
		if len(args) > 2 {
			if iterations, err = strconv.Atoi(args[2]); err != nil || iterations <= 0 {
				return false
			}
		}
		got = pbkdf2.Key([]byte(password), []byte(salt), iterations, newHash().Size(), newHash)
	case "scrypt":
		n, r, p := werkzeugScryptN, werkzeugScryptR, werkzeugScryptP
		if len(args) == 4 {
			var convErr error
			ints := make([]int, 3)
			for i, s := range args[1:] {
				if ints[i], convErr = strconv.Atoi(s); convErr != nil {
					return false
				}
			}
			n, r, p = ints[0], ints[1], ints[2]
		} else if len(args) != 1 {
			return false
		}
		got, err = scrypt.Key([]byte(password), []byte(salt), n, r, p, werkzeugScryptKeyLen)
		if err != nil {
			return false
		}
	default:
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

func hashFunc(name string) func() hash.Hash {
	switch name {
	case "sha1":
		return sha1.New
	case "sha256":
		return sha256.New
	case "sha512":
		return sha512.New
	default:
		return nil
	}
}
