/*
Package randx provides functions for generating cryptographically secure random identifiers.

It generates patient join codes, unique appointment suffixes, and standard UUID record IDs
used throughout the consultation and prescription subsystems.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// base36Chars defines the character set used for join codes (digits and lowercase letters).
	// Lowercase-only keeps every generated identifier usable verbatim as a video room identifier.
	base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

	// JoinCodeLength is the fixed length required for patient join codes.
	JoinCodeLength = 6

	// AppointmentSuffixLength is the fixed length of the random part of a generated appointment ID.
	AppointmentSuffixLength = 8
)

func randomBase36(length int) (string, error) {
	result := make([]byte, length)

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36Chars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random identifier: %v", err)
		}

		result[i] = base36Chars[num.Int64()]
	}

	return string(result), nil
}

// JoinCode generates a patient join code using a cryptographically secure
// random number generator (crypto/rand). It returns a string of length JoinCodeLength.
func JoinCode() (string, error) {
	return randomBase36(JoinCodeLength)
}

// AppointmentSuffix generates the random component of a consultation room identifier
// for appointments created without an external appointment ID.
func AppointmentSuffix() (string, error) {
	return randomBase36(AppointmentSuffixLength)
}

// RecordID generates a standard UUID v4 string to serve as a unique identifier for a stored record.
func RecordID() string {
	return uuid.New().String()
}

// IsValidJoinCode checks if the given string is a valid patient join code.
// Validity criteria include: length equals JoinCodeLength and all characters
// belong to the base36 character set.
func IsValidJoinCode(code string) bool {
	if len(code) != JoinCodeLength {
		return false
	}

	for _, char := range code {
		if !strings.ContainsRune(base36Chars, char) {
			return false
		}
	}

	return true
}
