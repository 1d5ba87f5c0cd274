package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// userIDPattern matches the CLI's metadata.user_id format (spec §6):
// user_{32 lowercase hex chars}_account__session_{UUID}.
var userIDPattern = regexp.MustCompile(`^user_[a-f0-9]{32}_account__session_[0-9a-f-]{36}$`)

// IsValidUserID reports whether userID already matches the CLI format
// (spec §4.C step 6: "if not a string matching ...").
func IsValidUserID(userID string) bool {
	return userIDPattern.MatchString(userID)
}

// NewUserID synthesizes a fresh user_id: two random 128-bit values, the
// first rendered as 32 lowercase hex characters, the second as a
// standard 8-4-4-4-12 UUID (spec §6: "Both components must be freshly
// generated per synthesis").
func NewUserID() (string, error) {
	var account [16]byte
	if _, err := rand.Read(account[:]); err != nil {
		return "", fmt.Errorf("generate account id: %w", err)
	}
	session, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session uuid: %w", err)
	}
	return fmt.Sprintf("user_%s_account__session_%s", hex.EncodeToString(account[:]), session.String()), nil
}
