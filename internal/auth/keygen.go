package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TicketCodePrefix identifies redeemable ticket codes.
const TicketCodePrefix = "TICKET-"

// ChainKeyLength is the length of a member's public chain key.
const ChainKeyLength = 12

var ticketCodePattern = regexp.MustCompile(`^TICKET-[0-9A-HJKMNP-TV-Z]{26}-[a-f0-9]{32}$`)

// GenerateTicketCode creates a new redeemable ticket code. The code
// carries a ULID (time-ordered, useful in logs) plus 128 bits of
// independent entropy, so codes are not guessable from issue time.
func GenerateTicketCode() (string, error) {
	id := ulid.Make()

	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate ticket secret: %w", err)
	}

	return fmt.Sprintf("%s%s-%s", TicketCodePrefix, id.String(), hex.EncodeToString(secret)), nil
}

// ValidTicketCode reports whether s has the shape of an issued ticket
// code. It says nothing about whether such a ticket exists.
func ValidTicketCode(s string) bool {
	return ticketCodePattern.MatchString(s)
}

// GenerateChainKey derives a short, shareable member key: twelve
// uppercase hex characters taken from a random UUID.
func GenerateChainKey() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:ChainKeyLength])
}

// NewEntityID returns a ULID string for a freshly created record.
func NewEntityID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
