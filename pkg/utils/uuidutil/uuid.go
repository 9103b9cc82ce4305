package uuidutil

import (
	"encoding/base64"
	"encoding/hex"
	"github.com/google/uuid"
	"strings"
)

// escaper keeps short ids alphanumeric so they are safe in MQTT client ids and topics.
var escaper = strings.NewReplacer("9", "99", "-", "90", "_", "91")

// UUID returns a random tag id as 32 lower case hex characters.
func UUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// ShortUUID returns a random alphanumeric id of at least 22 characters.
func ShortUUID() string {
	id := uuid.New()
	return escaper.Replace(base64.RawURLEncoding.EncodeToString(id[:]))
}
