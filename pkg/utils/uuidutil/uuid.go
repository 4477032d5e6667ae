package uuidutil

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

var escaper = strings.NewReplacer("9", "99", "-", "90", "_", "91")

// ShortUUID refer to https://stackoverflow.com/questions/37934162/output-uuid-in-go-as-a-short-string
func ShortUUID() string {
	id := uuid.New()
	return escaper.Replace(base64.RawURLEncoding.EncodeToString(id[:]))
}

// ClientID returns a broker client id unique to this process.
func ClientID(prefix string) string {
	return prefix + "-" + ShortUUID()
}
