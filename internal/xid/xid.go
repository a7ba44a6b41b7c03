package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier, e.g. "draft-3f0c...".
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// Valid reports whether id was produced by New with the given prefix.
func Valid(prefix string, id string) bool {
	raw := id
	if prefix != "" {
		if !strings.HasPrefix(id, prefix+"-") {
			return false
		}
		raw = strings.TrimPrefix(id, prefix+"-")
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
