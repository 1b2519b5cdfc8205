package integrity

import (
	"errors"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/core/encoding"
)

// ContentHash returns the canonical JSON digest of one entry's content.
func ContentHash(content any) (string, error) {
	return encoding.Digest(content)
}

// ChainHash links a content hash to the chain hash of the entry before it.
// prevHash is empty for the first entry of a chain.
func ChainHash(contentHash, prevHash string) (string, error) {
	if contentHash == "" {
		return "", errors.New("content hash is required")
	}
	return encoding.Digest(struct {
		Content string `json:"content"`
		Prev    string `json:"prev"`
	}{Content: contentHash, Prev: prevHash})
}
