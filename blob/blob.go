// Package blob uploads chat attachments and returns durable references to
// them.
package blob

import (
	"context"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"go.aimuz.me/prakriti/internal/types"
)

// ErrStorage wraps every upload failure.
var ErrStorage = types.ErrStorage

// uploadDir is the key prefix attachments are stored under.
const uploadDir = "chat-uploads"

// Store uploads bytes and returns a URI that stays valid after the process
// exits.
type Store interface {
	Upload(ctx context.Context, data []byte, suggestedPath string) (string, error)
}

// objectName builds a collision-free name that keeps the extension of
// suggestedPath, e.g. chat-uploads/3f1c….jpg.
func objectName(suggestedPath string) string {
	ext := strings.ToLower(path.Ext(suggestedPath))
	return uploadDir + "/" + uuid.NewString() + ext
}

// contentType guesses the MIME type from the extension of name.
func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
