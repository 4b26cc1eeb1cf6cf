// Package storage persists generated media and hands out public URLs for it.
package storage

import (
	"context"
	"path"
	"strings"
)

// Store writes media blobs and resolves their public URL.
type Store interface {
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
	URL(key string) string
}

// JobKey builds the key of one generated artifact, e.g.
// "audio/<job id>/chunk-000.mp3".
func JobKey(kind, jobID, name string) string {
	return path.Join(kind, jobID, name)
}

func joinURL(base, key string) string {
	key = strings.TrimLeft(key, "/")
	if base == "" {
		return "/" + key
	}
	return base + "/" + key
}
