package utils

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectKey builds a collision-resistant object key for an uploaded file:
// <epoch-millis>_<uuid>_<sanitized-name>.
func ObjectKey(now time.Time, original string) string {
	return fmt.Sprintf("%d_%s_%s", now.UnixMilli(), uuid.NewString(), SanitizeFilename(original))
}

// SanitizeFilename keeps the base name of a client-supplied filename and
// replaces every byte outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" || out == "_" {
		return "image"
	}
	return out
}

// ObjectName reduces a stored reference or a previously issued signed URL
// to the bare object name: the query string is dropped, the last path
// segment is taken and percent-escapes are decoded.
func ObjectName(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if dec, err := url.PathUnescape(ref); err == nil {
		return dec
	}
	return ref
}
