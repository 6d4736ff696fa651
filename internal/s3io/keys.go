package s3io

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Case document keys follow cases/<caseID>/documents/<ts>_<uid>_<filename>.
// The timestamp plus a short random id keeps repeated uploads of the same
// filename from colliding.
const docPrefix = "cases/%s/documents/"

// DocKey builds a unique S3 key for one case document.
func DocKey(caseID, filename string, now time.Time) string {
	ts := now.UTC().Format("20060102_150405")
	uid := uuid.NewString()[:8]
	return fmt.Sprintf(docPrefix+"%s_%s_%s", caseID, ts, uid, sanitizeFilename(filename))
}

// DocKeyPrefix returns the listing prefix for a case's documents.
func DocKeyPrefix(caseID string) string {
	return fmt.Sprintf(docPrefix, caseID)
}

// ParseDocKey extracts the case id from a document key.
func ParseDocKey(key string) (caseID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != "cases" || parts[2] != "documents" {
		return "", false
	}
	return parts[1], true
}

// ObjectURL is the canonical s3:// locator recorded on the case.
func ObjectURL(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// sanitizeFilename strips path separators and whitespace from a client
// supplied filename before it lands in a key.
func sanitizeFilename(fn string) string {
	fn = strings.TrimSpace(fn)
	fn = strings.ReplaceAll(fn, "/", "_")
	fn = strings.ReplaceAll(fn, "\\", "_")
	fn = strings.ReplaceAll(fn, " ", "_")
	if fn == "" {
		return "document"
	}
	return fn
}
