// Package validate provides input checks for the dispute API surface.
package validate

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var idRx = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// allowed document types; disputes take evidence as images or PDFs.
var docExts = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".txt":  true,
}

// CustomerID checks the shape of a customer identifier.
func CustomerID(id string) error {
	if !idRx.MatchString(id) {
		return errors.New("invalid customer id")
	}
	return nil
}

// TransactionID checks the shape of a transaction identifier.
func TransactionID(id string) error {
	if !idRx.MatchString(id) {
		return errors.New("invalid transaction id")
	}
	return nil
}

// CaseID checks the shape of a case identifier (ULID).
func CaseID(id string) error {
	if len(id) != 26 || !idRx.MatchString(id) {
		return errors.New("invalid case id")
	}
	return nil
}

// DocFilename checks that a document filename is sane and of an allowed type.
func DocFilename(fn string) error {
	fn = strings.TrimSpace(fn)
	if fn == "" || strings.ContainsAny(fn, "/\\") {
		return errors.New("invalid filename")
	}
	if !docExts[strings.ToLower(filepath.Ext(fn))] {
		return errors.New("unsupported document type: " + filepath.Ext(fn))
	}
	return nil
}

// DocCount bounds how many documents one attach call may carry.
func DocCount(n int) error {
	if n < 1 || n > 10 {
		return errors.New("provide 1..10 documents")
	}
	return nil
}
