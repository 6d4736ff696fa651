package dispute

import (
	"github.com/cardpath/dispute-resolution-portal/internal/fault"
	"github.com/cardpath/dispute-resolution-portal/internal/models"
)

// CaseResult is the tagged outcome of FileDispute. Low-level faults never
// cross this boundary raw; callers branch on Success and ErrorKind.
type CaseResult struct {
	Success        bool         `json:"success"`
	Case           *models.Case `json:"case,omitempty"`
	ErrorKind      fault.Kind   `json:"error_kind,omitempty"`
	Message        string       `json:"message,omitempty"`
	ExistingCaseID string       `json:"existing_case_id,omitempty"`
}

func succeeded(c *models.Case) CaseResult {
	return CaseResult{Success: true, Case: c}
}

func failed(kind fault.Kind, msg string) CaseResult {
	return CaseResult{Success: false, ErrorKind: kind, Message: msg}
}

// duplicated reports an existing open case so the caller can redirect the
// user to it instead of retrying.
func duplicated(existingID string) CaseResult {
	return CaseResult{
		Success:        false,
		ErrorKind:      fault.KindDuplicateCase,
		Message:        "case already exists",
		ExistingCaseID: existingID,
	}
}
