// Package api contains types for the API requests and responses.
package api

// FileDisputeRequest represents the request payload for filing a dispute
// against a verified transaction.
type FileDisputeRequest struct {
	TransactionID string `json:"transaction_id"`
	FiledAt       string `json:"filed_at,omitempty"` // ISO8601; defaults to now
}

// DocumentUpload names one document the client intends to upload.
type DocumentUpload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// AttachDocumentsRequest represents the request payload for attaching
// documents to an existing case.
type AttachDocumentsRequest struct {
	Documents []DocumentUpload `json:"documents"`
}

// DocumentGrant is one presigned upload slot returned to the client.
type DocumentGrant struct {
	Filename  string `json:"filename"`
	S3Key     string `json:"s3_key"`
	UploadURL string `json:"upload_url"`
	ExpiresIn int    `json:"expires_in"`
}

// AttachDocumentsResponse carries the presigned upload slots for a case.
type AttachDocumentsResponse struct {
	CaseID string          `json:"case_id"`
	Grants []DocumentGrant `json:"grants"`
}
