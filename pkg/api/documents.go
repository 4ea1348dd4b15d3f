package api

import "time"

// CreateDocumentRequest is the body of POST /api/documents
type CreateDocumentRequest struct {
	Title   string `json:"title"`   // required
	Content string `json:"content"` // initial text, may be empty
}

// Document is the full document representation returned by the REST API
type Document struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Version   int       `json:"version"` // number of edits applied since creation
}

// DocumentSummary is a list entry of GET /api/documents
type DocumentSummary struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
}

// DeleteDocumentResponse is returned after a document is removed
type DeleteDocumentResponse struct {
	Message  string   `json:"message"`
	Document Document `json:"document"`
}

// ErrorResponse is returned by every failing REST call
type ErrorResponse struct {
	Error   string `json:"error"`             // short error description
	Message string `json:"message,omitempty"` // details, if any
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
