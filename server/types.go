package server

import "github.com/teranos/jobtrail/jobs"

// CaptureRequest is the body of POST /api/jobs
type CaptureRequest struct {
	Input string `json:"input"`
	Kind  string `json:"kind,omitempty"` // url, text or auto (default); PDFs go to /api/jobs/upload
}

// uploadField is the multipart field of POST /api/jobs/upload
const uploadField = "file"

// StatusRequest is the body of POST /api/jobs/{id}/status
type StatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// NoteRequest is the body of POST /api/jobs/{id}/notes
type NoteRequest struct {
	Text string `json:"text"`
}

// JobsResponse is the body of GET /api/jobs
type JobsResponse struct {
	Jobs  []jobs.Record `json:"jobs"`
	Total int           `json:"total"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Clients int    `json:"clients"`
}

// StoreChangedMessage is pushed to WebSocket clients after each committed write
type StoreChangedMessage struct {
	Type      string `json:"type"` // always "store_changed"
	Total     int    `json:"total"`
	Timestamp int64  `json:"timestamp"`
}
