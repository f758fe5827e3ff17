package model

import "time"

// ScanKind identifies which analysis a ScanRequest asks for.
type ScanKind string

const (
	ScanKindLink       ScanKind = "link"
	ScanKindFile       ScanKind = "file"
	ScanKindImage      ScanKind = "image"
	ScanKindAppSummary ScanKind = "app_summary"
)

// SafetyStatus is the Analyzer's verdict for a scanned item.
type SafetyStatus string

const (
	StatusSafe       SafetyStatus = "Safe"
	StatusSuspicious SafetyStatus = "Suspicious"
	StatusMalicious  SafetyStatus = "Malicious"
)

// SafetyStatuses lists every valid SafetyStatus in severity order.
var SafetyStatuses = []SafetyStatus{StatusSafe, StatusSuspicious, StatusMalicious}

// Valid reports whether s is one of the declared statuses.
func (s SafetyStatus) Valid() bool {
	for _, v := range SafetyStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// RiskLevel grades how dangerous a scanned item is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskLevels lists every valid RiskLevel from lowest to highest.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// Valid reports whether r is one of the declared risk levels.
func (r RiskLevel) Valid() bool {
	for _, v := range RiskLevels {
		if r == v {
			return true
		}
	}
	return false
}

// ScanRequest is one immutable request for analysis. A later request from the
// same session supersedes it; it is never mutated.
type ScanRequest struct {
	// ID is an opaque token correlating the request with its response.
	ID string `json:"id"`

	Kind ScanKind `json:"kind"`

	// Payload is one of LinkPayload, FilePayload, ImagePayload or AppSummaryPayload.
	Payload any `json:"payload"`

	IssuedAt time.Time `json:"issued_at"`
}

// LinkPayload asks for an assessment of a URL.
type LinkPayload struct {
	URL string `json:"url"`
}

// FilePayload describes a file by name and MIME type. Content is optional and
// only forwarded for image files.
type FilePayload struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content []byte `json:"content,omitempty"`
}

// ImagePayload carries raw image bytes (typically a screenshot).
type ImagePayload struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// AppSummaryPayload carries the app records used for device-level checks.
type AppSummaryPayload struct {
	Apps []AppSummary `json:"apps"`
}

// ScanOutcome is the Analyzer's report for a ScanRequest. It is immutable once
// returned.
type ScanOutcome struct {
	Status          SafetyStatus `json:"status"`
	RiskLevel       RiskLevel    `json:"riskLevel"`
	ThreatType      string       `json:"threatType"`
	Explanation     string       `json:"explanation"`
	Recommendations []string     `json:"recommendations"`

	// Populated by image scans.
	ImageOrigin      string `json:"imageOrigin,omitempty"`
	TechnicalDetails string `json:"technicalDetails,omitempty"`
}
