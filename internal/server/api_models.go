package server

import (
	"time"

	"github.com/raysh454/cyra/internal/fixtures"
	"github.com/raysh454/cyra/internal/links"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/notify"
)

// ScanLinkRequest asks for a URL assessment.
type ScanLinkRequest struct {
	URL string `json:"url"`
}

// ScanFileRequest describes a file. Content is base64 in JSON and optional.
type ScanFileRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content []byte `json:"content,omitempty"`
}

// ScanImageRequest carries a base64-encoded screenshot.
type ScanImageRequest struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType,omitempty"`
}

// ScanAcceptedResponse is returned when a scan has been submitted. The
// result arrives on GET /scans/{surface} or the scan websocket.
type ScanAcceptedResponse struct {
	RequestID string      `json:"requestId"`
	Surface   string      `json:"surface"`
	Link      *links.Info `json:"link,omitempty"`
}

// PushNotificationRequest pushes a message to the notification center.
type PushNotificationRequest struct {
	Message string `json:"message"`
}

// IDResponse carries the id of a created resource.
type IDResponse struct {
	ID string `json:"id"`
}

// SecretRequest asks for a secret; a zero Length means the default.
type SecretRequest struct {
	Length int `json:"length"`
}

type SecretResponse struct {
	Secret string `json:"secret"`
	Length int    `json:"length"`
}

// PostCommentRequest posts to the community feed.
type PostCommentRequest struct {
	Text string `json:"text"`
}

type ProfileResponse struct {
	Username string `json:"username"`
}

type UpdateProfileRequest struct {
	Username string `json:"username"`
}

// AppView is an installed app with its risk band.
type AppView struct {
	model.AppActivity
	Band fixtures.RiskBand `json:"band"`
}

type HealthResponse struct {
	Status   string    `json:"status"`
	Version  string    `json:"version"`
	Analyzer string    `json:"analyzer"`
	Shield   bool      `json:"shield"`
	Time     time.Time `json:"time"`
}

// NotificationSnapshot is the first message on the notification websocket.
type NotificationSnapshot struct {
	Type    string         `json:"type"`
	Entries []notify.Entry `json:"entries"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`

	// Reason is set when a comment was blocked by moderation.
	Reason string `json:"reason,omitempty"`
}
