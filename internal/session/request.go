package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/model"
)

// NewRequest validates payload and wraps it in a ScanRequest with a fresh id.
// Invalid payloads return an error wrapping analyzer.ErrValidation.
func NewRequest(payload any, now time.Time) (model.ScanRequest, error) {
	var kind model.ScanKind

	switch p := payload.(type) {
	case model.LinkPayload:
		if strings.TrimSpace(p.URL) == "" {
			return model.ScanRequest{}, fmt.Errorf("%w: link url is empty", analyzer.ErrValidation)
		}
		kind = model.ScanKindLink
	case model.FilePayload:
		if strings.TrimSpace(p.Name) == "" {
			return model.ScanRequest{}, fmt.Errorf("%w: file name is empty", analyzer.ErrValidation)
		}
		if p.Type == "" && len(p.Content) > 0 {
			p.Type = sniffMIME(p.Content)
		}
		// Only image bytes are sent on; other files are judged by name and type.
		if !strings.HasPrefix(p.Type, "image/") {
			p.Content = nil
		}
		payload = p
		kind = model.ScanKindFile
	case model.ImagePayload:
		if len(p.Data) == 0 {
			return model.ScanRequest{}, fmt.Errorf("%w: image is empty", analyzer.ErrValidation)
		}
		if p.MimeType == "" {
			p.MimeType = sniffMIME(p.Data)
		}
		if !strings.HasPrefix(p.MimeType, "image/") {
			return model.ScanRequest{}, fmt.Errorf("%w: %q is not an image type", analyzer.ErrValidation, p.MimeType)
		}
		payload = p
		kind = model.ScanKindImage
	case model.AppSummaryPayload:
		if len(p.Apps) == 0 {
			return model.ScanRequest{}, fmt.Errorf("%w: no apps in summary", analyzer.ErrValidation)
		}
		kind = model.ScanKindAppSummary
	default:
		return model.ScanRequest{}, fmt.Errorf("%w: unsupported payload %T", analyzer.ErrValidation, payload)
	}

	return model.ScanRequest{
		ID:       uuid.New().String(),
		Kind:     kind,
		Payload:  payload,
		IssuedAt: now.UTC(),
	}, nil
}

// sniffMIME detects a MIME type from magic bytes, falling back to the
// net/http sniffer for text-like content.
func sniffMIME(data []byte) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	mt := http.DetectContentType(data)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// dispatch routes a request to the matching Analyzer call.
func dispatch(ctx context.Context, a analyzer.Analyzer, req model.ScanRequest) (*model.ScanOutcome, error) {
	switch p := req.Payload.(type) {
	case model.LinkPayload:
		return a.AnalyzeLink(ctx, p.URL)
	case model.FilePayload:
		return a.AnalyzeFileMetadata(ctx, p.Name, p.Type, p.Content)
	case model.ImagePayload:
		return a.ScanImage(ctx, p.Data, p.MimeType)
	case model.AppSummaryPayload:
		return a.PerformOneClickCheck(ctx, p.Apps)
	}
	return nil, fmt.Errorf("%w: unsupported payload %T", analyzer.ErrValidation, req.Payload)
}
