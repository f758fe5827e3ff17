package analyzer

import (
	"context"

	"github.com/raysh454/cyra/internal/model"
)

// Analyzer is the external threat-analysis collaborator. Every call is a
// single request/response; implementations return errors wrapping ErrNetwork,
// ErrTimeout or ErrSchema, never a partially-filled result.
//
// The rest of the codebase depends on this interface rather than on the
// generative-AI client so that sessions can be tested against fakes.
type Analyzer interface {
	// AnalyzeLink assesses a URL for phishing, malware and scam likelihood.
	AnalyzeLink(ctx context.Context, url string) (*model.ScanOutcome, error)

	// ScanImage assesses a screenshot or photo. The outcome carries
	// ImageOrigin and TechnicalDetails.
	ScanImage(ctx context.Context, data []byte, mimeType string) (*model.ScanOutcome, error)

	// AnalyzeFileMetadata predicts the behaviour of a file from its name and
	// type. content is optional.
	AnalyzeFileMetadata(ctx context.Context, name, fileType string, content []byte) (*model.ScanOutcome, error)

	// ModerateComment decides whether a community comment may be posted.
	ModerateComment(ctx context.Context, text string) (*model.ModerationResult, error)

	// GetSafetyTips returns general device-safety advice.
	GetSafetyTips(ctx context.Context) (*model.SafetyTips, error)

	// PerformOneClickCheck assesses overall device risk from app summaries.
	PerformOneClickCheck(ctx context.Context, apps []model.AppSummary) (*model.ScanOutcome, error)

	// Health checks if the analyzer is ready to accept requests.
	Health(ctx context.Context) (string, error)

	// Close releases any resources held by the analyzer.
	Close() error
}
