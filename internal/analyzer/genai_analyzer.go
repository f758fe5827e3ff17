package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/raysh454/cyra/internal/logging"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/webclient"
)

const (
	linkPrompt = "Analyze this URL for potential cybersecurity threats: %s. " +
		"Provide a professional security assessment including phishing detection, malware presence, and scam likelihood."
	imagePrompt = "Analyze this image (likely a screenshot or document) for cybersecurity threats. " +
		"Check for phishing indicators, fake login forms, suspicious URLs in text, or fraudulent branding. " +
		"Report where the image most likely came from as imageOrigin and any technical indicators as technicalDetails. " +
		"Return a security report in JSON."
	filePrompt       = "Predict behavior and potential threats for a file with name: %q and type: %q."
	moderationPrompt = "Moderate this community comment for a cybersecurity app: %q. " +
		"Check for spam, abuse, phishing links, or misinformation."
	tipsPrompt = "Give five short, practical mobile-device safety tips for an everyday user. " +
		"Mark the tips that address an active, widespread threat as urgent."
	oneClickPrompt = "Analyze this device summary for overall risk. " +
		"Apps: %s. Consider permissions, unknown sources, and background usage."
)

// GenAIAnalyzer implements Analyzer against the generative-language REST API.
type GenAIAnalyzer struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger
}

var _ Analyzer = (*GenAIAnalyzer)(nil)

// NewGenAIAnalyzer creates an Analyzer that sends requests through wc.
func NewGenAIAnalyzer(cfg Config, wc webclient.WebClient, logger logging.Logger) (*GenAIAnalyzer, error) {
	if wc == nil {
		return nil, errors.New("genai analyzer: webclient is required")
	}
	if logger == nil {
		return nil, errors.New("genai analyzer: logger is required")
	}
	cfg = cfg.withDefaults()
	return &GenAIAnalyzer{
		cfg:    cfg,
		wc:     wc,
		logger: logger.With(logging.Field{Key: "component", Value: "analyzer"}, logging.Field{Key: "model", Value: cfg.Model}),
	}, nil
}

// ─── wire types ────────────────────────────────────────────────────────

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func textPart(s string) part { return part{Text: s} }

func dataPart(data []byte, mimeType string) part {
	return part{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}}
}

// ─── Analyzer ──────────────────────────────────────────────────────────

func (g *GenAIAnalyzer) AnalyzeLink(ctx context.Context, url string) (*model.ScanOutcome, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: empty url", ErrValidation)
	}
	raw, err := g.generate(ctx, "analyze_link", []part{textPart(fmt.Sprintf(linkPrompt, url))}, outcomeSchema(false))
	if err != nil {
		return nil, err
	}
	return DecodeOutcome(raw, false)
}

func (g *GenAIAnalyzer) ScanImage(ctx context.Context, data []byte, mimeType string) (*model.ScanOutcome, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrValidation)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	parts := []part{dataPart(data, mimeType), textPart(imagePrompt)}
	raw, err := g.generate(ctx, "scan_image", parts, outcomeSchema(true))
	if err != nil {
		return nil, err
	}
	return DecodeOutcome(raw, true)
}

func (g *GenAIAnalyzer) AnalyzeFileMetadata(ctx context.Context, name, fileType string, data []byte) (*model.ScanOutcome, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrValidation)
	}
	parts := []part{textPart(fmt.Sprintf(filePrompt, name, fileType))}
	// Only images go inline; other files are judged by name and type.
	if len(data) > 0 && strings.HasPrefix(fileType, "image/") {
		parts = append(parts, dataPart(data, fileType))
	}
	raw, err := g.generate(ctx, "analyze_file", parts, outcomeSchema(false))
	if err != nil {
		return nil, err
	}
	return DecodeOutcome(raw, false)
}

func (g *GenAIAnalyzer) ModerateComment(ctx context.Context, text string) (*model.ModerationResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty comment", ErrValidation)
	}
	raw, err := g.generate(ctx, "moderate", []part{textPart(fmt.Sprintf(moderationPrompt, text))}, moderationSchema())
	if err != nil {
		return nil, err
	}
	return DecodeModeration(raw)
}

func (g *GenAIAnalyzer) GetSafetyTips(ctx context.Context) (*model.SafetyTips, error) {
	raw, err := g.generate(ctx, "safety_tips", []part{textPart(tipsPrompt)}, tipsSchema())
	if err != nil {
		return nil, err
	}
	return DecodeTips(raw)
}

func (g *GenAIAnalyzer) PerformOneClickCheck(ctx context.Context, apps []model.AppSummary) (*model.ScanOutcome, error) {
	if len(apps) == 0 {
		return nil, fmt.Errorf("%w: no apps to check", ErrValidation)
	}
	summary, err := json.Marshal(apps)
	if err != nil {
		return nil, fmt.Errorf("%w: encode apps: %v", ErrValidation, err)
	}
	raw, err := g.generate(ctx, "one_click", []part{textPart(fmt.Sprintf(oneClickPrompt, summary))}, outcomeSchema(false))
	if err != nil {
		return nil, err
	}
	return DecodeOutcome(raw, false)
}

// Health fetches the model description; any 2xx counts as ready.
func (g *GenAIAnalyzer) Health(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.wc.Do(ctx, &webclient.Request{
		Method:  http.MethodGet,
		URL:     g.modelURL(""),
		Headers: g.headers(),
	})
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("%w: health status %d", ErrNetwork, resp.StatusCode)
	}
	return "ok", nil
}

func (g *GenAIAnalyzer) Close() error {
	return g.wc.Close()
}

// ─── transport ─────────────────────────────────────────────────────────

func (g *GenAIAnalyzer) modelURL(method string) string {
	u := strings.TrimRight(g.cfg.Endpoint, "/") + "/v1beta/models/" + g.cfg.Model
	if method != "" {
		u += ":" + method
	}
	return u
}

func (g *GenAIAnalyzer) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		h.Set("x-goog-api-key", g.cfg.APIKey)
	}
	return h
}

// generate sends one generateContent call and returns the JSON text of the
// first candidate.
func (g *GenAIAnalyzer) generate(ctx context.Context, op string, parts []part, s *schema) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   s,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}

	g.logger.Debug("calling analyzer", logging.Field{Key: "op", Value: op})

	resp, err := g.wc.Do(ctx, &webclient.Request{
		Method:  http.MethodPost,
		URL:     g.modelURL("generateContent"),
		Headers: g.headers(),
		Body:    body,
	})
	if err != nil {
		err = classifyTransport(ctx, err)
		g.logger.Warn("analyzer call failed",
			logging.Field{Key: "op", Value: op},
			logging.Field{Key: "error", Value: err})
		return nil, err
	}
	if !resp.OK() {
		g.logger.Warn("analyzer returned error status",
			logging.Field{Key: "op", Value: op},
			logging.Field{Key: "status", Value: resp.StatusCode})
		return nil, fmt.Errorf("%w: %s status %d", ErrNetwork, op, resp.StatusCode)
	}

	var gr generateResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return nil, fmt.Errorf("%w: decode %s envelope: %v", ErrSchema, op, err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: %s returned no candidates", ErrSchema, op)
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("%w: %s returned empty text", ErrSchema, op)
	}
	return []byte(text), nil
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
