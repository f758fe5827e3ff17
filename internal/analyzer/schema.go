package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raysh454/cyra/internal/model"
)

// schema is the subset of the generative-language response schema used to
// force JSON output.
type schema struct {
	Type       string             `json:"type"`
	Enum       []string           `json:"enum,omitempty"`
	Items      *schema            `json:"items,omitempty"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

func stringSchema() *schema { return &schema{Type: "STRING"} }

func enumSchema[T ~string](values []T) *schema {
	s := &schema{Type: "STRING"}
	for _, v := range values {
		s.Enum = append(s.Enum, string(v))
	}
	return s
}

// outcomeSchema describes model.ScanOutcome. withImage adds the image-only
// fields as required properties.
func outcomeSchema(withImage bool) *schema {
	s := &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"status":          enumSchema(model.SafetyStatuses),
			"riskLevel":       enumSchema(model.RiskLevels),
			"threatType":      stringSchema(),
			"explanation":     stringSchema(),
			"recommendations": {Type: "ARRAY", Items: stringSchema()},
		},
		Required: []string{"status", "riskLevel", "threatType", "explanation", "recommendations"},
	}
	if withImage {
		s.Properties["imageOrigin"] = stringSchema()
		s.Properties["technicalDetails"] = stringSchema()
		s.Required = append(s.Required, "imageOrigin", "technicalDetails")
	}
	return s
}

func moderationSchema() *schema {
	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"isAllowed": {Type: "BOOLEAN"},
			"reason":    stringSchema(),
		},
		Required: []string{"isAllowed"},
	}
}

func tipsSchema() *schema {
	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"title": stringSchema(),
			"tips": {
				Type: "ARRAY",
				Items: &schema{
					Type: "OBJECT",
					Properties: map[string]*schema{
						"text":   stringSchema(),
						"urgent": {Type: "BOOLEAN"},
					},
					Required: []string{"text", "urgent"},
				},
			},
		},
		Required: []string{"title", "tips"},
	}
}

// rawOutcome mirrors model.ScanOutcome with pointer fields so missing keys can
// be told apart from empty values.
type rawOutcome struct {
	Status           *string   `json:"status"`
	RiskLevel        *string   `json:"riskLevel"`
	ThreatType       *string   `json:"threatType"`
	Explanation      *string   `json:"explanation"`
	Recommendations  *[]string `json:"recommendations"`
	ImageOrigin      *string   `json:"imageOrigin"`
	TechnicalDetails *string   `json:"technicalDetails"`
}

// DecodeOutcome parses and validates an outcome document. Any missing
// required field or out-of-range enum yields an error wrapping ErrSchema.
func DecodeOutcome(data []byte, withImage bool) (*model.ScanOutcome, error) {
	var raw rawOutcome
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode outcome: %v", ErrSchema, err)
	}

	var missing []string
	if raw.Status == nil {
		missing = append(missing, "status")
	}
	if raw.RiskLevel == nil {
		missing = append(missing, "riskLevel")
	}
	if raw.ThreatType == nil {
		missing = append(missing, "threatType")
	}
	if raw.Explanation == nil {
		missing = append(missing, "explanation")
	}
	if raw.Recommendations == nil {
		missing = append(missing, "recommendations")
	}
	if withImage {
		if raw.ImageOrigin == nil {
			missing = append(missing, "imageOrigin")
		}
		if raw.TechnicalDetails == nil {
			missing = append(missing, "technicalDetails")
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrSchema, strings.Join(missing, ", "))
	}

	status := model.SafetyStatus(*raw.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrSchema, *raw.Status)
	}
	risk := model.RiskLevel(*raw.RiskLevel)
	if !risk.Valid() {
		return nil, fmt.Errorf("%w: unknown riskLevel %q", ErrSchema, *raw.RiskLevel)
	}

	out := &model.ScanOutcome{
		Status:          status,
		RiskLevel:       risk,
		ThreatType:      *raw.ThreatType,
		Explanation:     *raw.Explanation,
		Recommendations: append([]string(nil), (*raw.Recommendations)...),
	}
	if raw.ImageOrigin != nil {
		out.ImageOrigin = *raw.ImageOrigin
	}
	if raw.TechnicalDetails != nil {
		out.TechnicalDetails = *raw.TechnicalDetails
	}
	return out, nil
}

// DecodeModeration parses a moderation verdict.
func DecodeModeration(data []byte) (*model.ModerationResult, error) {
	var raw struct {
		IsAllowed *bool   `json:"isAllowed"`
		Reason    *string `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode moderation: %v", ErrSchema, err)
	}
	if raw.IsAllowed == nil {
		return nil, fmt.Errorf("%w: missing isAllowed", ErrSchema)
	}
	res := &model.ModerationResult{IsAllowed: *raw.IsAllowed}
	if raw.Reason != nil {
		res.Reason = *raw.Reason
	}
	return res, nil
}

// DecodeTips parses a safety-tips document.
func DecodeTips(data []byte) (*model.SafetyTips, error) {
	var raw struct {
		Title *string `json:"title"`
		Tips  *[]struct {
			Text   *string `json:"text"`
			Urgent *bool   `json:"urgent"`
		} `json:"tips"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode tips: %v", ErrSchema, err)
	}
	if raw.Title == nil || raw.Tips == nil {
		return nil, fmt.Errorf("%w: missing title or tips", ErrSchema)
	}
	tips := &model.SafetyTips{Title: *raw.Title, Tips: make([]model.SafetyTip, 0, len(*raw.Tips))}
	for i, t := range *raw.Tips {
		if t.Text == nil {
			return nil, fmt.Errorf("%w: tip %d missing text", ErrSchema, i)
		}
		tip := model.SafetyTip{Text: *t.Text}
		if t.Urgent != nil {
			tip.Urgent = *t.Urgent
		}
		tips.Tips = append(tips.Tips, tip)
	}
	return tips, nil
}
