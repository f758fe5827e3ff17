package model

import "time"

// AppSummary is an opaque app record handed to the Analyzer for device checks.
// The one-click check fills Source/Permissions; the activity scanner fills the
// counters. Unused fields are omitted from the prompt.
type AppSummary struct {
	Name            string   `json:"name"`
	Source          string   `json:"source,omitempty"`
	Permissions     []string `json:"permissions,omitempty"`
	PermissionCount int      `json:"permissionCount,omitempty"`
	LastActive      string   `json:"lastActive,omitempty"`
	RiskScore       int      `json:"riskScore,omitempty"`
	UnknownSource   bool     `json:"isUnknownSource,omitempty"`
}

// AppActivity is an illustrative installed-app record shown by the activity
// scanner.
type AppActivity struct {
	Name            string `json:"name"`
	PermissionCount int    `json:"permissionCount"`
	LastActive      string `json:"lastActive"`
	RiskScore       int    `json:"riskScore"`
	UnknownSource   bool   `json:"isUnknownSource"`
}

// Summary converts the activity record into the Analyzer-facing shape.
func (a AppActivity) Summary() AppSummary {
	return AppSummary{
		Name:            a.Name,
		PermissionCount: a.PermissionCount,
		LastActive:      a.LastActive,
		RiskScore:       a.RiskScore,
		UnknownSource:   a.UnknownSource,
	}
}

// ModerationResult is the Analyzer's verdict on a community comment.
type ModerationResult struct {
	IsAllowed bool   `json:"isAllowed"`
	Reason    string `json:"reason,omitempty"`
}

// SafetyTip is one point of advice.
type SafetyTip struct {
	Text   string `json:"text"`
	Urgent bool   `json:"urgent"`
}

// SafetyTips is an ordered list of advice under a title.
type SafetyTips struct {
	Title string      `json:"title"`
	Tips  []SafetyTip `json:"tips"`
}

// Comment is a moderated post in the community feed.
type Comment struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	IsModerated bool      `json:"isModerated"`
}

// Settings is the user-controlled settings surface consumed by the core.
// Only RealtimeShield drives the background monitor.
type Settings struct {
	Notifications  bool `json:"notifications"`
	RealtimeShield bool `json:"realtimeShield"`
	AnonymousMode  bool `json:"anonymousMode"`
}

// SettingsPatch updates a subset of Settings; nil fields are left unchanged.
type SettingsPatch struct {
	Notifications  *bool `json:"notifications,omitempty"`
	RealtimeShield *bool `json:"realtimeShield,omitempty"`
	AnonymousMode  *bool `json:"anonymousMode,omitempty"`
}

// Apply returns s with the non-nil fields of p applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.RealtimeShield != nil {
		s.RealtimeShield = *p.RealtimeShield
	}
	if p.AnonymousMode != nil {
		s.AnonymousMode = *p.AnonymousMode
	}
	return s
}
