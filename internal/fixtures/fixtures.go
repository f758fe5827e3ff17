// Package fixtures holds the illustrative device data shown by the activity
// scanner and sent by the one-click check. Nothing here inspects the device.
package fixtures

import (
	"sort"

	"github.com/raysh454/cyra/internal/model"
)

type RiskBand string

const (
	BandLow    RiskBand = "low"
	BandMedium RiskBand = "medium"
	BandHigh   RiskBand = "high"
)

// Band grades a 0-100 risk score: above 60 is high, above 30 medium.
func Band(score int) RiskBand {
	switch {
	case score > 60:
		return BandHigh
	case score > 30:
		return BandMedium
	default:
		return BandLow
	}
}

// InstalledApps returns the activity records, highest risk first.
func InstalledApps() []model.AppActivity {
	apps := []model.AppActivity{
		{Name: "WhatsApp", PermissionCount: 12, LastActive: "2m ago", RiskScore: 10},
		{Name: "X (Twitter)", PermissionCount: 8, LastActive: "10m ago", RiskScore: 15},
		{Name: "FastCleaner Pro", PermissionCount: 22, LastActive: "Just now", RiskScore: 78, UnknownSource: true},
		{Name: "Unknown PDF Reader", PermissionCount: 5, LastActive: "1h ago", RiskScore: 45, UnknownSource: true},
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].RiskScore > apps[j].RiskScore })
	return apps
}

// InstalledAppSummaries converts InstalledApps for the Analyzer.
func InstalledAppSummaries() []model.AppSummary {
	apps := InstalledApps()
	out := make([]model.AppSummary, len(apps))
	for i, a := range apps {
		out[i] = a.Summary()
	}
	return out
}

// OneClickApps is the device summary used by the one-click check.
func OneClickApps() []model.AppSummary {
	return []model.AppSummary{
		{Name: "Unknown Game 2024", Source: "External", Permissions: []string{"SMS", "Location"}},
		{Name: "Secure Mail", Source: "Play Store", Permissions: []string{"Contacts"}},
	}
}
