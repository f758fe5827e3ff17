package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/raysh454/cyra/internal/fixtures"
	"github.com/raysh454/cyra/internal/links"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/session"
)

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow, color.Bold)
	colorCyan   = color.New(color.FgCyan)
	colorDim    = color.New(color.Faint)
)

func statusColor(s model.SafetyStatus) *color.Color {
	switch s {
	case model.StatusSafe:
		return colorGreen
	case model.StatusSuspicious:
		return colorYellow
	default:
		return colorRed
	}
}

func bandColor(b fixtures.RiskBand) *color.Color {
	switch b {
	case fixtures.BandHigh:
		return colorRed
	case fixtures.BandMedium:
		return colorYellow
	default:
		return colorGreen
	}
}

func printOutcome(w io.Writer, o *model.ScanOutcome) {
	if o == nil {
		return
	}
	statusColor(o.Status).Fprintf(w, "%s", strings.ToUpper(string(o.Status)))
	fmt.Fprintf(w, "  risk: %s  threat: %s\n", o.RiskLevel, o.ThreatType)
	fmt.Fprintf(w, "%s\n", o.Explanation)
	if o.ImageOrigin != "" {
		colorCyan.Fprintf(w, "origin: ")
		fmt.Fprintln(w, o.ImageOrigin)
	}
	if o.TechnicalDetails != "" {
		colorCyan.Fprintf(w, "details: ")
		fmt.Fprintln(w, o.TechnicalDetails)
	}
	for _, r := range o.Recommendations {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}

func printFailure(w io.Writer, st session.State) {
	colorRed.Fprintf(w, "FAILED")
	fmt.Fprintf(w, "  (%s) %s\n", st.ErrorKind, st.Error)
}

func printLinkInfo(w io.Writer, info *links.Info) {
	if info == nil {
		return
	}
	colorDim.Fprintf(w, "scanning %s\n", info.Canonical)
	if info.IsIDN {
		colorYellow.Fprintf(w, "note: internationalized host, displays as %s\n", info.UnicodeHost)
	}
	if info.HadCredentials {
		colorYellow.Fprintln(w, "note: link embedded credentials (removed)")
	}
	if info.Insecure {
		colorYellow.Fprintln(w, "note: link is not encrypted (http)")
	}
}

func printApp(w io.Writer, a model.AppActivity) {
	band := fixtures.Band(a.RiskScore)
	fmt.Fprintf(w, "%-20s %3d perms  %-9s ", a.Name, a.PermissionCount, a.LastActive)
	bandColor(band).Fprintf(w, "%3d%% %s", a.RiskScore, band)
	if a.UnknownSource {
		colorDim.Fprintf(w, "  unknown source")
	}
	fmt.Fprintln(w)
}
