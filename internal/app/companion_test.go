package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/app"
	"github.com/raysh454/cyra/internal/feed"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/monitor"
	"github.com/raysh454/cyra/internal/session"
	"github.com/raysh454/cyra/internal/testutil"
)

type constSampler float64

func (s constSampler) Float64() float64 { return float64(s) }

func newCompanion(t *testing.T, fa *testutil.FakeAnalyzer, clock clockwork.Clock, cfg *app.Config) *app.Companion {
	t.Helper()
	if cfg == nil {
		cfg = app.DefaultConfig()
	}
	c, err := app.NewCompanion(cfg, fa, clock, constSampler(0), &testutil.DummyLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitPhase(t *testing.T, c *app.Companion, surface string, phase session.Phase) session.State {
	t.Helper()
	s, err := c.Session(surface)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.State().Phase == phase }, 2*time.Second, 5*time.Millisecond)
	return s.State()
}

func messages(c *app.Companion) []string {
	var out []string
	for _, e := range c.Notifications() {
		out = append(out, e.Message)
	}
	return out
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNewCompanion_RequiresDeps(t *testing.T) {
	t.Parallel()
	_, err := app.NewCompanion(nil, nil, nil, nil, &testutil.DummyLogger{})
	assert.Error(t, err)
	_, err = app.NewCompanion(nil, &testutil.FakeAnalyzer{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestNewCompanion_ShieldArmsMonitor(t *testing.T) {
	t.Parallel()
	c := newCompanion(t, &testutil.FakeAnalyzer{}, clockwork.NewFakeClock(), nil)
	assert.True(t, c.Monitor().Enabled())

	cfg := app.DefaultConfig()
	cfg.Settings.RealtimeShield = false
	off := newCompanion(t, &testutil.FakeAnalyzer{}, clockwork.NewFakeClock(), cfg)
	assert.False(t, off.Monitor().Enabled())
}

func TestCompanion_AllSurfacesStartIdle(t *testing.T) {
	t.Parallel()
	c := newCompanion(t, &testutil.FakeAnalyzer{}, clockwork.NewFakeClock(), nil)
	for _, surface := range app.Surfaces {
		s, err := c.Session(surface)
		require.NoError(t, err)
		assert.Equal(t, session.PhaseIdle, s.State().Phase, surface)
	}
	_, err := c.Session("microphone")
	assert.ErrorIs(t, err, app.ErrUnknownSurface)
	assert.ErrorIs(t, c.ResetScan("microphone"), app.ErrUnknownSurface)
}

// ─── Scans ─────────────────────────────────────────────────────────────

func TestCompanion_ScanLinkCanonicalizes(t *testing.T) {
	t.Parallel()
	fa := &testutil.FakeAnalyzer{Gated: true}
	c := newCompanion(t, fa, clockwork.NewFakeClock(), nil)

	id, info, err := c.ScanLink(context.Background(), "Example.COM/login?utm_source=sms&a=1#top")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, "https://example.com/login?a=1", info.Canonical)

	call := fa.NextCall(t)
	assert.Equal(t, "AnalyzeLink", call.Op)
	assert.Equal(t, "https://example.com/login?a=1", call.Arg)

	assert.Equal(t, session.PhasePending, waitPhase(t, c, app.SurfaceLink, session.PhasePending).Phase)
	call.Succeed(testutil.MaliciousOutcome())

	st := waitPhase(t, c, app.SurfaceLink, session.PhaseSucceeded)
	assert.Equal(t, id, st.RequestID)
	assert.Equal(t, model.StatusMalicious, st.Outcome.Status)
}

func TestCompanion_ScanLinkInvalidLeavesSessionIdle(t *testing.T) {
	t.Parallel()
	fa := &testutil.FakeAnalyzer{}
	c := newCompanion(t, fa, clockwork.NewFakeClock(), nil)

	_, _, err := c.ScanLink(context.Background(), "ftp://files.example.com")
	assert.ErrorIs(t, err, analyzer.ErrValidation)
	s, _ := c.Session(app.SurfaceLink)
	assert.Equal(t, session.PhaseIdle, s.State().Phase)
	assert.Empty(t, fa.Ops())
}

func TestCompanion_ScanFileAndImage(t *testing.T) {
	t.Parallel()
	fa := &testutil.FakeAnalyzer{Outcome: testutil.SafeOutcome()}
	c := newCompanion(t, fa, clockwork.NewFakeClock(), nil)

	_, err := c.ScanFile(context.Background(), "invoice.pdf.exe", "application/x-msdownload", nil)
	require.NoError(t, err)
	waitPhase(t, c, app.SurfaceFile, session.PhaseSucceeded)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	_, err = c.ScanImage(context.Background(), png, "")
	require.NoError(t, err)
	waitPhase(t, c, app.SurfaceImage, session.PhaseSucceeded)

	_, err = c.ScanImage(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, analyzer.ErrValidation)

	assert.ElementsMatch(t, []string{"AnalyzeFileMetadata", "ScanImage"}, fa.Ops())
}

func TestCompanion_DeviceChecksUseFixtures(t *testing.T) {
	t.Parallel()
	fa := &testutil.FakeAnalyzer{Gated: true}
	c := newCompanion(t, fa, clockwork.NewFakeClock(), nil)

	_, err := c.ScanAppActivity(context.Background())
	require.NoError(t, err)
	call := fa.NextCall(t)
	assert.Equal(t, "PerformOneClickCheck", call.Op)
	apps, ok := call.Arg.([]model.AppSummary)
	require.True(t, ok)
	assert.Len(t, apps, len(c.InstalledApps()))
	call.Fail(analyzer.ErrNetwork)
	st := waitPhase(t, c, app.SurfaceAppActivity, session.PhaseFailed)
	assert.Equal(t, analyzer.KindNetwork, st.ErrorKind)

	_, err = c.OneClickCheck(context.Background())
	require.NoError(t, err)
	call = fa.NextCall(t)
	apps, ok = call.Arg.([]model.AppSummary)
	require.True(t, ok)
	assert.Len(t, apps, 2)
	call.Succeed(testutil.SafeOutcome())
	waitPhase(t, c, app.SurfaceOneClick, session.PhaseSucceeded)

	// Surfaces are independent.
	s, _ := c.Session(app.SurfaceAppActivity)
	assert.Equal(t, session.PhaseFailed, s.State().Phase)
	require.NoError(t, c.ResetScan(app.SurfaceAppActivity))
	assert.Equal(t, session.PhaseIdle, s.State().Phase)
}

// ─── Settings & shield ─────────────────────────────────────────────────

func TestCompanion_ToggleShield(t *testing.T) {
	t.Parallel()
	c := newCompanion(t, &testutil.FakeAnalyzer{}, clockwork.NewFakeClock(), nil)

	s, err := c.ToggleShield()
	require.NoError(t, err)
	assert.False(t, s.RealtimeShield)
	assert.False(t, c.Monitor().Enabled())
	assert.Equal(t, []string{app.ShieldOffMessage}, messages(c))

	s, err = c.ToggleShield()
	require.NoError(t, err)
	assert.True(t, s.RealtimeShield)
	assert.True(t, c.Monitor().Enabled())
	assert.Equal(t, []string{app.ShieldOnMessage, app.ShieldOffMessage}, messages(c))
}

func TestCompanion_UpdateSettingsOnlyShieldTouchesMonitor(t *testing.T) {
	t.Parallel()
	c := newCompanion(t, &testutil.FakeAnalyzer{}, clockwork.NewFakeClock(), nil)
	off, on := false, true

	s, err := c.UpdateSettings(model.SettingsPatch{AnonymousMode: &off, Notifications: &off})
	require.NoError(t, err)
	assert.False(t, s.AnonymousMode)
	assert.False(t, s.Notifications)
	assert.True(t, c.Monitor().Enabled())

	_, err = c.UpdateSettings(model.SettingsPatch{RealtimeShield: &off})
	require.NoError(t, err)
	assert.False(t, c.Monitor().Enabled())

	_, err = c.UpdateSettings(model.SettingsPatch{RealtimeShield: &on})
	require.NoError(t, err)
	assert.True(t, c.Monitor().Enabled())

	assert.Empty(t, c.Notifications())
}

func TestCompanion_MonitorPushesIntoCenter(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	cfg := app.DefaultConfig()
	c, err := app.NewCompanion(cfg, &testutil.FakeAnalyzer{}, clock, constSampler(0.99), &testutil.DummyLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	clock.Advance(cfg.Monitor.PollInterval)
	require.Eventually(t, func() bool { return c.Monitor().Pushes() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{monitor.AlertMessage}, messages(c))

	_, err = c.ToggleShield()
	require.NoError(t, err)
	clock.Advance(cfg.Monitor.PollInterval)
	assert.Equal(t, int64(1), c.Monitor().Pushes())
}

// ─── Notifications, secrets, tips ──────────────────────────────────────

func TestCompanion_NotifyAndDismiss(t *testing.T) {
	t.Parallel()
	c := newCompanion(t, &testutil.FakeAnalyzer{}, clockwork.NewFakeClock(), nil)

	_, err := c.Notify("   ")
	assert.ErrorIs(t, err, analyzer.ErrValidation)

	id, err := c.Notify("Scan complete")
	require.NoError(t, err)
	assert.Len(t, c.Notifications(), 1)
	assert.True(t, c.Dismiss(id))
	assert.False(t, c.Dismiss(id))
	assert.Empty(t, c.Notifications())
}

func TestCompanion_GenerateSecret(t *testing.T) {
	t.Parallel()
	c := newCompanion(t, &testutil.FakeAnalyzer{}, clockwork.NewFakeClock(), nil)
	s, err := c.GenerateSecret(20)
	require.NoError(t, err)
	assert.Len(t, s, 20)
	_, err = c.GenerateSecret(4)
	assert.ErrorIs(t, err, analyzer.ErrValidation)
}

func TestCompanion_SafetyTips(t *testing.T) {
	t.Parallel()
	tips := &model.SafetyTips{Title: "Stay safe", Tips: []model.SafetyTip{{Text: "Update your OS", Urgent: true}}}
	c := newCompanion(t, &testutil.FakeAnalyzer{Tips: tips}, clockwork.NewFakeClock(), nil)
	got, err := c.SafetyTips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tips.Title, got.Title)

	failing := newCompanion(t, &testutil.FakeAnalyzer{Err: analyzer.ErrSchema}, clockwork.NewFakeClock(), nil)
	_, err = failing.SafetyTips(context.Background())
	assert.Equal(t, analyzer.KindSchema, analyzer.KindOf(err))
}

func TestCompanion_SafetyTipsTimeout(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	cfg.Analyzer.Timeout = 20 * time.Millisecond
	fa := &testutil.FakeAnalyzer{Gated: true}
	c := newCompanion(t, fa, clockwork.NewFakeClock(), cfg)

	_, err := c.SafetyTips(context.Background())
	assert.ErrorIs(t, err, analyzer.ErrTimeout)
	assert.Equal(t, analyzer.KindTimeout, analyzer.KindOf(err))
}

// ─── Feed ──────────────────────────────────────────────────────────────

func TestCompanion_PostCommentRespectsAnonymousMode(t *testing.T) {
	t.Parallel()
	c := newCompanion(t, &testutil.FakeAnalyzer{}, clockwork.NewFakeClock(), nil)

	ghost, err := c.PostComment(context.Background(), "Beware of fake parcel texts")
	require.NoError(t, err)
	assert.Regexp(t, `^Ghost#\d{4}$`, ghost.Author)

	off := false
	_, err = c.UpdateSettings(model.SettingsPatch{AnonymousMode: &off})
	require.NoError(t, err)
	assert.Error(t, c.SetUsername("  "))
	require.NoError(t, c.SetUsername("Alex"))

	named, err := c.PostComment(context.Background(), "Thanks!")
	require.NoError(t, err)
	assert.Equal(t, "Alex", named.Author)
	assert.Len(t, c.Comments(), 4)
	assert.Equal(t, named.ID, c.Comments()[0].ID)
}

func TestCompanion_PostCommentBlocked(t *testing.T) {
	t.Parallel()
	fa := &testutil.FakeAnalyzer{Moderation: &model.ModerationResult{IsAllowed: false, Reason: "Spam"}}
	c := newCompanion(t, fa, clockwork.NewFakeClock(), nil)

	_, err := c.PostComment(context.Background(), "buy followers")
	assert.ErrorIs(t, err, feed.ErrBlocked)
	assert.Len(t, c.Comments(), 2)
}

// ─── Lifecycle ─────────────────────────────────────────────────────────

func TestCompanion_Close(t *testing.T) {
	t.Parallel()
	fa := &testutil.FakeAnalyzer{}
	c, err := app.NewCompanion(app.DefaultConfig(), fa, clockwork.NewFakeClock(), nil, &testutil.DummyLogger{})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, fa.IsClosed())
	assert.False(t, c.Monitor().Enabled())

	_, err = c.ToggleShield()
	assert.ErrorIs(t, err, app.ErrClosed)
	_, err = c.Notify("late")
	assert.ErrorIs(t, err, app.ErrClosed)
	_, err = c.ScanFile(context.Background(), "a.txt", "text/plain", nil)
	assert.ErrorIs(t, err, session.ErrClosed)
}
