package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/feed"
	"github.com/raysh454/cyra/internal/fixtures"
	"github.com/raysh454/cyra/internal/links"
	"github.com/raysh454/cyra/internal/logging"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/monitor"
	"github.com/raysh454/cyra/internal/notify"
	"github.com/raysh454/cyra/internal/secret"
	"github.com/raysh454/cyra/internal/session"
)

// Scanner surfaces. Each owns one session.
const (
	SurfaceLink        = "link"
	SurfaceFile        = "file"
	SurfaceImage       = "image"
	SurfaceAppActivity = "app-activity"
	SurfaceOneClick    = "one-click"
)

// Surfaces lists every scanner surface in display order.
var Surfaces = []string{SurfaceLink, SurfaceFile, SurfaceImage, SurfaceAppActivity, SurfaceOneClick}

const (
	ShieldOnMessage  = "Live protection activated."
	ShieldOffMessage = "Live protection turned off."
)

var (
	ErrUnknownSurface = errors.New("unknown scan surface")
	ErrClosed         = errors.New("companion closed")
)

// Companion owns every state container of the core: one session per scanner
// surface, the notification center, the background monitor, the user
// settings and the community feed. Nothing outside mutates them directly.
type Companion struct {
	cfg      *Config
	analyzer analyzer.Analyzer
	clock    clockwork.Clock
	logger   logging.Logger

	sessions map[string]*session.Session
	center   *notify.Center
	monitor  *monitor.Monitor
	feed     *feed.Feed

	mu       sync.Mutex
	settings model.Settings
	username string
	closed   bool
}

// NewCompanion wires the containers together. clock and sampler may be nil
// to use the real clock and the global random source. If the realtime
// shield starts enabled the monitor is armed immediately.
func NewCompanion(cfg *Config, a analyzer.Analyzer, clock clockwork.Clock, sampler monitor.Sampler, logger logging.Logger) (*Companion, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if a == nil {
		return nil, errors.New("analyzer is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	center := notify.NewCenter(cfg.Notify, clock, logger)
	c := &Companion{
		cfg:      cfg,
		analyzer: a,
		clock:    clock,
		logger:   logger.With(logging.Field{Key: "component", Value: "companion"}),
		sessions: make(map[string]*session.Session, len(Surfaces)),
		center:   center,
		monitor:  monitor.New(cfg.Monitor, center, sampler, clock, logger),
		feed:     feed.New(a, cfg.Analyzer.Timeout, clock, logger),
		settings: cfg.Settings,
		username: cfg.Username,
	}
	for _, s := range Surfaces {
		c.sessions[s] = session.New(session.Config{Surface: s, Timeout: cfg.Analyzer.Timeout}, a, clock, logger)
	}
	if c.settings.RealtimeShield {
		c.monitor.Enable()
	}
	return c, nil
}

// Clock is the clock shared by every container.
func (c *Companion) Clock() clockwork.Clock { return c.clock }

// Session returns the session serving surface.
func (c *Companion) Session(surface string) (*session.Session, error) {
	s, ok := c.sessions[surface]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSurface, surface)
	}
	return s, nil
}

// ScanLink canonicalizes raw and submits it to the link session. The
// returned Info carries local hints about the link.
func (c *Companion) ScanLink(ctx context.Context, raw string) (string, *links.Info, error) {
	info, err := links.Inspect(raw, c.cfg.Links)
	if err != nil {
		return "", nil, err
	}
	id, err := c.sessions[SurfaceLink].Submit(ctx, model.LinkPayload{URL: info.Canonical})
	if err != nil {
		return "", nil, err
	}
	return id, info, nil
}

// ScanFile submits a file description. content is optional.
func (c *Companion) ScanFile(ctx context.Context, name, fileType string, content []byte) (string, error) {
	return c.sessions[SurfaceFile].Submit(ctx, model.FilePayload{Name: name, Type: fileType, Content: content})
}

// ScanImage submits a screenshot; an empty mimeType is detected from data.
func (c *Companion) ScanImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	return c.sessions[SurfaceImage].Submit(ctx, model.ImagePayload{Data: data, MimeType: mimeType})
}

// ScanAppActivity submits the installed-app fixtures for a device review.
func (c *Companion) ScanAppActivity(ctx context.Context) (string, error) {
	return c.sessions[SurfaceAppActivity].Submit(ctx, model.AppSummaryPayload{Apps: fixtures.InstalledAppSummaries()})
}

// OneClickCheck submits the one-click device check.
func (c *Companion) OneClickCheck(ctx context.Context) (string, error) {
	return c.sessions[SurfaceOneClick].Submit(ctx, model.AppSummaryPayload{Apps: fixtures.OneClickApps()})
}

// ResetScan returns the surface's session to idle.
func (c *Companion) ResetScan(surface string) error {
	s, err := c.Session(surface)
	if err != nil {
		return err
	}
	s.Reset()
	return nil
}

// InstalledApps returns the illustrative app list, riskiest first.
func (c *Companion) InstalledApps() []model.AppActivity {
	return fixtures.InstalledApps()
}

// Settings returns the current settings.
func (c *Companion) Settings() model.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings applies p and returns the new settings. Only a change of
// RealtimeShield touches the monitor.
func (c *Companion) UpdateSettings(p model.SettingsPatch) (model.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.settings, ErrClosed
	}
	prev := c.settings
	c.settings = p.Apply(prev)
	c.applyShieldLocked(prev.RealtimeShield)
	return c.settings, nil
}

// ToggleShield flips the realtime shield and announces the change.
func (c *Companion) ToggleShield() (model.Settings, error) {
	c.mu.Lock()
	if c.closed {
		defer c.mu.Unlock()
		return c.settings, ErrClosed
	}
	prev := c.settings.RealtimeShield
	c.settings.RealtimeShield = !prev
	c.applyShieldLocked(prev)
	settings := c.settings
	c.mu.Unlock()

	msg := ShieldOffMessage
	if settings.RealtimeShield {
		msg = ShieldOnMessage
	}
	c.center.Push(msg)
	return settings, nil
}

// applyShieldLocked arms or disarms the monitor when RealtimeShield moved
// away from prev. Holding c.mu keeps concurrent toggles ordered.
func (c *Companion) applyShieldLocked(prev bool) {
	now := c.settings.RealtimeShield
	if now == prev {
		return
	}
	if now {
		c.monitor.Enable()
	} else {
		c.monitor.Disable()
	}
	c.logger.Info("realtime shield changed", logging.Field{Key: "enabled", Value: now})
}

// Username returns the profile display name.
func (c *Companion) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// SetUsername changes the display name used for non-anonymous posts.
func (c *Companion) SetUsername(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: username is empty", analyzer.ErrValidation)
	}
	c.mu.Lock()
	c.username = name
	c.mu.Unlock()
	return nil
}

// Notifications returns the visible notifications, newest first.
func (c *Companion) Notifications() []notify.Entry {
	return c.center.List()
}

// Notify pushes message to the notification center.
func (c *Companion) Notify(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: empty notification", analyzer.ErrValidation)
	}
	id := c.center.Push(message)
	if id == "" {
		return "", ErrClosed
	}
	return id, nil
}

// Dismiss removes a notification. It reports whether it was still visible.
func (c *Companion) Dismiss(id string) bool {
	return c.center.Dismiss(id)
}

// Center exposes the notification center for event subscriptions.
func (c *Companion) Center() *notify.Center { return c.center }

// Monitor exposes the background monitor for status reporting.
func (c *Companion) Monitor() *monitor.Monitor { return c.monitor }

// GenerateSecret returns a random secret of length characters.
func (c *Companion) GenerateSecret(length int) (string, error) {
	return secret.Generate(length)
}

// SafetyTips asks the Analyzer for advice, bounded by the analyzer timeout.
func (c *Companion) SafetyTips(ctx context.Context) (*model.SafetyTips, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Analyzer.Timeout)
	defer cancel()

	tips, err := c.analyzer.GetSafetyTips(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", analyzer.ErrTimeout, err)
		}
		c.logger.Warn("safety tips failed", logging.Field{Key: "error", Value: err}, logging.Field{Key: "kind", Value: analyzer.KindOf(err)})
		return nil, err
	}
	return tips, nil
}

// Comments returns the community feed, newest first.
func (c *Companion) Comments() []model.Comment {
	return c.feed.List()
}

// PostComment moderates and posts text under the profile name, or under a
// ghost name while anonymous mode is on.
func (c *Companion) PostComment(ctx context.Context, text string) (*model.Comment, error) {
	c.mu.Lock()
	anon := c.settings.AnonymousMode
	author := c.username
	c.mu.Unlock()
	return c.feed.Post(ctx, text, author, anon)
}

// Health reports whether the Analyzer is reachable.
func (c *Companion) Health(ctx context.Context) (string, error) {
	return c.analyzer.Health(ctx)
}

// Close stops the monitor, drops in-flight scans and releases the Analyzer.
// It is safe to call more than once.
func (c *Companion) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.monitor.Disable()
	for _, s := range c.sessions {
		s.Close()
	}
	c.center.Close()
	return c.analyzer.Close()
}
