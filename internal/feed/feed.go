// Package feed is the in-memory community feed. Every post is moderated by
// the Analyzer before it is shown.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/logging"
	"github.com/raysh454/cyra/internal/model"
)

// DefaultBlockReason is used when the moderator gives none.
const DefaultBlockReason = "Safety policy violation"

// ErrBlocked is wrapped by every BlockedError.
var ErrBlocked = errors.New("comment blocked")

// BlockedError reports a post the moderator rejected.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string { return "comment blocked: " + e.Reason }

func (e *BlockedError) Unwrap() error { return ErrBlocked }

type Feed struct {
	moderator analyzer.Analyzer
	clock     clockwork.Clock
	logger    logging.Logger
	timeout   time.Duration

	// ghostID returns the numeric suffix for anonymous authors.
	ghostID func() int

	mu       sync.RWMutex
	comments []model.Comment
}

// New returns a feed seeded with the sample conversation.
func New(moderator analyzer.Analyzer, timeout time.Duration, clock clockwork.Clock, logger logging.Logger) *Feed {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = analyzer.DefaultTimeout
	}
	now := clock.Now().UTC()
	return &Feed{
		moderator: moderator,
		clock:     clock,
		logger:    logger.With(logging.Field{Key: "component", Value: "feed"}),
		timeout:   timeout,
		ghostID:   func() int { return 1000 + rand.IntN(9000) },
		comments: []model.Comment{
			{
				ID:          "1",
				Author:      "User#9821",
				Text:        `Just received a weird SMS from "BankAuth" - Cyra caught the link as malicious! Stay safe everyone.`,
				Timestamp:   now.Add(-time.Hour),
				IsModerated: true,
			},
			{
				ID:          "2",
				Author:      "User#1209",
				Text:        `Does anyone know if that new "CryptoWin" app is legit? My scan showed 85% risk.`,
				Timestamp:   now.Add(-2 * time.Hour),
				IsModerated: true,
			},
		},
	}
}

// List returns the comments, newest first.
func (f *Feed) List() []model.Comment {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.Comment(nil), f.comments...)
}

// Post moderates text and, if allowed, prepends it. Anonymous posts get a
// Ghost#NNNN author. A rejected post returns a *BlockedError.
func (f *Feed) Post(ctx context.Context, text, author string, anonymous bool) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty comment", analyzer.ErrValidation)
	}
	if !anonymous && strings.TrimSpace(author) == "" {
		return nil, fmt.Errorf("%w: author is required", analyzer.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	verdict, err := f.moderator.ModerateComment(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("moderate comment: %w", err)
	}
	if verdict == nil {
		return nil, fmt.Errorf("moderate comment: %w: empty verdict", analyzer.ErrSchema)
	}
	if !verdict.IsAllowed {
		reason := verdict.Reason
		if reason == "" {
			reason = DefaultBlockReason
		}
		f.logger.Info("comment blocked", logging.Field{Key: "reason", Value: reason})
		return nil, &BlockedError{Reason: reason}
	}

	if anonymous {
		author = fmt.Sprintf("Ghost#%d", f.ghostID())
	}
	c := model.Comment{
		ID:          uuid.New().String(),
		Author:      author,
		Text:        text,
		Timestamp:   f.clock.Now().UTC(),
		IsModerated: true,
	}

	f.mu.Lock()
	f.comments = append([]model.Comment{c}, f.comments...)
	f.mu.Unlock()
	return &c, nil
}
