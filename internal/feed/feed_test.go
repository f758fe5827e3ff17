package feed

import (
	"context"
	"regexp"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/testutil"
)

func TestFeed_Seeded(t *testing.T) {
	t.Parallel()
	f := New(&testutil.FakeAnalyzer{}, 0, clockwork.NewFakeClock(), &testutil.DummyLogger{})
	list := f.List()
	require.Len(t, list, 2)
	assert.Equal(t, "User#9821", list[0].Author)
	assert.Equal(t, "User#1209", list[1].Author)
	assert.True(t, list[0].Timestamp.After(list[1].Timestamp))
}

func TestFeed_PostPrepends(t *testing.T) {
	t.Parallel()
	fa := &testutil.FakeAnalyzer{}
	f := New(fa, 0, clockwork.NewFakeClock(), &testutil.DummyLogger{})

	c, err := f.Post(context.Background(), "  Update your apps!  ", "Secure User #721", false)
	require.NoError(t, err)
	assert.Equal(t, "Update your apps!", c.Text)
	assert.Equal(t, "Secure User #721", c.Author)
	assert.True(t, c.IsModerated)

	list := f.List()
	require.Len(t, list, 3)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, []string{"ModerateComment"}, fa.Ops())
}

func TestFeed_AnonymousAuthor(t *testing.T) {
	t.Parallel()
	f := New(&testutil.FakeAnalyzer{}, 0, clockwork.NewFakeClock(), &testutil.DummyLogger{})

	for i := 0; i < 50; i++ {
		c, err := f.Post(context.Background(), "hi", "ignored", true)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^Ghost#[1-9]\d{3}$`), c.Author)
	}

	f.ghostID = func() int { return 4242 }
	c, err := f.Post(context.Background(), "hi", "", true)
	require.NoError(t, err)
	assert.Equal(t, "Ghost#4242", c.Author)
}

func TestFeed_Blocked(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		reason string
		want   string
	}{
		"with reason":    {"Contains a phishing link", "Contains a phishing link"},
		"default reason": {"", DefaultBlockReason},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fa := &testutil.FakeAnalyzer{Moderation: &model.ModerationResult{IsAllowed: false, Reason: tc.reason}}
			f := New(fa, 0, clockwork.NewFakeClock(), &testutil.DummyLogger{})

			_, err := f.Post(context.Background(), "free crypto at bit.ly/x", "me", false)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBlocked)
			var be *BlockedError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tc.want, be.Reason)
			assert.Len(t, f.List(), 2)
		})
	}
}

func TestFeed_ValidationAndAnalyzerErrors(t *testing.T) {
	t.Parallel()
	f := New(&testutil.FakeAnalyzer{Err: analyzer.ErrNetwork}, 0, clockwork.NewFakeClock(), &testutil.DummyLogger{})

	_, err := f.Post(context.Background(), "   ", "me", false)
	assert.ErrorIs(t, err, analyzer.ErrValidation)
	_, err = f.Post(context.Background(), "hello", "", false)
	assert.ErrorIs(t, err, analyzer.ErrValidation)

	_, err = f.Post(context.Background(), "hello", "me", false)
	assert.ErrorIs(t, err, analyzer.ErrNetwork)
	assert.Len(t, f.List(), 2)
}

// silentModerator answers moderation with neither a verdict nor an error.
type silentModerator struct {
	testutil.FakeAnalyzer
}

func (*silentModerator) ModerateComment(context.Context, string) (*model.ModerationResult, error) {
	return nil, nil
}

func TestFeed_EmptyVerdictIsSchemaError(t *testing.T) {
	t.Parallel()
	f := New(&silentModerator{}, 0, clockwork.NewFakeClock(), &testutil.DummyLogger{})

	_, err := f.Post(context.Background(), "hello", "me", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, analyzer.ErrSchema)
	assert.Len(t, f.List(), 2)
}
