// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raysh454/cyra/internal/logging"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns Body with status 200. Set Err to force a transport
// error and StatusCode to override the status.
type DummyWebClient struct {
	Body       []byte
	StatusCode int
	Err        error

	mu       sync.Mutex
	Requests []*webclient.Request
	Closed   bool
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	status := d.StatusCode
	if status == 0 {
		status = 200
	}
	return &webclient.Response{
		Request:    req,
		Body:       d.Body,
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// LastRequest returns the most recent request, or nil.
func (d *DummyWebClient) LastRequest() *webclient.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Requests) == 0 {
		return nil
	}
	return d.Requests[len(d.Requests)-1]
}

// ─── Analyzer ──────────────────────────────────────────────────────────

// PendingCall is an Analyzer call held open by a gated FakeAnalyzer until the
// test answers it.
type PendingCall struct {
	Op  string
	Arg any

	reply chan fakeReply
}

type fakeReply struct {
	v   any
	err error
}

// Succeed answers the call with v, which must match the op's result type
// (*model.ScanOutcome, *model.ModerationResult or *model.SafetyTips).
func (c *PendingCall) Succeed(v any) { c.reply <- fakeReply{v: v} }

// Fail answers the call with err.
func (c *PendingCall) Fail(err error) { c.reply <- fakeReply{err: err} }

// FakeAnalyzer implements analyzer.Analyzer.
//
// Ungated, every call returns Err if set, otherwise the canned Outcome,
// Moderation or Tips. Gated, every call is published on Calls and blocks
// until answered or until its context ends.
type FakeAnalyzer struct {
	Gated bool

	Outcome    *model.ScanOutcome
	Moderation *model.ModerationResult
	Tips       *model.SafetyTips
	Err        error

	mu     sync.Mutex
	ops    []string
	calls  chan *PendingCall
	closed bool
}

// Calls returns the channel gated calls are published on.
func (f *FakeAnalyzer) Calls() <-chan *PendingCall {
	return f.callCh()
}

// NextCall waits for the next gated call.
func (f *FakeAnalyzer) NextCall(t testing.TB) *PendingCall {
	t.Helper()
	select {
	case c := <-f.callCh():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for analyzer call")
		return nil
	}
}

// Ops returns the names of every call received so far, in order.
func (f *FakeAnalyzer) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *FakeAnalyzer) callCh() chan *PendingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(chan *PendingCall, 64)
	}
	return f.calls
}

func (f *FakeAnalyzer) call(ctx context.Context, op string, arg any) (any, error) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()

	if !f.Gated {
		return nil, f.Err
	}

	pc := &PendingCall{Op: op, Arg: arg, reply: make(chan fakeReply, 1)}
	select {
	case f.callCh() <- pc:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-pc.reply:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *FakeAnalyzer) outcome(ctx context.Context, op string, arg any) (*model.ScanOutcome, error) {
	v, err := f.call(ctx, op, arg)
	if err != nil {
		return nil, err
	}
	if o, ok := v.(*model.ScanOutcome); ok && o != nil {
		return o, nil
	}
	if f.Outcome == nil {
		return nil, errors.New("fake analyzer: no outcome configured")
	}
	out := *f.Outcome
	return &out, nil
}

func (f *FakeAnalyzer) AnalyzeLink(ctx context.Context, url string) (*model.ScanOutcome, error) {
	return f.outcome(ctx, "AnalyzeLink", url)
}

func (f *FakeAnalyzer) ScanImage(ctx context.Context, data []byte, mimeType string) (*model.ScanOutcome, error) {
	return f.outcome(ctx, "ScanImage", model.ImagePayload{Data: data, MimeType: mimeType})
}

func (f *FakeAnalyzer) AnalyzeFileMetadata(ctx context.Context, name, fileType string, content []byte) (*model.ScanOutcome, error) {
	return f.outcome(ctx, "AnalyzeFileMetadata", model.FilePayload{Name: name, Type: fileType, Content: content})
}

func (f *FakeAnalyzer) PerformOneClickCheck(ctx context.Context, apps []model.AppSummary) (*model.ScanOutcome, error) {
	return f.outcome(ctx, "PerformOneClickCheck", apps)
}

func (f *FakeAnalyzer) ModerateComment(ctx context.Context, text string) (*model.ModerationResult, error) {
	v, err := f.call(ctx, "ModerateComment", text)
	if err != nil {
		return nil, err
	}
	if m, ok := v.(*model.ModerationResult); ok && m != nil {
		return m, nil
	}
	if f.Moderation == nil {
		return &model.ModerationResult{IsAllowed: true}, nil
	}
	out := *f.Moderation
	return &out, nil
}

func (f *FakeAnalyzer) GetSafetyTips(ctx context.Context) (*model.SafetyTips, error) {
	v, err := f.call(ctx, "GetSafetyTips", nil)
	if err != nil {
		return nil, err
	}
	if tips, ok := v.(*model.SafetyTips); ok && tips != nil {
		return tips, nil
	}
	if f.Tips == nil {
		return nil, errors.New("fake analyzer: no tips configured")
	}
	out := *f.Tips
	return &out, nil
}

func (f *FakeAnalyzer) Health(ctx context.Context) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return "ok", nil
}

func (f *FakeAnalyzer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakeAnalyzer) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SafeOutcome is a convenient canned outcome.
func SafeOutcome() *model.ScanOutcome {
	return &model.ScanOutcome{
		Status:          model.StatusSafe,
		RiskLevel:       model.RiskLow,
		ThreatType:      "None",
		Explanation:     "No threats detected.",
		Recommendations: []string{"Stay alert"},
	}
}

// MaliciousOutcome is a canned high-risk outcome.
func MaliciousOutcome() *model.ScanOutcome {
	return &model.ScanOutcome{
		Status:          model.StatusMalicious,
		RiskLevel:       model.RiskHigh,
		ThreatType:      "Phishing",
		Explanation:     "Credential harvesting page.",
		Recommendations: []string{"Do not enter credentials", "Report the sender"},
	}
}
