package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frankwiersma/PowerPointKaraoke/internal/model"
	"github.com/frankwiersma/PowerPointKaraoke/internal/retry"
	"github.com/stretchr/testify/require"
)

// fakeModel replays a scripted sequence of completion results.
type fakeModel struct {
	calls   int
	results []result
}

type result struct {
	completion model.Completion
	err        error
}

func (f *fakeModel) Complete(_ context.Context,
	_ model.Request) (model.Completion, error) {

	res := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return res.completion, res.err
}

// fakeDoc serves a fixed raster and raw text layer.
type fakeDoc struct {
	raw        string
	rawErr     error
	renderErr  error
	renders int
}

func (f *fakeDoc) PageCount() int { return 10 }

func (f *fakeDoc) RenderPage(_ context.Context, _ int,
	_ float64) ([]byte, error) {

	f.renders++
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	return []byte("png"), nil
}

func (f *fakeDoc) RawText(_ context.Context, _ int) (string, error) {
	return f.raw, f.rawErr
}

func (f *fakeDoc) Close() error { return nil }

func instantPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func newExtractor(m model.ContentModel) *Extractor {
	return New(Config{Model: m, Policy: instantPolicy()})
}

// TestSlideTextSuccess verifies the happy path returns the model's text.
func TestSlideTextSuccess(t *testing.T) {
	m := &fakeModel{results: []result{
		{completion: model.Completion{Text: "# Heading\n- bullet"}},
	}}

	text, err := newExtractor(m).SlideText(
		context.Background(), &fakeDoc{}, 1,
	)
	require.NoError(t, err)
	require.Equal(t, "# Heading\n- bullet", text)
	require.Equal(t, 1, m.calls)
}

// TestSlideTextRefusalFallsBack verifies a safety refusal falls back to the
// embedded text layer without retrying the model call.
func TestSlideTextRefusalFallsBack(t *testing.T) {
	m := &fakeModel{results: []result{
		{completion: model.Completion{Refusal: "SAFETY"}},
	}}
	doc := &fakeDoc{raw: "embedded slide text"}

	text, err := newExtractor(m).SlideText(context.Background(), doc, 3)
	require.NoError(t, err)
	require.Equal(t, "embedded slide text", text)
	require.Equal(t, 1, m.calls)
}

// TestSlideTextRefusalNoFallback verifies the typed failure when the
// fallback text layer is empty.
func TestSlideTextRefusalNoFallback(t *testing.T) {
	m := &fakeModel{results: []result{
		{completion: model.Completion{Refusal: "SAFETY"}},
	}}
	doc := &fakeDoc{raw: "   \n "}

	_, err := newExtractor(m).SlideText(context.Background(), doc, 3)
	require.ErrorIs(t, err, ErrContentFilteredNoFallback)
}

// TestSlideTextEmptyResponse verifies the typed failure for blank,
// non-refused responses, which are not retried.
func TestSlideTextEmptyResponse(t *testing.T) {
	m := &fakeModel{results: []result{
		{completion: model.Completion{Text: "  "}},
	}}

	_, err := newExtractor(m).SlideText(
		context.Background(), &fakeDoc{}, 2,
	)
	require.ErrorIs(t, err, ErrEmptyModelResponse)
	require.Equal(t, 1, m.calls)
}

// TestSlideTextTransientRetries verifies transport failures consume the full
// retry budget before surfacing.
func TestSlideTextTransientRetries(t *testing.T) {
	transient := retry.Transient(errors.New("connection reset"))
	m := &fakeModel{results: []result{
		{err: transient},
		{err: transient},
		{completion: model.Completion{Text: "recovered"}},
	}}

	text, err := newExtractor(m).SlideText(
		context.Background(), &fakeDoc{}, 1,
	)
	require.NoError(t, err)
	require.Equal(t, "recovered", text)
	require.Equal(t, 3, m.calls)
}

// TestSlideTextExhaustedRetries verifies the final transport error surfaces
// after five attempts.
func TestSlideTextExhaustedRetries(t *testing.T) {
	cause := errors.New("gateway timeout")
	m := &fakeModel{results: []result{{err: retry.Transient(cause)}}}

	_, err := newExtractor(m).SlideText(
		context.Background(), &fakeDoc{}, 1,
	)
	require.ErrorIs(t, err, cause)
	require.Equal(t, 5, m.calls)
}

// TestSlideTextRenderFailure verifies render failures surface without any
// model call.
func TestSlideTextRenderFailure(t *testing.T) {
	m := &fakeModel{results: []result{{}}}
	doc := &fakeDoc{renderErr: errors.New("corrupt page")}

	_, err := newExtractor(m).SlideText(context.Background(), doc, 1)
	require.Error(t, err)
	require.Equal(t, 0, m.calls)
}
