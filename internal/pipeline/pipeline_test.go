package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frankwiersma/PowerPointKaraoke/internal/extract"
	"github.com/frankwiersma/PowerPointKaraoke/internal/language"
	"github.com/frankwiersma/PowerPointKaraoke/internal/model"
	"github.com/frankwiersma/PowerPointKaraoke/internal/retry"
	"github.com/frankwiersma/PowerPointKaraoke/internal/script"
	"github.com/frankwiersma/PowerPointKaraoke/internal/session"
	"github.com/frankwiersma/PowerPointKaraoke/internal/speech"
	"github.com/stretchr/testify/require"
)

const dutchNarration = "Dit is een verhaal over de geschiedenis van het " +
	"bedrijf en de mensen die er werken."

// fakeModel dispatches to a hook; vision requests (image attached) are
// extraction calls, text-only requests are script generation. Safe for
// concurrent use.
type fakeModel struct {
	mu       sync.Mutex
	extracts int
	scripts  int

	// onScript, when set, intercepts script-generation calls.
	onScript func(req model.Request) (model.Completion, error)
}

func (f *fakeModel) Complete(_ context.Context,
	req model.Request) (model.Completion, error) {

	f.mu.Lock()
	hook := f.onScript
	if req.Image.IsSome() {
		f.extracts++
		f.mu.Unlock()
		return model.Completion{Text: "slide content"}, nil
	}
	f.scripts++
	f.mu.Unlock()

	if hook != nil {
		return hook(req)
	}
	return model.Completion{Text: dutchNarration}, nil
}

func (f *fakeModel) scriptCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scripts
}

// fakeSynth counts synthesis calls per provider. Safe for concurrent use.
type fakeSynth struct {
	mu    sync.Mutex
	name  string
	calls int
	fail  error
}

func (f *fakeSynth) Name() string { return f.name }

func (f *fakeSynth) Synthesize(_ context.Context, _, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return []byte("audio"), nil
}

func (f *fakeSynth) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDoc is a minimal in-memory document.
type fakeDoc struct {
	pages int
}

func (f *fakeDoc) PageCount() int { return f.pages }

func (f *fakeDoc) RenderPage(_ context.Context, page int,
	_ float64) ([]byte, error) {

	return []byte(fmt.Sprintf("png-%d", page)), nil
}

func (f *fakeDoc) RawText(_ context.Context, page int) (string, error) {
	return fmt.Sprintf("raw-%d", page), nil
}

func (f *fakeDoc) Close() error { return nil }

// harness bundles a fully wired pipeline over fakes.
type harness struct {
	sess    *session.Session
	model   *fakeModel
	dutch   *fakeSynth
	english *fakeSynth
	prod    *Producer
	pre     *Prefetcher
}

func newHarness(t *testing.T, slides int) *harness {
	t.Helper()

	instant := retry.DefaultPolicy()
	instant.Sleep = func(context.Context, time.Duration) error {
		return nil
	}

	m := &fakeModel{}
	doc := &fakeDoc{pages: slides}
	sess := session.New(slides, nil)

	dutch := &fakeSynth{name: "nl"}
	english := &fakeSynth{name: "en"}
	voices := speech.NewDispatch(speech.DispatchConfig{
		Dutch:        dutch,
		DutchVoice:   "voice-nl",
		English:      english,
		EnglishVoice: "voice-en",
		Policy:       instant,
	})

	extractor := extract.New(extract.Config{Model: m, Policy: instant})
	scripts := script.New(script.Config{Model: m, Policy: instant})

	h := &harness{
		sess:    sess,
		model:   m,
		dutch:   dutch,
		english: english,
	}
	h.prod = NewProducer(ProducerConfig{
		Session:   sess,
		Document:  doc,
		Extractor: extractor,
		Scripts:   scripts,
		Voices:    voices,
	})
	h.pre = NewPrefetcher(PrefetcherConfig{
		Session:   sess,
		Document:  doc,
		Extractor: extractor,
		Scripts:   scripts,
		Voices:    voices,
	})

	return h
}

// TestPrefetchFillsUpcomingSlides verifies the happy path populates all
// three caches for current+1 and current+2.
func TestPrefetchFillsUpcomingSlides(t *testing.T) {
	h := newHarness(t, 5)

	h.pre.AfterScript(context.Background(), 1)
	h.pre.Wait()

	for _, slide := range []int{2, 3} {
		_, ok := h.sess.Content(slide)
		require.True(t, ok, "content for slide %d", slide)
		_, ok = h.sess.Script(slide)
		require.True(t, ok, "script for slide %d", slide)
		_, ok = h.sess.Audio(slide)
		require.True(t, ok, "audio for slide %d", slide)
	}

	// Slide 4 is beyond the lookahead.
	_, ok := h.sess.Script(4)
	require.False(t, ok)
}

// TestPrefetchBoundedByDocument verifies the lookahead clamps at the last
// slide.
func TestPrefetchBoundedByDocument(t *testing.T) {
	h := newHarness(t, 3)

	h.pre.AfterScript(context.Background(), 2)
	h.pre.Wait()

	_, ok := h.sess.Script(3)
	require.True(t, ok)
	_, ok = h.sess.Script(4)
	require.False(t, ok)
}

// TestPrefetchSkipsCachedScripts verifies step 1: a slide whose script is
// already cached is skipped entirely, including extraction.
func TestPrefetchSkipsCachedScripts(t *testing.T) {
	h := newHarness(t, 5)

	h.sess.SetScript(2, "cached")
	h.sess.SetScript(3, "cached")

	h.pre.AfterScript(context.Background(), 1)
	h.pre.Wait()

	require.Equal(t, 0, h.model.scriptCalls())
	_, ok := h.sess.Content(2)
	require.False(t, ok)
}

// TestPrefetchDiscardsWritesAfterExportStarts simulates an export beginning
// while a prefetch awaits the model: every subsequent cache write from that
// prefetch must be discarded, not just new prefetches blocked.
func TestPrefetchDiscardsWritesAfterExportStarts(t *testing.T) {
	h := newHarness(t, 5)

	h.model.onScript = func(_ model.Request) (model.Completion, error) {
		// The export begins while the generation is in flight.
		h.sess.BeginExport()
		return model.Completion{Text: dutchNarration}, nil
	}

	h.pre.AfterScript(context.Background(), 1)
	h.pre.Wait()

	for _, slide := range []int{2, 3} {
		_, ok := h.sess.Script(slide)
		require.False(t, ok, "script for slide %d leaked", slide)
		_, ok = h.sess.Audio(slide)
		require.False(t, ok, "audio for slide %d leaked", slide)
	}

	// No synthesis should have happened after the guard went stale.
	require.Equal(t, 0, h.dutch.count()+h.english.count())
}

// TestPrefetchSuppressedDuringExport verifies no speculative work starts at
// all while an export owns the caches.
func TestPrefetchSuppressedDuringExport(t *testing.T) {
	h := newHarness(t, 5)

	require.True(t, h.sess.BeginExport())
	h.pre.AfterScript(context.Background(), 1)
	h.pre.Wait()

	require.Equal(t, 0, h.model.scriptCalls())
}

// TestPrefetchErrorsAreSilent verifies a failing step abandons the slide
// without surfacing an error or touching later caches.
func TestPrefetchErrorsAreSilent(t *testing.T) {
	h := newHarness(t, 5)

	h.model.onScript = func(_ model.Request) (model.Completion, error) {
		return model.Completion{}, errors.New("model exploded")
	}

	h.pre.AfterScript(context.Background(), 1)
	h.pre.Wait()

	// Content was extracted and cached before the failing step.
	_, ok := h.sess.Content(2)
	require.True(t, ok)
	_, ok = h.sess.Script(2)
	require.False(t, ok)
	_, ok = h.sess.Audio(2)
	require.False(t, ok)
}

// TestPrefetchContextWindowSeesCurrentSlide verifies the speculative
// script's prompt includes the just-completed current slide's narration.
func TestPrefetchContextWindowSeesCurrentSlide(t *testing.T) {
	h := newHarness(t, 5)

	h.sess.SetScript(1, "narration for slide one")

	var mu sync.Mutex
	prompts := make(map[int]string)
	h.model.onScript = func(req model.Request) (model.Completion, error) {
		mu.Lock()
		defer mu.Unlock()
		prompts[len(prompts)] = req.Prompt
		return model.Completion{Text: dutchNarration}, nil
	}

	h.pre.AfterScript(context.Background(), 1)
	h.pre.Wait()

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, prompt := range prompts {
		if strings.Contains(prompt, "narration for slide one") {
			found = true
		}
	}
	require.True(t, found, "no prefetch prompt carried slide 1's script")
}

// TestLanguageResolvesAcrossScripts is the end-to-end language scenario:
// three Dutch scripts resolve the presentation language to Dutch and every
// synthesis call lands on the Dutch provider.
func TestLanguageResolvesAcrossScripts(t *testing.T) {
	h := newHarness(t, 3)

	for slide := 1; slide <= 3; slide++ {
		_, err := h.prod.Narrate(context.Background(), slide)
		require.NoError(t, err)
	}

	require.Equal(t, language.Dutch, h.sess.Language())
	require.Equal(t, 3, h.dutch.count())
	require.Equal(t, 0, h.english.count())
}

// TestProducerReusesCaches verifies Narrate never regenerates what the
// caches already hold.
func TestProducerReusesCaches(t *testing.T) {
	h := newHarness(t, 3)

	first, err := h.prod.Narrate(context.Background(), 2)
	require.NoError(t, err)

	scriptCallsAfterFirst := h.model.scriptCalls()
	synthCallsAfterFirst := h.dutch.count() + h.english.count()

	second, err := h.prod.Narrate(context.Background(), 2)
	require.NoError(t, err)

	require.Equal(t, first.Script, second.Script)
	require.Same(t, first.Audio, second.Audio)
	require.Equal(t, scriptCallsAfterFirst, h.model.scriptCalls())
	require.Equal(t, synthCallsAfterFirst,
		h.dutch.count()+h.english.count())
}

// TestProducerSingleInflightPerSlide verifies a second concurrent
// generation for the same slide is refused.
func TestProducerSingleInflightPerSlide(t *testing.T) {
	h := newHarness(t, 3)

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	h.model.onScript = func(_ model.Request) (model.Completion, error) {
		once.Do(func() { close(started) })
		<-release
		return model.Completion{Text: dutchNarration}, nil
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := h.prod.ScriptFor(
			context.Background(), 1, "content",
		)
		errCh <- err
	}()

	<-started
	_, err := h.prod.ScriptFor(context.Background(), 1, "content")
	require.ErrorIs(t, err, ErrGenerationInFlight)

	close(release)
	require.NoError(t, <-errCh)
}

// TestProducerDeriveThemeFailureTolerated verifies slide 1's theme summary
// failure does not fail the narration.
func TestProducerDeriveThemeFailureTolerated(t *testing.T) {
	h := newHarness(t, 3)

	calls := 0
	h.model.onScript = func(_ model.Request) (model.Completion, error) {
		calls++
		if calls == 1 {
			// The narration itself succeeds...
			return model.Completion{Text: dutchNarration}, nil
		}
		// ...and the follow-up theme summary fails.
		return model.Completion{}, errors.New("summary exploded")
	}

	narration, err := h.prod.ScriptFor(
		context.Background(), 1, "slide one content",
	)
	require.NoError(t, err)
	require.Equal(t, dutchNarration, narration)
	require.True(t, h.sess.PresentationContext().IsNone())
}

// TestProducerRegeneratesStaleAudio verifies the stale-reference path: a
// cached asset whose backing file is gone is re-synthesized.
func TestProducerRegeneratesStaleAudio(t *testing.T) {
	h := newHarness(t, 3)

	first, err := h.prod.Narrate(context.Background(), 1)
	require.NoError(t, err)

	// Make the cached reference stale: drop memory and the file.
	first.Audio.DropCache()
	first.Audio.Release()

	before := h.dutch.count()
	audio, err := h.prod.AudioFor(
		context.Background(), 1, first.Script,
	)
	require.NoError(t, err)
	require.NotSame(t, first.Audio, audio)
	require.Equal(t, before+1, h.dutch.count())
}
