// Package session holds all state scoped to one loaded document: the three
// per-slide caches (extracted content, narration scripts, audio assets), the
// narrative script history, the once-per-document presentation language and
// theme context, and the signal flags that coordinate speculative prefetch
// with exports.
//
// The session is the only shared mutable state in the pipeline. Every write
// path is a designated method here, and speculative writers must pass a
// Guard that is re-validated under the session lock immediately before the
// write lands. There is no other locking anywhere in the pipeline.
package session

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/frankwiersma/PowerPointKaraoke/internal/language"
	"github.com/frankwiersma/PowerPointKaraoke/internal/speech"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// languageSampleCount is the number of generated scripts the majority-vote
// language resolution waits for, bounded by the document's slide count.
const languageSampleCount = 3

// HistoryEntry is one prior slide's narration, used as continuity context
// when generating later scripts.
type HistoryEntry struct {
	// Slide is the 1-based slide index the narration belongs to.
	Slide int

	// Narration is the generated script for that slide.
	Narration string
}

// Session is the store for one loaded document.
type Session struct {
	mu  sync.RWMutex
	log *slog.Logger

	totalSlides int

	// generation increments on every document load, invalidating guards
	// issued against the previous document.
	generation uint64

	// exportSeq increments every time an export begins. A guard issued
	// before an export can therefore never write again, even after the
	// export finishes.
	exportSeq uint64

	// exporting is true while an export run owns the caches.
	exporting bool

	content map[int]string
	scripts map[int]string
	audio   map[int]*speech.Asset

	// history holds narrations of slides the user has navigated away
	// from, feeding the rolling context window.
	history map[int]string

	// inflight tracks slide indices with a script generation currently
	// running, enforcing at most one per slide.
	inflight map[int]struct{}

	lang        language.Language
	presContext fn.Option[string]
}

// New creates a session for a document with the given slide count.
func New(totalSlides int, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}

	s := &Session{log: log}
	s.resetLocked(totalSlides)

	return s
}

// TotalSlides returns the slide count of the loaded document.
func (s *Session) TotalSlides() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.totalSlides
}

// Reset replaces the loaded document: every previously issued audio asset is
// released, all caches and history are cleared together, the language
// returns to unset, and outstanding guards go stale.
func (s *Session) Reset(totalSlides int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked(totalSlides)
}

// resetLocked clears all document state. The caller holds the write lock
// (or, from New, exclusive ownership).
func (s *Session) resetLocked(totalSlides int) {
	for slide, asset := range s.audio {
		asset.Release()
		delete(s.audio, slide)
	}

	s.totalSlides = totalSlides
	s.generation++
	s.content = make(map[int]string)
	s.scripts = make(map[int]string)
	s.audio = make(map[int]*speech.Asset)
	s.history = make(map[int]string)
	s.inflight = make(map[int]struct{})
	s.lang = language.Unset
	s.presContext = fn.None[string]()
}

// =============================================================================
// Cache access
// =============================================================================

// Content returns the cached extracted text for a slide.
func (s *Session) Content(slide int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.content[slide]
	return text, ok
}

// SetContent stores extracted text for a slide. Entries are written once per
// document and never mutated afterwards.
func (s *Session) SetContent(slide int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.content[slide]; !ok {
		s.content[slide] = text
	}
}

// Script returns the cached narration for a slide.
func (s *Session) Script(slide int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.scripts[slide]
	return text, ok
}

// SetScript stores the narration for a slide.
func (s *Session) SetScript(slide int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scripts[slide]; !ok {
		s.scripts[slide] = text
	}
}

// Audio returns the cached audio asset for a slide.
func (s *Session) Audio(slide int) (*speech.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.audio[slide]
	return asset, ok
}

// SetAudio stores the audio asset for a slide. A superseded asset for the
// same slide is released so handles do not leak across a long session.
func (s *Session) SetAudio(slide int, asset *speech.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.audio[slide]; ok && old != asset {
		old.Release()
	}
	s.audio[slide] = asset
}

// =============================================================================
// Script history (narrative context window)
// =============================================================================

// RecordHistory copies the slide's generated script into the history map.
// Called when the user navigates away from a slide that has a script.
func (s *Session) RecordHistory(slide int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if script, ok := s.scripts[slide]; ok {
		s.history[slide] = script
	}
}

// HistoryWindow returns the up-to-n most recent narrations for slides
// strictly before current, in ascending slide order. Cached scripts count as
// history even before an explicit RecordHistory, so a prefetch for slide N+1
// sees slide N's just-completed script.
func (s *Session) HistoryWindow(current, n int) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var slides []int
	seen := make(map[int]struct{})
	for slide := range s.history {
		if slide < current {
			slides = append(slides, slide)
			seen[slide] = struct{}{}
		}
	}
	for slide := range s.scripts {
		if _, dup := seen[slide]; slide < current && !dup {
			slides = append(slides, slide)
		}
	}

	sort.Ints(slides)
	if len(slides) > n {
		slides = slides[len(slides)-n:]
	}

	entries := make([]HistoryEntry, 0, len(slides))
	for _, slide := range slides {
		narration, ok := s.scripts[slide]
		if !ok {
			narration = s.history[slide]
		}
		entries = append(entries, HistoryEntry{
			Slide:     slide,
			Narration: narration,
		})
	}

	return entries
}

// =============================================================================
// Presentation language state machine
// =============================================================================

// Language returns the resolved presentation language, or language.Unset.
func (s *Session) Language() language.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lang
}

// ScriptThreshold returns how many generated scripts the majority-vote
// resolution waits for: min(totalSlides, 3).
func (s *Session) ScriptThreshold() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.totalSlides < languageSampleCount {
		return s.totalSlides
	}
	return languageSampleCount
}

// ResolveFromScripts attempts the majority-vote transition. It fires only
// when the language is still unset and at least ScriptThreshold scripts have
// been generated, voting over the lowest-indexed threshold-many scripts.
// Returns the language in effect after the call.
func (s *Session) ResolveFromScripts() language.Language {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lang != language.Unset {
		return s.lang
	}

	threshold := languageSampleCount
	if s.totalSlides < threshold {
		threshold = s.totalSlides
	}
	if threshold == 0 || len(s.scripts) < threshold {
		return s.lang
	}

	slides := make([]int, 0, len(s.scripts))
	for slide := range s.scripts {
		slides = append(slides, slide)
	}
	sort.Ints(slides)

	samples := make([]string, 0, threshold)
	for _, slide := range slides[:threshold] {
		samples = append(samples, s.scripts[slide])
	}

	s.lang = language.Resolve(samples)
	s.log.Info("presentation language resolved",
		"language", s.lang.String(),
		"samples", len(samples))

	return s.lang
}

// ResolveBootstrap resolves the language from a single script. Used by the
// export path when it starts with no cached scripts. A no-op when the
// language is already resolved.
func (s *Session) ResolveBootstrap(script string) language.Language {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lang != language.Unset {
		return s.lang
	}

	s.lang = language.Resolve([]string{script})
	s.log.Info("presentation language bootstrapped",
		"language", s.lang.String())

	return s.lang
}

// PresentationContext returns the one-sentence theme summary derived from
// slide 1, if established.
func (s *Session) PresentationContext() fn.Option[string] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.presContext
}

// SetPresentationContext stores the theme summary. Only the first call per
// document takes effect.
func (s *Session) SetPresentationContext(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.presContext.IsNone() {
		s.presContext = fn.Some(summary)
	}
}

// =============================================================================
// In-flight generation guard
// =============================================================================

// TryBeginGeneration claims the script-generation slot for a slide. It
// returns false when a generation for that slide is already running.
func (s *Session) TryBeginGeneration(slide int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[slide]; busy {
		return false
	}
	s.inflight[slide] = struct{}{}

	return true
}

// EndGeneration releases the generation slot for a slide.
func (s *Session) EndGeneration(slide int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inflight, slide)
}

// =============================================================================
// Export signal and write guards
// =============================================================================

// BeginExport claims the export slot. It returns false when an export is
// already running. Guards issued before this call are invalidated
// permanently.
func (s *Session) BeginExport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exporting {
		return false
	}
	s.exporting = true
	s.exportSeq++

	return true
}

// EndExport releases the export slot.
func (s *Session) EndExport() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exporting = false
}

// Exporting reports whether an export currently owns the caches.
func (s *Session) Exporting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.exporting
}

// Guard is a staleness token for speculative work. It captures the document
// generation and export epoch at issue time; any document reload or export
// start after that point makes the guard permanently invalid.
type Guard struct {
	sess       *Session
	generation uint64
	exportSeq  uint64
}

// Guard issues a staleness token for the current document state.
func (s *Session) Guard() Guard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Guard{
		sess:       s,
		generation: s.generation,
		exportSeq:  s.exportSeq,
	}
}

// Valid reports whether the guard still permits cache writes.
func (g Guard) Valid() bool {
	g.sess.mu.RLock()
	defer g.sess.mu.RUnlock()

	return g.validLocked()
}

// validLocked checks guard validity. The caller holds the session lock.
func (g Guard) validLocked() bool {
	return g.generation == g.sess.generation &&
		g.exportSeq == g.sess.exportSeq &&
		!g.sess.exporting
}

// SetContentIf writes extracted text only if the guard is still valid. The
// check and the write happen under one lock acquisition, so an export
// beginning concurrently can never interleave between them.
func (s *Session) SetContentIf(g Guard, slide int, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !g.validLocked() {
		return false
	}
	if _, ok := s.content[slide]; !ok {
		s.content[slide] = text
	}

	return true
}

// SetScriptIf writes a narration only if the guard is still valid.
func (s *Session) SetScriptIf(g Guard, slide int, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !g.validLocked() {
		return false
	}
	if _, ok := s.scripts[slide]; !ok {
		s.scripts[slide] = text
	}

	return true
}

// SetAudioIf writes an audio asset only if the guard is still valid. When
// the guard has gone stale the caller keeps ownership of the asset and must
// release it.
func (s *Session) SetAudioIf(g Guard, slide int, asset *speech.Asset) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !g.validLocked() {
		return false
	}
	if old, ok := s.audio[slide]; ok && old != asset {
		old.Release()
	}
	s.audio[slide] = asset

	return true
}
