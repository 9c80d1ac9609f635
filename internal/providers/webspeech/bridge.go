// Package webspeech implements synthesis, recognition and media capture on
// top of the browser engine. The backend emits request events to the
// frontend, which drives the Web Speech and MediaRecorder APIs and delivers
// results back through bound methods.
package webspeech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"prepcam/internal/domain"
	"prepcam/internal/ports"
)

// Event names for backend -> frontend requests.
const (
	EventSpeak          = "prepcam:tts:speak"
	EventSpeakCancel    = "prepcam:tts:cancel"
	EventRecognizeStart = "prepcam:stt:start"
	EventRecognizeStop  = "prepcam:stt:stop"
	EventMediaAcquire   = "prepcam:media:acquire"
	EventMediaRelease   = "prepcam:media:release"
	EventRecordStart    = "prepcam:record:start"
	EventRecordStop     = "prepcam:record:stop"
)

// SpeakRequest asks the frontend to synthesize one utterance.
type SpeakRequest struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

// RecognizeRequest asks the frontend to run continuous recognition.
type RecognizeRequest struct {
	ID       string `json:"id"`
	Language string `json:"language"`
}

// TargetRequest addresses a previously issued request by id.
type TargetRequest struct {
	ID string `json:"id"`
}

// Emitter sends an event to the frontend. The Wails runtime satisfies it.
type Emitter interface {
	Emit(event string, payload any)
}

// Bridge is the browser-backed provider set. One instance serves the whole
// application lifetime; requests are correlated by generated ids so stale
// frontend deliveries are ignored.
type Bridge struct {
	emitter Emitter
	log     *logrus.Entry

	mu       sync.Mutex
	speaks   map[string]chan error
	streams  map[string]*stream
	grants   map[string]chan acquireResult
	segments map[string]*segment
}

func NewBridge(emitter Emitter) *Bridge {
	return &Bridge{
		emitter:  emitter,
		log:      logrus.WithField("component", "webspeech"),
		speaks:   make(map[string]chan error),
		streams:  make(map[string]*stream),
		grants:   make(map[string]chan acquireResult),
		segments: make(map[string]*segment),
	}
}

// ---- Synthesizer ----

// Speak blocks until the frontend reports playback finished or ctx ends.
func (b *Bridge) Speak(ctx context.Context, text string, languageTag string) error {
	id := uuid.NewString()
	done := make(chan error, 1)

	b.mu.Lock()
	b.speaks[id] = done
	b.mu.Unlock()

	b.emitter.Emit(EventSpeak, SpeakRequest{ID: id, Text: text, Language: languageTag})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.speaks, id)
		b.mu.Unlock()
		b.emitter.Emit(EventSpeakCancel, TargetRequest{ID: id})
		return ctx.Err()
	}
}

// PlaybackFinished resolves a pending Speak. An empty message means success.
func (b *Bridge) PlaybackFinished(id string, errMessage string) {
	b.mu.Lock()
	done, ok := b.speaks[id]
	delete(b.speaks, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	if errMessage != "" {
		done <- errors.New(errMessage)
		return
	}
	done <- nil
}

// ---- Transcriber ----

type stream struct {
	bridge *Bridge
	id     string
	events chan domain.TranscriptEvent

	endOnce sync.Once
	mu      sync.Mutex
	err     error
}

func (s *stream) Events() <-chan domain.TranscriptEvent { return s.events }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	s.bridge.emitter.Emit(EventRecognizeStop, TargetRequest{ID: s.id})
	s.end(nil)
	return nil
}

func (s *stream) end(err error) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		s.bridge.mu.Lock()
		delete(s.bridge.streams, s.id)
		s.bridge.mu.Unlock()

		close(s.events)
	})
}

// Start asks the frontend to begin continuous recognition.
func (b *Bridge) Start(ctx context.Context, languageTag string) (ports.RecognitionStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &stream{
		bridge: b,
		id:     uuid.NewString(),
		events: make(chan domain.TranscriptEvent, 64),
	}

	b.mu.Lock()
	b.streams[s.id] = s
	b.mu.Unlock()

	b.emitter.Emit(EventRecognizeStart, RecognizeRequest{ID: s.id, Language: languageTag})

	go func() {
		<-ctx.Done()
		s.end(nil)
	}()
	return s, nil
}

// RecognitionResult delivers one recognized utterance for a stream.
func (b *Bridge) RecognitionResult(id string, text string) {
	b.mu.Lock()
	s, ok := b.streams[id]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case s.events <- domain.TranscriptEvent{Text: text}:
	default:
		b.log.WithField("stream", id).Warn("recognition event dropped, consumer is behind")
	}
}

// RecognitionEnded reports that the browser engine stopped on its own, for
// example after a silence timeout. The owning cycle restarts recognition.
func (b *Bridge) RecognitionEnded(id string) {
	b.mu.Lock()
	s, ok := b.streams[id]
	b.mu.Unlock()
	if ok {
		s.end(nil)
	}
}

// RecognitionError reports a recognition failure from the browser engine.
func (b *Bridge) RecognitionError(id string, message string) {
	b.mu.Lock()
	s, ok := b.streams[id]
	b.mu.Unlock()
	if ok {
		s.end(fmt.Errorf("recognition failed: %s", message))
	}
}

// ---- MediaSource ----

type acquireResult struct {
	granted bool
	reason  string
}

// Acquire asks the frontend for camera and microphone access. It blocks
// until the user answers the permission prompt or ctx ends.
func (b *Bridge) Acquire(ctx context.Context) (ports.MediaDevice, error) {
	id := uuid.NewString()
	grant := make(chan acquireResult, 1)

	b.mu.Lock()
	b.grants[id] = grant
	b.mu.Unlock()

	b.emitter.Emit(EventMediaAcquire, TargetRequest{ID: id})

	select {
	case result := <-grant:
		if !result.granted {
			return nil, fmt.Errorf("%w: %s", domain.ErrDeviceUnavailable, result.reason)
		}
		return &device{bridge: b, id: id}, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.grants, id)
		b.mu.Unlock()
		return nil, ctx.Err()
	}
}

// MediaGranted resolves a pending Acquire with success.
func (b *Bridge) MediaGranted(id string) {
	b.resolveGrant(id, acquireResult{granted: true})
}

// MediaDenied resolves a pending Acquire with failure.
func (b *Bridge) MediaDenied(id string, reason string) {
	b.resolveGrant(id, acquireResult{granted: false, reason: reason})
}

func (b *Bridge) resolveGrant(id string, result acquireResult) {
	b.mu.Lock()
	grant, ok := b.grants[id]
	delete(b.grants, id)
	b.mu.Unlock()
	if ok {
		grant <- result
	}
}

type device struct {
	bridge *Bridge
	id     string
}

// Record starts a MediaRecorder segment in the frontend.
func (d *device) Record() (ports.RecordingSegment, error) {
	seg := &segment{
		bridge: d.bridge,
		id:     uuid.NewString(),
		done:   make(chan struct{}),
	}

	d.bridge.mu.Lock()
	d.bridge.segments[seg.id] = seg
	d.bridge.mu.Unlock()

	d.bridge.emitter.Emit(EventRecordStart, TargetRequest{ID: seg.id})
	return seg, nil
}

func (d *device) Release() error {
	d.bridge.emitter.Emit(EventMediaRelease, TargetRequest{ID: d.id})
	return nil
}

type segment struct {
	bridge *Bridge
	id     string
	done   chan struct{}

	mu       sync.Mutex
	buf      bytes.Buffer
	mimeType string
	stopped  bool
}

// Stop asks the frontend to stop the recorder. The assembled artifact
// arrives asynchronously via RecordingStopped.
func (s *segment) Stop() error {
	s.bridge.emitter.Emit(EventRecordStop, TargetRequest{ID: s.id})
	return nil
}

// Artifact blocks until the recorder has flushed its final chunk.
func (s *segment) Artifact(ctx context.Context) (domain.MediaArtifact, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return domain.MediaArtifact{}, fmt.Errorf("recording did not settle: %w", ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MediaArtifact{
		Data:     append([]byte(nil), s.buf.Bytes()...),
		MIMEType: s.mimeType,
	}, nil
}

// RecordingChunk appends recorder data for a segment. Chunks arriving after
// the segment stopped are discarded.
func (b *Bridge) RecordingChunk(id string, chunk []byte) {
	b.mu.Lock()
	seg, ok := b.segments[id]
	b.mu.Unlock()
	if !ok || len(chunk) == 0 {
		return
	}

	seg.mu.Lock()
	defer seg.mu.Unlock()
	if seg.stopped {
		return
	}
	seg.buf.Write(chunk)
}

// RecordingStopped finalizes a segment after the recorder flushed.
func (b *Bridge) RecordingStopped(id string, mimeType string) {
	b.mu.Lock()
	seg, ok := b.segments[id]
	delete(b.segments, id)
	b.mu.Unlock()
	if !ok {
		return
	}

	seg.mu.Lock()
	already := seg.stopped
	seg.stopped = true
	if mimeType != "" {
		seg.mimeType = mimeType
	}
	seg.mu.Unlock()

	if !already {
		close(seg.done)
	}
}
