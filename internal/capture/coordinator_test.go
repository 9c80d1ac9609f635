package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"prepcam/internal/domain"
	"prepcam/internal/ports"
)

func TestCycleAccumulatesFragments(t *testing.T) {
	t.Parallel()

	transcriber := newFakeTranscriber()
	coord := NewCoordinator(transcriber, newFakeSource(), &fakeSink{}, 0)
	defer coord.Release()

	fragments := make(chan string, 8)
	cycle := coord.Open(context.Background(), "en-US", "", func(_, full string) {
		fragments <- full
	})

	stream := transcriber.waitForStream(t, 1)
	stream.events <- domain.TranscriptEvent{Text: "my name"}
	stream.events <- domain.TranscriptEvent{Text: "is Alex"}

	if got := recv(t, fragments); got != "my name" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	if got := recv(t, fragments); got != "my name is Alex" {
		t.Fatalf("unexpected transcript: %q", got)
	}

	transcript, _ := cycle.Close(false)
	if transcript != "my name is Alex" {
		t.Fatalf("unexpected final transcript: %q", transcript)
	}
}

func TestCycleSeededWithCheckpointTranscript(t *testing.T) {
	t.Parallel()

	transcriber := newFakeTranscriber()
	coord := NewCoordinator(transcriber, newFakeSource(), &fakeSink{}, 0)
	defer coord.Release()

	fragments := make(chan string, 8)
	cycle := coord.Open(context.Background(), "en-US", "before the pause", func(_, full string) {
		fragments <- full
	})

	stream := transcriber.waitForStream(t, 1)
	stream.events <- domain.TranscriptEvent{Text: "after the pause"}

	if got := recv(t, fragments); got != "before the pause after the pause" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	cycle.Close(false)
}

func TestCycleRestartsStreamWhileOpen(t *testing.T) {
	t.Parallel()

	transcriber := newFakeTranscriber()
	coord := NewCoordinator(transcriber, newFakeSource(), &fakeSink{}, 0)
	defer coord.Release()

	fragments := make(chan string, 8)
	cycle := coord.Open(context.Background(), "en-US", "", func(_, full string) {
		fragments <- full
	})

	first := transcriber.waitForStream(t, 1)
	first.events <- domain.TranscriptEvent{Text: "one"}
	if got := recv(t, fragments); got != "one" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	first.end(nil)

	second := transcriber.waitForStream(t, 2)
	second.events <- domain.TranscriptEvent{Text: "two"}
	if got := recv(t, fragments); got != "one two" {
		t.Fatalf("restart lost the transcript: %q", got)
	}
	cycle.Close(false)
}

func TestCycleNeverRestartsAfterClose(t *testing.T) {
	t.Parallel()

	transcriber := newFakeTranscriber()
	coord := NewCoordinator(transcriber, newFakeSource(), &fakeSink{}, 0)
	defer coord.Release()

	cycle := coord.Open(context.Background(), "en-US", "", nil)
	stream := transcriber.waitForStream(t, 1)

	cycle.Close(false)
	stream.end(nil)

	time.Sleep(20 * time.Millisecond)
	if got := transcriber.startCalls(); got != 1 {
		t.Fatalf("expected no restart after close, got %d starts", got)
	}
}

func TestLateFragmentsAreDiscarded(t *testing.T) {
	t.Parallel()

	transcriber := newFakeTranscriber()
	coord := NewCoordinator(transcriber, newFakeSource(), &fakeSink{}, 0)
	defer coord.Release()

	cycle := coord.Open(context.Background(), "en-US", "", nil)
	stream := transcriber.waitForStream(t, 1)

	transcript, _ := cycle.Close(false)
	if transcript != "" {
		t.Fatalf("unexpected transcript: %q", transcript)
	}

	// Racing fragment delivered after the cycle closed.
	stream.events <- domain.TranscriptEvent{Text: "too late"}
	time.Sleep(20 * time.Millisecond)

	if got := cycle.Transcript(); got != "" {
		t.Fatalf("late fragment merged into closed cycle: %q", got)
	}
}

func TestCloseFlushAwaitsArtifactOnce(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.device.segments = []*fakeSegment{{data: []byte("webm-bytes"), settle: 10 * time.Millisecond}}
	coord := NewCoordinator(newFakeTranscriber(), source, &fakeSink{}, time.Second)
	defer coord.Release()

	cycle := coord.Open(context.Background(), "en-US", "", nil)
	_, artifact := cycle.Close(true)

	if artifact == nil || string(artifact.Data) != "webm-bytes" {
		t.Fatalf("expected assembled artifact, got %+v", artifact)
	}
	segment := source.device.segments[0]
	if segment.stopCalls != 1 || segment.artifactCalls != 1 {
		t.Fatalf("expected one stop and one artifact wait, got %d/%d", segment.stopCalls, segment.artifactCalls)
	}

	// Second close must not retrieve the artifact again.
	if _, again := cycle.Close(true); again != nil {
		t.Fatalf("expected nil artifact on repeated close")
	}
	if segment.artifactCalls != 1 {
		t.Fatalf("artifact retrieved more than once")
	}
}

func TestCloseWithoutFlushDiscardsArtifact(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.device.segments = []*fakeSegment{{data: []byte("discard-me")}}
	coord := NewCoordinator(newFakeTranscriber(), source, &fakeSink{}, time.Second)
	defer coord.Release()

	cycle := coord.Open(context.Background(), "en-US", "", nil)
	_, artifact := cycle.Close(false)

	if artifact != nil {
		t.Fatalf("expected no artifact without flush")
	}
	if source.device.segments[0].stopCalls != 1 {
		t.Fatalf("segment was not stopped")
	}
}

func TestDeviceUnavailableDegradesOnce(t *testing.T) {
	t.Parallel()

	transcriber := newFakeTranscriber()
	source := newFakeSource()
	source.err = errors.New("permission denied")
	sink := &fakeSink{}
	coord := NewCoordinator(transcriber, source, sink, 0)
	defer coord.Release()

	first := coord.Open(context.Background(), "en-US", "", nil)
	first.Close(true)
	second := coord.Open(context.Background(), "en-US", "", nil)
	second.Close(true)

	if !coord.Degraded() {
		t.Fatalf("expected degraded coordinator")
	}
	if got := sink.errorCount(domain.ErrorCodeDeviceUnavailable); got != 1 {
		t.Fatalf("expected one device_unavailable report, got %d", got)
	}
	if source.acquireCalls != 1 {
		t.Fatalf("expected one acquisition attempt, got %d", source.acquireCalls)
	}
	if transcriber.startCalls() != 0 {
		t.Fatalf("degraded cycles must not start recognition")
	}
}

func TestOpenSecondCyclePanics(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator(newFakeTranscriber(), newFakeSource(), &fakeSink{}, 0)
	defer coord.Release()

	cycle := coord.Open(context.Background(), "en-US", "", nil)
	defer cycle.Close(false)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double open")
		}
	}()
	coord.Open(context.Background(), "en-US", "", nil)
}

func TestReleaseClosesDevice(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	coord := NewCoordinator(newFakeTranscriber(), source, &fakeSink{}, 0)

	cycle := coord.Open(context.Background(), "en-US", "", nil)
	cycle.Close(false)
	coord.Release()

	if !source.device.released {
		t.Fatalf("expected device release")
	}
}

func recv(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for fragment")
		return ""
	}
}

// fakeStream deliberately keeps its events channel open on Close so tests
// can stage fragments that race with cycle shutdown.
type fakeStream struct {
	events  chan domain.TranscriptEvent
	err     error
	endOnce sync.Once

	mu         sync.Mutex
	closeCalls int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan domain.TranscriptEvent, 16)}
}

func (f *fakeStream) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStream) Err() error { return f.err }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeStream) end(err error) {
	f.endOnce.Do(func() {
		f.err = err
		close(f.events)
	})
}

type fakeTranscriber struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func newFakeTranscriber() *fakeTranscriber { return &fakeTranscriber{} }

func (f *fakeTranscriber) Start(_ context.Context, _ string) (ports.RecognitionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	stream := newFakeStream()
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeTranscriber) startCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *fakeTranscriber) waitForStream(t *testing.T, n int) *fakeStream {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		if len(f.streams) >= n {
			stream := f.streams[n-1]
			f.mu.Unlock()
			return stream
		}
		f.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("stream %d never started", n)
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeSegment struct {
	data   []byte
	settle time.Duration

	mu            sync.Mutex
	stopCalls     int
	artifactCalls int
	stopErr       error
	artifactErr   error
}

func (f *fakeSegment) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeSegment) Artifact(ctx context.Context) (domain.MediaArtifact, error) {
	f.mu.Lock()
	f.artifactCalls++
	err := f.artifactErr
	f.mu.Unlock()
	if err != nil {
		return domain.MediaArtifact{}, err
	}
	if f.settle > 0 {
		select {
		case <-time.After(f.settle):
		case <-ctx.Done():
			return domain.MediaArtifact{}, ctx.Err()
		}
	}
	return domain.MediaArtifact{Data: f.data, MIMEType: "video/webm"}, nil
}

type fakeDevice struct {
	mu       sync.Mutex
	segments []*fakeSegment
	records  int
	released bool
}

func (f *fakeDevice) Record() (ports.RecordingSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records >= len(f.segments) {
		f.segments = append(f.segments, &fakeSegment{})
	}
	segment := f.segments[f.records]
	f.records++
	return segment, nil
}

func (f *fakeDevice) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

type fakeSource struct {
	device       *fakeDevice
	err          error
	acquireCalls int
}

func newFakeSource() *fakeSource { return &fakeSource{device: &fakeDevice{}} }

func (f *fakeSource) Acquire(_ context.Context) (ports.MediaDevice, error) {
	f.acquireCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.device, nil
}

type fakeSink struct {
	mu     sync.Mutex
	errors []domain.ErrorCode
}

func (f *fakeSink) StateChanged(_ domain.SessionState, _ domain.Phase, _ domain.StateReason) {}
func (f *fakeSink) QuestionPresented(_ int, _ string)                                        {}
func (f *fakeSink) TimerTick(_ int)                                                          {}
func (f *fakeSink) TranscriptUpdated(_ int, _ string)                                        {}
func (f *fakeSink) MoodChanged(_ domain.MoodSignal)                                          {}

func (f *fakeSink) SessionError(code domain.ErrorCode, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, code)
}

func (f *fakeSink) errorCount(code domain.ErrorCode) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.errors {
		if c == code {
			count++
		}
	}
	return count
}
