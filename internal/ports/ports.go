package ports

import (
	"context"
	"io"

	"prepcam/internal/domain"
)

// Synthesizer reads a question aloud. Speak blocks until playback has
// finished (or ctx is cancelled), so callers run it off the control path.
type Synthesizer interface {
	Speak(ctx context.Context, text string, languageTag string) error
}

// RecognitionStream is one continuous recognition subscription. The Events
// channel closes when the stream ends, spontaneously or via Close; Err
// reports the terminal error once Events is closed.
type RecognitionStream interface {
	Events() <-chan domain.TranscriptEvent
	Err() error
	Close() error
}

// Transcriber starts continuous recognition streams for a language.
type Transcriber interface {
	Start(ctx context.Context, languageTag string) (RecognitionStream, error)
}

// RecordingSegment is one recording span. Stop is asynchronous: the
// assembled artifact becomes available only after the segment settles, so
// Artifact blocks (bounded by ctx) until assembly completes.
type RecordingSegment interface {
	Stop() error
	Artifact(ctx context.Context) (domain.MediaArtifact, error)
}

// MediaDevice is the capture device handle, acquired once per session and
// shared across all questions. At most one segment records at a time.
type MediaDevice interface {
	Record() (RecordingSegment, error)
	Release() error
}

// MediaSource acquires the capture device.
type MediaSource interface {
	Acquire(ctx context.Context) (MediaDevice, error)
}

// AudioConfig describes how the microphone should be captured for the
// websocket recognizer.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live microphone capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	StateChanged(state domain.SessionState, phase domain.Phase, reason domain.StateReason)
	QuestionPresented(index int, text string)
	TimerTick(remaining int)
	TranscriptUpdated(index int, transcript string)
	MoodChanged(signal domain.MoodSignal)
	SessionError(code domain.ErrorCode, detail string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, title string, message string) (bool, error)
}

// TemplatePrompter gathers custom template question texts from the user.
type TemplatePrompter interface {
	CustomQuestions(ctx context.Context, language string) ([]string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}
