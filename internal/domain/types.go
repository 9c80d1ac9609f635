package domain

import "errors"

// SessionState models the interview lifecycle from language selection to export.
type SessionState string

const (
	SessionStateIdle             SessionState = "idle"
	SessionStateLanguageSelected SessionState = "language_selected"
	SessionStateTemplateSelected SessionState = "template_selected"
	SessionStateActive           SessionState = "active"
	SessionStateCompleted        SessionState = "completed"
	SessionStateExported         SessionState = "exported"
)

// Phase is the per-question sub-state while the session is active.
type Phase string

const (
	PhaseNone         Phase = ""
	PhasePresenting   Phase = "presenting"
	PhaseListening    Phase = "listening"
	PhasePaused       Phase = "paused"
	PhaseAwaitingNext Phase = "awaiting_next"
)

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonLanguageSelected  StateReason = "language_selected"
	ReasonTemplateSelected  StateReason = "template_selected"
	ReasonInterviewStarted  StateReason = "interview_started"
	ReasonQuestionPresented StateReason = "question_presented"
	ReasonListeningStarted  StateReason = "listening_started"
	ReasonAnswerPaused      StateReason = "answer_paused"
	ReasonAnswerResumed     StateReason = "answer_resumed"
	ReasonAnswerRestarted   StateReason = "answer_restarted"
	ReasonAnswerSubmitted   StateReason = "answer_submitted"
	ReasonTimeExpired       StateReason = "time_expired"
	ReasonInterviewComplete StateReason = "interview_complete"
	ReasonArchiveExported   StateReason = "archive_exported"
)

// ErrorCode identifies backend error events surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup           ErrorCode = "startup"
	ErrorCodeValidation        ErrorCode = "validation"
	ErrorCodeDeviceUnavailable ErrorCode = "device_unavailable"
	ErrorCodeRecognition       ErrorCode = "recognition"
	ErrorCodePlayback          ErrorCode = "playback"
	ErrorCodeRecording         ErrorCode = "recording"
	ErrorCodeExport            ErrorCode = "export"
)

// Sentinel errors; wrap with fmt.Errorf("%w: ...") to add context.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrExportFailed      = errors.New("archive export failed")
	ErrNoActiveSession   = errors.New("no active interview session")
)

// TranscriptEvent carries the latest utterance heard by a recognition stream.
// Each event is the newest segment, not a delta; accumulation is the
// coordinator's job.
type TranscriptEvent struct {
	Text string `json:"text"`
}

// MediaArtifact is an assembled recording segment.
type MediaArtifact struct {
	Data     []byte
	MIMEType string
}

// Mood labels derived from transcript content.
type Mood string

const (
	MoodNeutral Mood = "neutral"
	MoodHappy   Mood = "happy"
	MoodSad     Mood = "sad"
)

// MoodSignal is the presentation side-channel consumed by the avatar
// renderer. It is never part of an answer and never exported.
type MoodSignal struct {
	Mood  Mood   `json:"mood"`
	Color string `json:"color,omitempty"`
}

// Status summarizes the current session for the UI.
type Status struct {
	State         SessionState `json:"state"`
	Phase         Phase        `json:"phase,omitempty"`
	Language      string       `json:"language,omitempty"`
	TemplateID    string       `json:"templateId,omitempty"`
	SessionID     string       `json:"sessionId,omitempty"`
	QuestionIndex int          `json:"questionIndex"`
	QuestionCount int          `json:"questionCount"`
	Remaining     int          `json:"remaining"`
}
