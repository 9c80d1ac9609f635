package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"prepcam/internal/bootstrap"
	"prepcam/internal/config"
	"prepcam/internal/domain"
	"prepcam/internal/export"
	"prepcam/internal/ports"
	"prepcam/internal/providers/webspeech"
	"prepcam/internal/session"
	"prepcam/internal/template"
)

const (
	eventState           = "prepcam:state"
	eventQuestion        = "prepcam:question"
	eventTick            = "prepcam:tick"
	eventTranscript      = "prepcam:transcript"
	eventMood            = "prepcam:mood"
	eventError           = "prepcam:error"
	eventCustomQuestions = "prepcam:template:custom"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *session.Controller
	registry   *template.Registry
	bridge     *webspeech.Bridge
	prompter   *customPrompter
	clipboard  ports.Clipboard
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	app := &App{}
	app.bridge = webspeech.NewBridge(runtimeEmitter{app: app})
	app.prompter = &customPrompter{app: app}
	app.clipboard = &wailsClipboard{}
	return app
}

// runtimeEmitter forwards provider requests onto the Wails event bus.
type runtimeEmitter struct {
	app *App
}

func (e runtimeEmitter) Emit(event string, payload any) {
	e.app.emit(event, payload)
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.bridge, &wailsConfirmer{app: a}, a.prompter)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.registry = services.Registry
	a.StateChanged(domain.SessionStateIdle, domain.PhaseNone, "")
}

// TemplateInfo is the template summary shown on the selection screen.
type TemplateInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
}

// GetTemplates lists the selectable templates.
func (a *App) GetTemplates() ([]TemplateInfo, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	templates := a.registry.List()
	out := make([]TemplateInfo, 0, len(templates))
	for _, t := range templates {
		out = append(out, TemplateInfo{ID: t.ID, Name: t.Name, Languages: t.Languages()})
	}
	return out, nil
}

// SelectLanguage picks the interview language.
func (a *App) SelectLanguage(code string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.SelectLanguage(code); err != nil {
		a.SessionError(domain.ErrorCodeValidation, err.Error())
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// SelectTemplate picks a question template. Selecting the custom template
// prompts the frontend for question texts.
func (a *App) SelectTemplate(id string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.SelectTemplate(a.ctx, id); err != nil {
		a.SessionError(domain.ErrorCodeValidation, err.Error())
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StartInterview begins the session and presents the first question.
func (a *App) StartInterview() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.StartInterview(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// PauseAnswer freezes the current answer window.
func (a *App) PauseAnswer() (domain.Status, error) {
	return a.step(func() error { return a.controller.Pause() })
}

// ResumeAnswer continues a paused answer.
func (a *App) ResumeAnswer() (domain.Status, error) {
	return a.step(func() error { return a.controller.Resume() })
}

// RestartAnswer discards the current answer after confirmation.
func (a *App) RestartAnswer() (domain.Status, error) {
	return a.step(func() error { return a.controller.Restart(a.ctx) })
}

// SubmitAnswer finalizes the current answer.
func (a *App) SubmitAnswer() (domain.Status, error) {
	return a.step(func() error { return a.controller.SubmitAnswer() })
}

// NextQuestion advances to the next question or completes the interview.
func (a *App) NextQuestion() (domain.Status, error) {
	return a.step(func() error { return a.controller.Advance() })
}

// ResetInterview abandons the session and returns to language selection.
func (a *App) ResetInterview() (domain.Status, error) {
	return a.step(func() error { a.controller.Reset(); return nil })
}

func (a *App) step(op func() error) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := op(); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.controller.Status()
}

// GetMood returns the latest mood signal for the avatar.
func (a *App) GetMood() domain.MoodSignal {
	if a.controller == nil {
		return domain.MoodSignal{Mood: domain.MoodNeutral}
	}
	return a.controller.Mood()
}

// SaveArchive exports the interview and writes it to a user-chosen path.
func (a *App) SaveArchive() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	archive, err := a.controller.Export()
	if err != nil {
		a.SessionError(domain.ErrorCodeExport, err.Error())
		return "", err
	}

	path, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		DefaultFilename: archive.Filename,
		Title:           "Save interview archive",
	})
	if err != nil {
		a.SessionError(domain.ErrorCodeExport, err.Error())
		return "", fmt.Errorf("%w: %v", domain.ErrExportFailed, err)
	}
	if path == "" {
		return "", nil // dialog dismissed
	}
	if err := writeArchive(path, archive); err != nil {
		a.SessionError(domain.ErrorCodeExport, err.Error())
		return "", err
	}
	return path, nil
}

func writeArchive(path string, archive export.Archive) error {
	if err := os.WriteFile(path, archive.Data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExportFailed, err)
	}
	return nil
}

// CopyShareableLink renders the session link and puts it on the clipboard.
// The link is returned even when the clipboard write fails.
func (a *App) CopyShareableLink() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	link, err := a.controller.ShareableLink(a.cfg.Session.ShareOrigin, a.cfg.Session.SharePath)
	if err != nil {
		return "", err
	}
	if err := a.clipboard.SetText(a.ctx, link); err != nil {
		a.SessionError(domain.ErrorCodeValidation, "clipboard write failed: "+err.Error())
	}
	return link, nil
}

// CheckExistingInterview extracts the interview id from a shared page URL.
// The id is informational only.
func (a *App) CheckExistingInterview(pageURL string) string {
	id, ok := session.ParseInterviewID(pageURL)
	if !ok {
		return ""
	}
	return id
}

// ---- frontend deliveries ----

// PlaybackFinished reports that an utterance finished playing. An empty
// message means success.
func (a *App) PlaybackFinished(id string, errMessage string) {
	a.bridge.PlaybackFinished(id, errMessage)
}

// RecognitionResult delivers a recognized utterance.
func (a *App) RecognitionResult(id string, text string) {
	a.bridge.RecognitionResult(id, text)
}

// RecognitionEnded reports a spontaneous recognizer stop.
func (a *App) RecognitionEnded(id string) {
	a.bridge.RecognitionEnded(id)
}

// RecognitionError reports a recognizer failure.
func (a *App) RecognitionError(id string, message string) {
	a.bridge.RecognitionError(id, message)
}

// MediaGranted reports that the permission prompt was accepted.
func (a *App) MediaGranted(id string) {
	a.bridge.MediaGranted(id)
}

// MediaDenied reports that camera/microphone access was refused.
func (a *App) MediaDenied(id string, reason string) {
	a.bridge.MediaDenied(id, reason)
}

// RecordingChunk delivers recorder data for a segment.
func (a *App) RecordingChunk(id string, chunk []byte) {
	a.bridge.RecordingChunk(id, chunk)
}

// RecordingStopped reports that the recorder flushed its final chunk.
func (a *App) RecordingStopped(id string, mimeType string) {
	a.bridge.RecordingStopped(id, mimeType)
}

// SubmitCustomQuestions delivers the question texts gathered for the custom
// template.
func (a *App) SubmitCustomQuestions(questions []string) {
	a.prompter.deliver(questions, false)
}

// CancelCustomQuestions abandons the pending custom template prompt.
func (a *App) CancelCustomQuestions() {
	a.prompter.deliver(nil, true)
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// ---- event sink ----

// StateChanged emits session lifecycle updates to the frontend.
func (a *App) StateChanged(state domain.SessionState, phase domain.Phase, reason domain.StateReason) {
	a.emit(eventState, map[string]string{
		"state":   string(state),
		"phase":   string(phase),
		"reason":  string(reason),
		"message": reasonMessage(reason),
	})
}

// QuestionPresented emits the question being read aloud.
func (a *App) QuestionPresented(index int, text string) {
	a.emit(eventQuestion, map[string]any{"index": index, "text": text})
}

// TimerTick emits the remaining answer seconds.
func (a *App) TimerTick(remaining int) {
	a.emit(eventTick, map[string]int{"remaining": remaining})
}

// TranscriptUpdated emits the live accumulated transcript.
func (a *App) TranscriptUpdated(index int, transcript string) {
	a.emit(eventTranscript, map[string]any{"index": index, "transcript": transcript})
}

// MoodChanged emits the avatar mood signal.
func (a *App) MoodChanged(signal domain.MoodSignal) {
	a.emit(eventMood, signal)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) emit(event string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, event, payload)
}

func reasonMessage(reason domain.StateReason) string {
	switch reason {
	case domain.ReasonLanguageSelected:
		return "Language selected"
	case domain.ReasonTemplateSelected:
		return "Template selected"
	case domain.ReasonInterviewStarted:
		return "Interview started"
	case domain.ReasonQuestionPresented:
		return "Reading question..."
	case domain.ReasonListeningStarted:
		return "Listening for your answer"
	case domain.ReasonAnswerPaused:
		return "Answer paused"
	case domain.ReasonAnswerResumed:
		return "Answer resumed"
	case domain.ReasonAnswerRestarted:
		return "Answer restarted"
	case domain.ReasonAnswerSubmitted:
		return "Answer submitted"
	case domain.ReasonTimeExpired:
		return "Time is up; answer submitted"
	case domain.ReasonInterviewComplete:
		return "Interview complete"
	case domain.ReasonArchiveExported:
		return "Interview exported"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeValidation:
		return "Invalid input"
	case domain.ErrorCodeDeviceUnavailable:
		return "Camera or microphone unavailable"
	case domain.ErrorCodeRecognition:
		return "Speech recognition issue"
	case domain.ErrorCodePlayback:
		return "Question playback issue"
	case domain.ErrorCodeRecording:
		return "Recording issue"
	case domain.ErrorCodeExport:
		return "Export failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

// ---- collaborators backed by the Wails runtime ----

type wailsConfirmer struct {
	app *App
}

func (c *wailsConfirmer) Confirm(ctx context.Context, title string, message string) (bool, error) {
	result, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         title,
		Message:       message,
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "No",
	})
	if err != nil {
		return false, err
	}
	return result == "Yes", nil
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}

// customPrompter gathers custom template questions from the frontend. Only
// one prompt can be pending at a time; template selection is serialized by
// the controller.
type customPrompter struct {
	app *App

	mu      sync.Mutex
	pending chan promptResult
}

type promptResult struct {
	questions []string
	cancelled bool
}

func (p *customPrompter) CustomQuestions(ctx context.Context, language string) ([]string, error) {
	result := make(chan promptResult, 1)

	p.mu.Lock()
	p.pending = result
	p.mu.Unlock()

	p.app.emit(eventCustomQuestions, map[string]string{"language": language})

	select {
	case r := <-result:
		if r.cancelled {
			return nil, fmt.Errorf("%w: custom template entry cancelled", domain.ErrValidation)
		}
		return r.questions, nil
	case <-ctx.Done():
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (p *customPrompter) deliver(questions []string, cancelled bool) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	if pending == nil {
		return
	}
	pending <- promptResult{questions: questions, cancelled: cancelled}
}
