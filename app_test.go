package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"prepcam/internal/domain"
	"prepcam/internal/export"
)

func TestReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.StateReason]string{
		domain.ReasonLanguageSelected:  "Language selected",
		domain.ReasonTemplateSelected:  "Template selected",
		domain.ReasonInterviewStarted:  "Interview started",
		domain.ReasonQuestionPresented: "Reading question...",
		domain.ReasonListeningStarted:  "Listening for your answer",
		domain.ReasonAnswerPaused:      "Answer paused",
		domain.ReasonAnswerResumed:     "Answer resumed",
		domain.ReasonAnswerRestarted:   "Answer restarted",
		domain.ReasonAnswerSubmitted:   "Answer submitted",
		domain.ReasonTimeExpired:       "Time is up; answer submitted",
		domain.ReasonInterviewComplete: "Interview complete",
		domain.ReasonArchiveExported:   "Interview exported",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := reasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := reasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:           "Startup failed",
		domain.ErrorCodeValidation:        "Invalid input",
		domain.ErrorCodeDeviceUnavailable: "Camera or microphone unavailable",
		domain.ErrorCodeRecognition:       "Speech recognition issue",
		domain.ErrorCodePlayback:          "Question playback issue",
		domain.ErrorCodeRecording:         "Recording issue",
		domain.ErrorCodeExport:            "Export failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := NewApp()
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := NewApp()
	status := app.GetStatus()
	if status.State != domain.SessionStateIdle {
		t.Fatalf("unexpected status: %+v", status)
	}
	mood := app.GetMood()
	if mood.Mood != domain.MoodNeutral {
		t.Fatalf("unexpected mood: %+v", mood)
	}
}

func TestCheckExistingInterview(t *testing.T) {
	t.Parallel()

	app := NewApp()
	if got := app.CheckExistingInterview("https://prep.cam/?interview=user_abc"); got != "user_abc" {
		t.Fatalf("unexpected id: %q", got)
	}
	if got := app.CheckExistingInterview("https://prep.cam/"); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	if got := app.CheckExistingInterview("://bad"); got != "" {
		t.Fatalf("expected empty id for bad url, got %q", got)
	}
}

func TestWriteArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	archive := export.Archive{Filename: "out.zip", Data: []byte("zip-bytes")}
	if err := writeArchive(path, archive); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := writeArchive(filepath.Join(t.TempDir(), "missing", "out.zip"), archive); !errors.Is(err, domain.ErrExportFailed) {
		t.Fatalf("expected ErrExportFailed, got %v", err)
	}
}

func TestCustomPrompterDeliver(t *testing.T) {
	t.Parallel()

	app := NewApp()
	prompter := app.prompter

	result := make(chan []string, 1)
	errs := make(chan error, 1)
	go func() {
		questions, err := prompter.CustomQuestions(context.Background(), "en")
		result <- questions
		errs <- err
	}()

	// The prompt is pending once the goroutine has registered its channel.
	deadline := time.Now().Add(2 * time.Second)
	for {
		prompter.mu.Lock()
		pending := prompter.pending != nil
		prompter.mu.Unlock()
		if pending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("prompt never registered")
		}
		time.Sleep(time.Millisecond)
	}

	app.SubmitCustomQuestions([]string{"Why Go?"})
	if got := <-result; len(got) != 1 || got[0] != "Why Go?" {
		t.Fatalf("unexpected questions: %v", got)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Delivery without a pending prompt is ignored.
	app.SubmitCustomQuestions([]string{"late"})
}

func TestCustomPrompterCancelled(t *testing.T) {
	t.Parallel()

	app := NewApp()
	prompter := app.prompter

	errs := make(chan error, 1)
	go func() {
		_, err := prompter.CustomQuestions(context.Background(), "en")
		errs <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		prompter.mu.Lock()
		pending := prompter.pending != nil
		prompter.mu.Unlock()
		if pending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("prompt never registered")
		}
		time.Sleep(time.Millisecond)
	}

	app.CancelCustomQuestions()
	if err := <-errs; !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error on cancel, got %v", err)
	}
}

func TestCustomPrompterContextCancelled(t *testing.T) {
	t.Parallel()

	app := NewApp()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := app.prompter.CustomQuestions(ctx, "en")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
