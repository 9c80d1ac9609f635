// Package export serializes a completed session into the downloadable
// archive.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"prepcam/internal/domain"
)

// NoAnswer is written in place of an empty transcript.
const NoAnswer = "No answer provided"

// Archive is an assembled zip ready for download.
type Archive struct {
	Filename string
	Data     []byte
}

// Composer builds interview archives. The zero value is not usable; call
// NewComposer.
type Composer struct {
	now func() time.Time
}

func NewComposer() *Composer {
	return &Composer{now: time.Now}
}

type interviewInfo struct {
	TemplateName      string   `json:"templateName"`
	InterviewID       string   `json:"interviewId"`
	Timestamp         string   `json:"timestamp"`
	TemplateQuestions []string `json:"templateQuestions"`
	Language          string   `json:"language"`
}

// Compose packages the session into {sessionId}_interview.zip. Failures are
// retryable; the session is never mutated here.
func (c *Composer) Compose(s *domain.Session) (Archive, error) {
	if s == nil || s.ID == "" {
		return Archive{}, fmt.Errorf("%w: no session to export", domain.ErrExportFailed)
	}
	if len(s.Answers) != len(s.Questions) {
		return Archive{}, fmt.Errorf("%w: session has %d answers for %d questions", domain.ErrExportFailed, len(s.Answers), len(s.Questions))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	info := interviewInfo{
		TemplateName:      s.TemplateName,
		InterviewID:       s.ID,
		Timestamp:         c.now().UTC().Format(time.RFC3339),
		TemplateQuestions: s.Questions,
		Language:          s.Language,
	}
	infoJSON, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return Archive{}, fmt.Errorf("%w: failed to encode interview info: %v", domain.ErrExportFailed, err)
	}
	if err := writeEntry(zw, s.ID+"/interview_info.json", infoJSON); err != nil {
		return Archive{}, err
	}

	for i, question := range s.Questions {
		answer := s.Answers[i]
		folder := fmt.Sprintf("%s/answers/Question_%d", s.ID, i+1)

		if err := writeEntry(zw, folder+"/question.txt", []byte(question)); err != nil {
			return Archive{}, err
		}
		text := answer.Transcript
		if strings.TrimSpace(text) == "" {
			text = NoAnswer
		}
		if err := writeEntry(zw, folder+"/answer_text.txt", []byte(text)); err != nil {
			return Archive{}, err
		}
		if answer.Media != nil && len(answer.Media.Data) > 0 {
			if err := writeEntry(zw, folder+"/answer_video.webm", answer.Media.Data); err != nil {
				return Archive{}, err
			}
		}
	}

	if err := writeEntry(zw, s.ID+"/answers/summary.txt", []byte(Summary(s))); err != nil {
		return Archive{}, err
	}

	if err := zw.Close(); err != nil {
		return Archive{}, fmt.Errorf("%w: failed to finalize archive: %v", domain.ErrExportFailed, err)
	}

	return Archive{
		Filename: s.ID + "_interview.zip",
		Data:     buf.Bytes(),
	}, nil
}

// Summary renders the flattened human-readable summary document.
func Summary(s *domain.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary of Your %s\n", s.TemplateName)
	fmt.Fprintf(&b, "Interview ID: %s\n", s.ID)
	for i, question := range s.Questions {
		answer := s.Answers[i].Transcript
		if strings.TrimSpace(answer) == "" {
			answer = NoAnswer
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", question, answer)
	}
	return b.String()
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("%w: failed to create %q: %v", domain.ErrExportFailed, name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: failed to write %q: %v", domain.ErrExportFailed, name, err)
	}
	return nil
}
