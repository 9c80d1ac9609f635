package domain

import "time"

// Answer is the captured response for one question index. It is mutated
// only by capture cycle checkpoints until the session completes, after
// which it is immutable.
type Answer struct {
	Transcript string
	Media      *MediaArtifact
}

// Session is one complete run through a template's questions. It is owned
// exclusively by the session controller.
type Session struct {
	ID           string
	TemplateID   string
	TemplateName string
	Language     string
	Questions    []string
	Answers      []Answer
	Index        int
	StartedAt    time.Time
}

// Clone returns a snapshot safe to hand to the export composer. Media
// artifacts are shared; they are never mutated after assembly.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Questions = append([]string(nil), s.Questions...)
	out.Answers = append([]Answer(nil), s.Answers...)
	return &out
}
