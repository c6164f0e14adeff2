package session

import (
	"testing"

	"github.com/hyperjump/tapeview/internal/models"
)

func TestSession_supersededCommitIsDiscarded(t *testing.T) {
	s := New(models.ModeSP)
	first := s.Begin()
	second := s.Begin()

	newer := models.NewPayload([]byte{2}, "second", "b.mzf")
	if !s.Commit(second, newer) {
		t.Fatal("current token should commit")
	}
	older := models.NewPayload([]byte{1}, "first", "a.mzf")
	if s.Commit(first, older) {
		t.Error("superseded token must not commit")
	}
	if got := s.Payload(); got != newer {
		t.Errorf("payload = %v, want the newer one", got)
	}
	if s.Clear(first) {
		t.Error("superseded token must not clear")
	}
	if s.Payload() == nil {
		t.Error("payload should survive a stale clear")
	}
}

func TestSession_modeAndCharsetIndependentOfPayload(t *testing.T) {
	s := New(models.ModeZ80)
	tok := s.Begin()
	p := models.NewPayload([]byte{1, 2, 3}, "x", "x.mzf")
	s.Commit(tok, p)

	s.SetCharset(true)
	s.SetMode(models.ModeDump)
	st := s.State()
	if st.Payload != p {
		t.Error("payload changed")
	}
	if st.Mode != models.ModeDump || !st.Charset {
		t.Errorf("unexpected state %+v", st)
	}
	if s.ID() == "" {
		t.Error("session id should be set")
	}
}

func TestSession_failRecordsMessageUntilNextCommit(t *testing.T) {
	s := New(models.ModeSP)
	tok := s.Begin()
	s.Commit(tok, models.NewPayload([]byte{1}, "a", ""))

	tok = s.Begin()
	if !s.Fail(tok, "Error: boom") {
		t.Fatal("current token should fail")
	}
	st := s.State()
	if st.Payload != nil || st.Message != "Error: boom" {
		t.Errorf("unexpected state %+v", st)
	}
	if s.Fail(tok-1, "stale") {
		t.Error("superseded token must not fail")
	}

	tok = s.Begin()
	s.Commit(tok, models.NewPayload([]byte{2}, "b", ""))
	if s.State().Message != "" {
		t.Error("commit should clear the failure message")
	}
}

func TestSession_modeAndCharsetChangesDropFailureMessage(t *testing.T) {
	s := New(models.ModeSP)
	s.Fail(s.Begin(), "Error: boom")
	s.SetMode(models.ModeZ80)
	if st := s.State(); st.Message != "" || st.Payload != nil || st.Mode != models.ModeZ80 {
		t.Errorf("unexpected state after SetMode: %+v", st)
	}

	s.Fail(s.Begin(), "Error: boom")
	s.SetCharset(true)
	if st := s.State(); st.Message != "" || !st.Charset {
		t.Errorf("unexpected state after SetCharset: %+v", st)
	}
}
