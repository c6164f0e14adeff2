package acquire

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tapeview/internal/archive"
	"github.com/hyperjump/tapeview/internal/fetch"
	"github.com/hyperjump/tapeview/internal/models"
	"github.com/hyperjump/tapeview/internal/session"
	"go.uber.org/zap"
)

type stubFetcher struct {
	download *fetch.Download
	err      error
	release  chan struct{}
	started  chan struct{}
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Download, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	return s.download, s.err
}

func zipOf(t *testing.T, files map[string][]byte, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(files[name])
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newController(t *testing.T, opts ...Option) (*Controller, *session.Session, *int) {
	t.Helper()
	sess := session.New(models.ModeSP)
	changes := 0
	opts = append([]Option{WithLogger(zap.NewNop()), OnChange(func() { changes++ })}, opts...)
	return New(sess, archive.ExtensionPattern(".mzf"), opts...), sess, &changes
}

func TestAcquire_localFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GAME.MZF")
	if err := os.WriteFile(path, []byte{0x01, 0x02}, 0644); err != nil {
		t.Fatal(err)
	}
	c, sess, changes := newController(t)

	out := c.Acquire(context.Background(), LocalFile{Path: path})
	if out.Status != StatusLoaded {
		t.Fatalf("status = %v, err = %v", out.Status, out.Err)
	}
	p := sess.Payload()
	if p == nil || p.Name() != "GAME" || p.Len() != 2 || p.Source() != path {
		t.Errorf("unexpected payload %+v", p)
	}
	if *changes != 1 {
		t.Errorf("onChange called %d times, want 1", *changes)
	}
}

func TestAcquire_localReadFailureReturnsToIdle(t *testing.T) {
	c, sess, _ := newController(t)
	c.Acquire(context.Background(), Upload{Name: "a.mzf", Data: []byte{1}})

	out := c.Acquire(context.Background(), LocalFile{Path: filepath.Join(t.TempDir(), "missing.mzf")})
	if out.Status != StatusIdle || out.Message != "" {
		t.Errorf("expected silent idle, got %+v", out)
	}
	var re *ReadError
	if !errors.As(out.Err, &re) {
		t.Errorf("expected ReadError, got %v", out.Err)
	}
	if sess.Payload() != nil {
		t.Error("payload should be cleared")
	}
}

func TestAcquire_archiveFirstMatch(t *testing.T) {
	data := zipOf(t, map[string][]byte{
		"readme.txt":  []byte("hi"),
		"tapes/A.mzf": {0x05},
		"B.mzf":       {0x01},
	}, "readme.txt", "tapes/A.mzf", "B.mzf")
	c, sess, _ := newController(t)

	out := c.Acquire(context.Background(), Upload{Name: "pack.ZIP", Data: data})
	if out.Status != StatusLoaded {
		t.Fatalf("status = %v, message = %q", out.Status, out.Message)
	}
	if p := sess.Payload(); p.Name() != "A" || !bytes.Equal(p.Bytes(), []byte{0x05}) {
		t.Errorf("unexpected payload %q %v", p.Name(), p.Bytes())
	}
}

func TestAcquire_archiveWithoutMatch(t *testing.T) {
	data := zipOf(t, map[string][]byte{"readme.txt": []byte("hi")}, "readme.txt")
	c, sess, changes := newController(t)

	out := c.Acquire(context.Background(), Upload{Name: "pack.zip", Data: data})
	if out.Status != StatusFailed {
		t.Fatalf("status = %v", out.Status)
	}
	if out.Message != "Error: No .mzf file found in ZIP archive." {
		t.Errorf("message = %q", out.Message)
	}
	if st := sess.State(); st.Payload != nil || st.Message != out.Message {
		t.Errorf("session should hold the failure, got %+v", st)
	}
	if *changes != 1 {
		t.Errorf("onChange called %d times, want 1", *changes)
	}
}

func TestAcquire_corruptArchive(t *testing.T) {
	c, _, _ := newController(t)
	out := c.Acquire(context.Background(), Upload{Name: "pack.zip", Data: []byte("garbage")})
	if out.Status != StatusFailed || len(out.Message) <= len(ExtractErrorPrefix) || out.Message[:len(ExtractErrorPrefix)] != ExtractErrorPrefix {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestAcquire_compressedUpload(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte{0x02, 0x03})
	gw.Close()
	c, sess, _ := newController(t)

	out := c.Acquire(context.Background(), Upload{Name: "prog.mzf.gz", Data: buf.Bytes()})
	if out.Status != StatusLoaded {
		t.Fatalf("status = %v, message = %q", out.Status, out.Message)
	}
	if p := sess.Payload(); p.Name() != "prog" || p.Len() != 2 {
		t.Errorf("unexpected payload %q", p.Name())
	}
}

func TestAcquire_remoteFailure(t *testing.T) {
	c, sess, _ := newController(t, WithFetcher(&stubFetcher{err: &fetch.HTTPStatusError{StatusCode: 404}}))
	out := c.Acquire(context.Background(), Remote{URL: "https://example.com/a.mzf"})
	if out.Message != "Error: Could not fetch file from URL. HTTP error 404" {
		t.Errorf("message = %q", out.Message)
	}
	if sess.Payload() != nil {
		t.Error("payload should be absent")
	}
}

func TestAcquire_remoteArchive(t *testing.T) {
	data := zipOf(t, map[string][]byte{"GAME.mzf": {0x01}}, "GAME.mzf")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	c, sess, _ := newController(t, WithFetcher(fetch.New(fetch.WithRelay(""))))
	out := c.Acquire(context.Background(), Remote{URL: srv.URL + "/files/pack.zip"})
	if out.Status != StatusLoaded {
		t.Fatalf("status = %v, message = %q", out.Status, out.Message)
	}
	if p := sess.Payload(); p.Name() != "GAME" || p.Source() != srv.URL+"/files/pack.zip" {
		t.Errorf("unexpected payload %q from %q", p.Name(), p.Source())
	}
}

func TestAcquire_remoteCompressedNamedOnlyInQuery(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte{0x01, 0x02})
	gw.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c, sess, _ := newController(t, WithFetcher(fetch.New(fetch.WithRelay(""))))
	rawURL := srv.URL + "/?f=dump.mzf.gz"
	out := c.Acquire(context.Background(), Remote{URL: rawURL})
	if out.Status != StatusLoaded {
		t.Fatalf("status = %v, message = %q", out.Status, out.Message)
	}
	p := sess.Payload()
	if !bytes.Equal(p.Bytes(), []byte{0x01, 0x02}) {
		t.Errorf("payload should be decompressed, got %v", p.Bytes())
	}
	if p.Name() != "File" || p.Source() != rawURL {
		t.Errorf("unexpected payload %q from %q", p.Name(), p.Source())
	}
}

func TestSuffixChain(t *testing.T) {
	tests := map[string]string{
		"https://host/?f=dump.mzf.gz":     ".mzf.gz",
		"https://host/get?a=1&b=pack.zip": ".zip",
		"https://host/":                   "",
	}
	for in, want := range tests {
		if got := suffixChain(in); got != want {
			t.Errorf("suffixChain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAcquire_remotePlainUsesURLName(t *testing.T) {
	f := &stubFetcher{download: &fetch.Download{Data: []byte{1}, Name: "Galaxy.bin", DisplayName: "Galaxy"}}
	c, sess, _ := newController(t, WithFetcher(f))
	if out := c.Acquire(context.Background(), Remote{URL: "https://x/Galaxy.bin"}); out.Status != StatusLoaded {
		t.Fatalf("status = %v", out.Status)
	}
	if sess.Payload().Name() != "Galaxy" {
		t.Errorf("name = %q", sess.Payload().Name())
	}
}

func TestAcquire_noneClears(t *testing.T) {
	c, sess, _ := newController(t)
	c.Acquire(context.Background(), Upload{Name: "a.mzf", Data: []byte{1}})
	out := c.Acquire(context.Background(), None{})
	if out.Status != StatusIdle || sess.Payload() != nil {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestAcquire_remoteFixedRejectsLocal(t *testing.T) {
	f := &stubFetcher{download: &fetch.Download{Data: []byte{1}, DisplayName: "R"}}
	c, sess, changes := newController(t, WithFetcher(f), WithRemoteFixed(true))
	c.Acquire(context.Background(), Remote{URL: "https://x/R.mzf"})

	out := c.Acquire(context.Background(), Upload{Name: "b.mzf", Data: []byte{2}})
	if out.Status != StatusRejected || !errors.Is(out.Err, ErrLocalDisabled) {
		t.Errorf("unexpected outcome %+v", out)
	}
	if sess.Payload().Name() != "R" {
		t.Error("rejected source must not touch the payload")
	}
	if *changes != 1 {
		t.Errorf("onChange called %d times, want 1", *changes)
	}
	if !c.LocalDisabled() {
		t.Error("LocalDisabled should report true")
	}
}

func TestAcquire_supersededResultIsDiscarded(t *testing.T) {
	slow := &stubFetcher{
		download: &fetch.Download{Data: []byte{0xAA}, DisplayName: "slow"},
		release:  make(chan struct{}),
		started:  make(chan struct{}),
	}
	sess := session.New(models.ModeSP)
	c := New(sess, archive.ExtensionPattern(".mzf"), WithFetcher(slow))

	done := make(chan Outcome)
	go func() {
		done <- c.Acquire(context.Background(), Remote{URL: "https://x/slow.mzf"})
	}()
	<-slow.started

	if out := c.Acquire(context.Background(), Upload{Name: "fast.mzf", Data: []byte{0xBB}}); out.Status != StatusLoaded {
		t.Fatalf("fast acquisition status = %v", out.Status)
	}
	close(slow.release)

	if out := <-done; out.Status != StatusDiscarded {
		t.Errorf("slow acquisition status = %v, want discarded", out.Status)
	}
	if p := sess.Payload(); p == nil || p.Name() != "fast" {
		t.Errorf("payload should be the newer one, got %+v", p)
	}
}

type countingExtractor struct {
	calls int
}

func (e *countingExtractor) Extract(ctx context.Context, data []byte, container archive.Container, pattern archive.Pattern) (*archive.Member, error) {
	e.calls++
	return &archive.Member{Name: "GAME.mzf", DisplayName: "GAME", Data: data}, nil
}

func TestAcquire_supersededDownloadIsNotExtracted(t *testing.T) {
	slow := &stubFetcher{
		download: &fetch.Download{Data: []byte{0xAA}, Archive: true, Container: archive.ContainerZip, Name: "pack.zip", DisplayName: "pack"},
		release:  make(chan struct{}),
		started:  make(chan struct{}),
	}
	ex := &countingExtractor{}
	sess := session.New(models.ModeSP)
	c := New(sess, archive.ExtensionPattern(".mzf"), WithFetcher(slow), WithExtractor(ex))

	done := make(chan Outcome)
	go func() {
		done <- c.Acquire(context.Background(), Remote{URL: "https://x/pack.zip"})
	}()
	<-slow.started
	c.Acquire(context.Background(), None{})
	close(slow.release)

	if out := <-done; out.Status != StatusDiscarded {
		t.Errorf("status = %v, want discarded", out.Status)
	}
	if ex.calls != 0 {
		t.Errorf("extractor ran %d times for a superseded download", ex.calls)
	}
	if sess.Payload() != nil {
		t.Error("payload should stay empty")
	}
}
