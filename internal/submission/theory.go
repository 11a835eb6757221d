package submission

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/notify"
	"github.com/mind-engage/mindengage-learn/internal/platform/apierr"
	"github.com/mind-engage/mindengage-learn/internal/storage"
)

// MaxUploadBytes bounds what the gateway buffers for one theory upload.
// The backend applies its own, smaller limit.
const MaxUploadBytes = 20 << 20

var ErrFileTooLarge = errors.New("submission: file too large")

type chosenFile struct {
	name string
	data []byte
}

type TheoryFlow struct {
	e    *Engine
	task course.Task

	// guarded by e.mu
	file     *chosenFile
	result   *course.TheorySubmission
	loaded   bool
	inFlight bool
}

type TheoryView struct {
	FileName   string                   `json:"chosenFile,omitempty"`
	FileSize   int                      `json:"chosenFileSize,omitempty"`
	Submission *course.TheorySubmission `json:"submission,omitempty"`
	Loaded     bool                     `json:"loaded"`
	CanSubmit  bool                     `json:"canSubmit"`
}

func (f *TheoryFlow) viewLocked() TheoryView {
	v := TheoryView{Loaded: f.loaded, CanSubmit: f.canSubmitLocked()}
	if f.file != nil {
		v.FileName, v.FileSize = f.file.name, len(f.file.data)
	}
	if f.result != nil {
		r := *f.result
		v.Submission = &r
	}
	return v
}

// Load fetches an earlier submission; 404 leaves the upload form up.
func (f *TheoryFlow) Load(ctx context.Context) error {
	f.e.mu.Lock()
	gen := f.e.gen
	f.e.mu.Unlock()

	sub, err := f.e.api.TheorySubmission(ctx, f.task.ID)

	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	if !f.e.current(gen) {
		return staleErr(f.task.ID)
	}
	if err != nil {
		if apierr.IsNotFound(err) {
			f.loaded = true
			return nil
		}
		f.e.log.Debug("theory submission fetch failed", "task_id", f.task.ID, "error", err)
		return err
	}
	f.loaded = true
	f.result = &sub
	return nil
}

// ChooseFile buffers the learner's file until Submit. Choosing again
// replaces the earlier choice.
func (f *TheoryFlow) ChooseFile(name string, r io.Reader) error {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return ErrNoFile
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return ErrFileTooLarge
	}
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	if f.result != nil {
		return ErrAlreadySubmitted
	}
	f.file = &chosenFile{name: name, data: data}
	return nil
}

func (f *TheoryFlow) CanSubmit() bool {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	return f.canSubmitLocked()
}

func (f *TheoryFlow) canSubmitLocked() bool {
	return f.file != nil && f.result == nil && !f.inFlight
}

// Submit uploads the chosen file. There is no resubmission once the backend
// has accepted one.
func (f *TheoryFlow) Submit(ctx context.Context) (course.TheorySubmission, error) {
	f.e.mu.Lock()
	switch {
	case f.result != nil:
		f.e.mu.Unlock()
		return course.TheorySubmission{}, ErrAlreadySubmitted
	case f.inFlight:
		f.e.mu.Unlock()
		return course.TheorySubmission{}, ErrBusy
	case f.file == nil:
		f.e.mu.Unlock()
		return course.TheorySubmission{}, ErrNoFile
	}
	gen := f.e.gen
	file := f.file
	f.inFlight = true
	f.e.mu.Unlock()

	sub, err := f.e.api.SubmitTheory(ctx, f.task.ID, file.name, bytes.NewReader(file.data))

	f.e.mu.Lock()
	f.inFlight = false
	if err != nil {
		f.e.mu.Unlock()
		f.e.log.Warn("theory submit failed", "task_id", f.task.ID, "file", file.name, "error", err)
		f.e.notes.Notify(notify.Error, "Failed to submit assignment")
		return course.TheorySubmission{}, err
	}
	if !f.e.current(gen) {
		f.e.mu.Unlock()
		return course.TheorySubmission{}, staleErr(f.task.ID)
	}
	if sub.Status == "" {
		sub.Status = course.TheoryPending
	}
	f.result = &sub
	f.file = nil
	f.e.mu.Unlock()

	f.e.notes.Notify(notify.Success, "Assignment submitted successfully!")
	return sub, nil
}

// Download returns the learner's submitted file. The first download is
// pulled from the backend into the blob store; later ones are served from
// there.
func (f *TheoryFlow) Download(ctx context.Context) (io.ReadCloser, string, error) {
	f.e.mu.Lock()
	if f.result == nil {
		f.e.mu.Unlock()
		return nil, "", ErrNotSubmitted
	}
	sub := *f.result
	f.e.mu.Unlock()

	name := path.Base(sub.FileName)
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("submission-%d", sub.ID)
	}
	if f.e.blobs == nil {
		rc, err := f.e.api.DownloadTheory(ctx, sub.ID)
		return rc, name, err
	}

	key := BlobKey(f.e.subject, sub.ID, name)
	if f.e.blobs.Exists(key) {
		rc, err := f.e.blobs.Get(key)
		if err == nil {
			return rc, name, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			f.e.log.Warn("cached submission unreadable, refetching", "key", key, "error", err)
		}
	}

	rc, err := f.e.api.DownloadTheory(ctx, sub.ID)
	if err != nil {
		f.e.notes.Notify(notify.Error, "Failed to download submission")
		return nil, "", err
	}
	defer rc.Close()
	if _, err := f.e.blobs.Put(key, rc); err != nil {
		return nil, "", fmt.Errorf("cache submission: %w", err)
	}
	out, err := f.e.blobs.Get(key)
	return out, name, err
}

// BlobKey is where a learner's submission file is cached. The subject is
// hashed so email addresses never appear in paths.
func BlobKey(subject string, id course.SubmissionID, fileName string) string {
	sum := blake2b.Sum256([]byte(subject))
	return fmt.Sprintf("theory/%s/%d/%s", hex.EncodeToString(sum[:12]), id, fileName)
}
