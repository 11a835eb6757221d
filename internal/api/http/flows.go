package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/session"
	"github.com/mind-engage/mindengage-learn/internal/submission"
)

type languageReq struct {
	Language string `json:"language" validate:"required"`
}

// PUT /sessions/{sid}/coding/language
func SetLanguageHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		var req languageReq
		if err := decode(r, &req); err != nil {
			return err
		}
		f, err := s.Engine().Coding()
		if err != nil {
			return err
		}
		return f.SetLanguage(req.Language)
	})
}

type codeReq struct {
	Code string `json:"code" validate:"max=200000"`
}

// PUT /sessions/{sid}/coding/code
func SetCodeHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		var req codeReq
		if err := decode(r, &req); err != nil {
			return err
		}
		f, err := s.Engine().Coding()
		if err != nil {
			return err
		}
		f.SetCode(req.Code)
		return nil
	})
}

// POST /sessions/{sid}/coding/run
func RunCodeHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		f, err := s.Engine().Coding()
		if err != nil {
			return err
		}
		_, err = f.Run(r.Context())
		return err
	})
}

// POST /sessions/{sid}/coding/complete
func CompleteCodingHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		f, err := s.Engine().Coding()
		if err != nil {
			return err
		}
		return f.MarkComplete(r.Context())
	})
}

type answerReq struct {
	Option string `json:"option" validate:"required,len=1"`
}

// PUT /sessions/{sid}/mcq/answers/{questionID}
func AnswerHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		qid, err := idParam(r, "questionID")
		if err != nil {
			return err
		}
		var req answerReq
		if err := decode(r, &req); err != nil {
			return err
		}
		f, err := s.Engine().MCQ()
		if err != nil {
			return err
		}
		return f.Answer(course.QuestionID(qid), req.Option)
	})
}

// POST /sessions/{sid}/mcq/submit
func SubmitMCQHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		f, err := s.Engine().MCQ()
		if err != nil {
			return err
		}
		_, err = f.Submit(r.Context())
		return err
	})
}

// POST /sessions/{sid}/mcq/retry
func RetryMCQHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		f, err := s.Engine().MCQ()
		if err != nil {
			return err
		}
		return f.Retry()
	})
}

// POST /sessions/{sid}/theory/submit, multipart with a "file" part.
func SubmitTheoryHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		f, err := s.Engine().Theory()
		if err != nil {
			return err
		}
		r.Body = http.MaxBytesReader(nil, r.Body, submission.MaxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return submission.ErrFileTooLarge
			}
			return fmt.Errorf("%w: %v", errBadJSON, err)
		}
		defer r.MultipartForm.RemoveAll()
		file, hdr, err := r.FormFile("file")
		if err != nil {
			return submission.ErrNoFile
		}
		defer file.Close()
		if err := f.ChooseFile(hdr.Filename, file); err != nil {
			return err
		}
		_, err = f.Submit(r.Context())
		return err
	})
}

// GET /sessions/{sid}/theory/download
func DownloadTheoryHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionOf(m, r)
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		f, err := s.Engine().Theory()
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		rc, name, err := f.Download(r.Context())
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if _, err := io.Copy(w, rc); err != nil {
			log.Warn("download copy failed", "file", name, "error", err)
		}
	}
}
