// Package download drives file downloads whose progress arrives as repeated
// responses to a single backend request.
package download

import (
	"fmt"
	"sync"

	"github.com/matheus3301/telesync/internal/labels"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

const downloadPriority = 1

// Progress is one partial download report.
type Progress struct {
	Downloaded int64
	Expected   int64
}

// Percent returns the completed percentage, or false when the expected size
// is unknown.
func (p Progress) Percent() (int, bool) {
	if p.Expected <= 0 {
		return 0, false
	}
	pct := int(p.Downloaded * 100 / p.Expected)
	return min(pct, 100), true
}

// Label renders the progress as "NN%" or the localized unknown label.
func (p Progress) Label(l *labels.Labels) string {
	if pct, ok := p.Percent(); ok {
		return fmt.Sprintf("%d%%", pct)
	}
	return l.Get(labels.UnknownProgress)
}

// ProgressFunc receives partial progress.
type ProgressFunc func(Progress)

// DoneFunc receives the outcome. path is the local file when ok.
type DoneFunc func(ok bool, path string)

// Downloader issues download requests straight to the client, since a
// single request may be answered many times.
type Downloader struct {
	client td.Client
	logger *zap.Logger
}

// New creates a downloader.
func New(client td.Client, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{client: client, logger: logger}
}

// DownloadFile fetches file, reporting progress until done is called once.
// A file already complete on disk short-circuits without a request.
func (d *Downloader) DownloadFile(file *td.File, progress ProgressFunc, done DoneFunc) {
	if file == nil {
		done(false, "")
		return
	}
	if file.Local.IsDownloadingCompleted {
		done(true, file.Local.Path)
		return
	}

	var once sync.Once
	finish := func(ok bool, path string) {
		once.Do(func() { done(ok, path) })
	}

	d.client.Send(&td.DownloadFile{
		FileID:      file.ID,
		Priority:    downloadPriority,
		Synchronous: true,
	}, func(obj td.Object) {
		switch r := obj.(type) {
		case *td.File:
			if r.Local.IsDownloadingCompleted {
				finish(true, r.Local.Path)
				return
			}
			if progress != nil {
				expected := r.ExpectedSize
				if expected == 0 {
					expected = r.Size
				}
				progress(Progress{Downloaded: r.Local.DownloadedSize, Expected: expected})
			}
		case *td.Error:
			d.logger.Warn("download failed", zap.Int32("file_id", file.ID), zap.Int("code", r.Code), zap.String("message", r.Message))
			finish(false, "")
		default:
			d.logger.Warn("unexpected download response", zap.String("type", obj.ObjectType()))
			finish(false, "")
		}
	})
}

// DownloadPhoto is DownloadFile without progress reporting.
func (d *Downloader) DownloadPhoto(file *td.File, done DoneFunc) {
	d.DownloadFile(file, nil, done)
}
