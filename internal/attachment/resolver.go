// Package attachment resolves persisted attachment records to files on the
// upload store, and writes new uploads into it.
package attachment

import (
	"context"

	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Lister is the read side of the attachments table.
type Lister interface {
	ListByTask(ctx context.Context, taskID string) ([]model.AttachmentRecord, error)
}

type Resolver struct {
	repo Lister
	fs   afero.Fs
	log  *zap.Logger
}

func NewResolver(repo Lister, fs afero.Fs, log *zap.Logger) *Resolver {
	return &Resolver{repo: repo, fs: fs, log: log}
}

// Resolve returns the paths of the task's attachments that exist, in record order.
// Missing files are skipped and lookup failures yield no attachments; neither blocks delivery.
func (r *Resolver) Resolve(ctx context.Context, taskID string) []string {
	recs, err := r.repo.ListByTask(ctx, taskID)
	if err != nil {
		r.log.Error("attachment lookup failed, sending without attachments",
			zap.String("task_id", taskID), zap.Error(err))
		return []string{}
	}

	paths := make([]string, 0, len(recs))
	for _, rec := range recs {
		ok, err := afero.Exists(r.fs, rec.FilePath)
		if err != nil {
			r.log.Warn("attachment stat failed", zap.String("task_id", taskID), zap.String("path", rec.FilePath), zap.Error(err))
			continue
		}
		if !ok {
			r.log.Warn("attachment file missing", zap.String("task_id", taskID), zap.String("path", rec.FilePath))
			continue
		}
		paths = append(paths, rec.FilePath)
	}
	return paths
}
