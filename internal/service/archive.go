package service

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"resume-reviewer/internal/storage"
)

// DocumentArchive is the slice of storage.Archive the services rely on.
type DocumentArchive interface {
	Enabled() bool
	DocumentKey(ownerID *int64, reviewID string) string
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	DeleteUser(ctx context.Context, ownerID int64) error
	UserDocuments(ctx context.Context, ownerID int64) ([]storage.ObjectInfo, error)
	URL(ctx context.Context, key string) (string, time.Time, error)
}

var _ DocumentArchive = (*storage.Archive)(nil)

func ensureLogger(logger *logrus.Logger) *logrus.Logger {
	if logger != nil {
		return logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
