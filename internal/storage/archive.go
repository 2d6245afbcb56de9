package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultURLExpiry is how long a presigned document link stays valid.
const DefaultURLExpiry = 15 * time.Minute

// ErrArchiveDisabled is returned when no bucket is configured.
var ErrArchiveDisabled = errors.New("document archive disabled")

// Archive lays resume documents out per user inside one bucket. A nil
// *Archive is valid and disabled.
type Archive struct {
	svc       Service
	bucket    string
	prefix    string
	urlExpiry time.Duration
	now       func() time.Time
}

func NewArchive(svc Service, opts UploadOptions) *Archive {
	if svc == nil || strings.TrimSpace(opts.Bucket) == "" {
		return nil
	}
	expiry := opts.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &Archive{
		svc:       svc,
		bucket:    strings.TrimSpace(opts.Bucket),
		prefix:    strings.Trim(opts.KeyPrefix, "/ "),
		urlExpiry: expiry,
		now:       time.Now,
	}
}

func (a *Archive) Enabled() bool { return a != nil }

// DocumentKey returns <prefix>/users/<id>/<reviewID>.pdf, or
// <prefix>/anonymous/<reviewID>.pdf for reviews without an owner.
func (a *Archive) DocumentKey(ownerID *int64, reviewID string) string {
	if ownerID == nil {
		return a.join("anonymous", reviewID+".pdf")
	}
	return a.UserPrefix(*ownerID) + reviewID + ".pdf"
}

// UserPrefix is the key prefix holding every document of one user.
func (a *Archive) UserPrefix(ownerID int64) string {
	return a.join("users", fmt.Sprintf("%d", ownerID)) + "/"
}

func (a *Archive) Put(ctx context.Context, key, contentType string, data []byte) error {
	if !a.Enabled() {
		return ErrArchiveDisabled
	}
	return a.svc.PutObject(ctx, a.bucket, key, contentType, bytes.NewReader(data))
}

func (a *Archive) Delete(ctx context.Context, key string) error {
	if !a.Enabled() {
		return ErrArchiveDisabled
	}
	return a.svc.DeleteObject(ctx, a.bucket, key)
}

// DeleteUser removes all archived documents of ownerID.
func (a *Archive) DeleteUser(ctx context.Context, ownerID int64) error {
	if !a.Enabled() {
		return ErrArchiveDisabled
	}
	return a.svc.DeletePrefix(ctx, a.bucket, a.UserPrefix(ownerID))
}

// UserDocuments lists what is archived for ownerID.
func (a *Archive) UserDocuments(ctx context.Context, ownerID int64) ([]ObjectInfo, error) {
	if !a.Enabled() {
		return nil, ErrArchiveDisabled
	}
	return a.svc.ListObjects(ctx, a.bucket, a.UserPrefix(ownerID))
}

// URL presigns a GET for key and reports when it stops working.
func (a *Archive) URL(ctx context.Context, key string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrArchiveDisabled
	}
	expiresAt := a.now().Add(a.urlExpiry)
	url, err := a.svc.GetObjectURL(ctx, a.bucket, key, a.urlExpiry)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, expiresAt, nil
}

func (a *Archive) join(parts ...string) string {
	if a.prefix == "" {
		return strings.Join(parts, "/")
	}
	return a.prefix + "/" + strings.Join(parts, "/")
}
