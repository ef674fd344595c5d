// Package s3 implements store.Store over an S3-compatible object storage
// backend, the default production backend for the object store façade.
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	anda_errs "github.com/xiaoyuanxun/anda-sub000/errs"
	anda_store "github.com/xiaoyuanxun/anda-sub000/store"
	anda_types "github.com/xiaoyuanxun/anda-sub000/types"
)

// API is the subset of the S3 client the store needs, so tests can supply a
// fake without standing up a real endpoint.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store wraps an S3 bucket as an anda_store.Store. Versioning is emulated
// with the object's ETag (quoted-hex MD5 for non-multipart PUTs), since
// optimistic concurrency in spec.md needs only "did the content change
// since I last read it", not true S3 bucket versioning.
type Store struct {
	api    API
	bucket string
}

func New(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

var _ anda_store.Store = (*Store)(nil)

func key(namespace, path anda_types.Path) string {
	return anda_store.EffectiveKey(namespace, path)
}

func (s *Store) Get(ctx context.Context, namespace, path anda_types.Path) ([]byte, anda_store.Meta, error) {
	k := key(namespace, path)
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(k)})
	if err != nil {
		if isNotFound(err) {
			return nil, anda_store.Meta{}, anda_errs.Resource("s3.Get", "object not found: "+k, err)
		}
		return nil, anda_store.Meta{}, anda_errs.Transport("s3.Get", "GetObject failed for "+k, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, anda_store.Meta{}, anda_errs.Transport("s3.Get", "read body failed", err)
	}
	meta := anda_store.Meta{
		Path:     k,
		Checksum: sha256.Sum256(data),
		Size:     int64(len(data)),
	}
	if out.ContentType != nil {
		meta.MimeType = *out.ContentType
	}
	meta.Version = versionFromETag(out.ETag)
	return data, meta, nil
}

func (s *Store) List(ctx context.Context, namespace anda_types.Path, prefix anda_types.Path, offset string) ([]anda_store.Meta, error) {
	fullPrefix := key(namespace, prefix)
	var out []anda_store.Meta
	var token *string
	for {
		page, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(fullPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, anda_errs.Transport("s3.List", "ListObjectsV2 failed", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || *obj.Key <= offset {
				continue
			}
			m := anda_store.Meta{Path: *obj.Key}
			if obj.Size != nil {
				m.Size = *obj.Size
			}
			m.Version = versionFromETag(obj.ETag)
			out = append(out, m)
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, namespace, path anda_types.Path, mode anda_store.PutMode, data []byte) (anda_store.PutResult, error) {
	if len(data) > anda_store.MaxInMemoryObject {
		return anda_store.PutResult{}, anda_errs.Resource("s3.Put", "object exceeds 2 MiB in-memory limit", nil)
	}
	k := key(namespace, path)

	switch mode.Kind() {
	case anda_store.KindCreate:
		if _, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(k)}); err == nil {
			return anda_store.PutResult{}, anda_errs.Conflict("s3.Put", "object already exists: "+k, nil)
		} else if !isNotFound(err) {
			return anda_store.PutResult{}, anda_errs.Transport("s3.Put", "HeadObject failed", err)
		}
	case anda_store.KindUpdate:
		head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(k)})
		if err != nil {
			return anda_store.PutResult{}, anda_errs.Conflict("s3.Put", "object does not exist: "+k, err)
		}
		if versionFromETag(head.ETag) != mode.Version() {
			return anda_store.PutResult{}, anda_errs.Conflict("s3.Put", "version conflict on "+k, nil)
		}
	case anda_store.KindOverwrite:
		// no precondition
	}

	out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return anda_store.PutResult{}, anda_errs.Transport("s3.Put", "PutObject failed", err)
	}
	return anda_store.PutResult{Version: versionFromETag(out.ETag)}, nil
}

func (s *Store) RenameIfNotExists(ctx context.Context, namespace anda_types.Path, from, to anda_types.Path) error {
	fromKey := key(namespace, from)
	toKey := key(namespace, to)

	if _, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(toKey)}); err == nil {
		return anda_errs.Conflict("s3.RenameIfNotExists", "destination exists: "+toKey, nil)
	} else if !isNotFound(err) {
		return anda_errs.Transport("s3.RenameIfNotExists", "HeadObject failed", err)
	}

	_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(toKey),
		CopySource: aws.String(s.bucket + "/" + fromKey),
	})
	if err != nil {
		return anda_errs.Transport("s3.RenameIfNotExists", "CopyObject failed", err)
	}
	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(fromKey)})
	if err != nil {
		return anda_errs.Transport("s3.RenameIfNotExists", "DeleteObject of source failed", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, namespace, path anda_types.Path) error {
	k := key(namespace, path)
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(k)})
	if err != nil {
		return anda_errs.Transport("s3.Delete", "DeleteObject failed", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}

// versionFromETag derives an UpdateVersion from an S3 ETag by hashing it
// down to a uint64; the ETag already changes on any content change, which
// is the only property the optimistic-concurrency contract needs.
func versionFromETag(etag *string) anda_types.UpdateVersion {
	if etag == nil {
		return 0
	}
	h := sha256.Sum256([]byte(*etag))
	n, _ := strconv.ParseUint(hex.EncodeToString(h[:8]), 16, 64)
	return anda_types.UpdateVersion(n)
}
