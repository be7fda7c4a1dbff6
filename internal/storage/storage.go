package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// Bucket хранит вложения тикетов и возвращает URL, по которому они отдаются.
type Bucket struct {
	bk        *blob.Bucket
	publicURL string
}

// Open открывает bucket по gocloud URL: s3://uploads?endpoint=...&region=... для Supabase/S3,
// file:///var/lib/uploads для локального диска, mem:// для разработки.
func Open(ctx context.Context, bucketURL, publicURL string) (*Bucket, error) {
	bk, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", bucketURL, err)
	}
	return New(bk, publicURL), nil
}

func New(bk *blob.Bucket, publicURL string) *Bucket {
	if publicURL == "" {
		publicURL = "/uploads"
	}
	return &Bucket{bk: bk, publicURL: strings.TrimRight(publicURL, "/")}
}

func (b *Bucket) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = sanitizeKey(key)
	if key == "" {
		return "", fmt.Errorf("upload: empty key")
	}
	if err := b.bk.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return b.PublicURL(key), nil
}

// Delete удаляет объект; отсутствующий ключ не считается ошибкой.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	key = sanitizeKey(key)
	if key == "" {
		return nil
	}
	if err := b.bk.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) PublicURL(key string) string {
	return b.publicURL + "/" + (&url.URL{Path: sanitizeKey(key)}).EscapedPath()
}

func (b *Bucket) Close() error { return b.bk.Close() }

// sanitizeKey prevents path traversal.
func sanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	parts := strings.Split(key, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}

// SecureFilename reduces an uploaded file name to a safe ASCII base name.
func SecureFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var sb strings.Builder
	for _, r := range strings.Join(strings.Fields(name), "_") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		}
	}
	out := strings.Trim(sb.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// AllowedAttachment reports whether the file name carries one of the accepted extensions,
// returning the content type to store it with.
func AllowedAttachment(name string) (string, bool) {
	ct, ok := allowedExt[strings.ToLower(path.Ext(name))]
	return ct, ok
}
