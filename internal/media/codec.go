// Package media turns user-selected image files into previewable, upload-ready payloads.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"offer_console/internal/domain"
)

const (
	MaxFileSize    int64 = 10 << 20 // 10 MiB
	MaxGalleryBatch      = 10

	sniffLen = 512
)

// extensions by accepted content type
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// File is a local image picked by the user and not read yet.
type File struct {
	Name string
	Type string // declared content type, may be empty
	Size int64
	Open func() (io.ReadCloser, error)
}

// OpenPath describes the file at path; the declared type comes from its extension.
func OpenPath(path string) (File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return File{}, &ImageReadError{Name: filepath.Base(path), Err: err}
	}
	return File{
		Name: filepath.Base(path),
		Type: baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))),
		Size: st.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes wraps an in-memory file (e.g. a multipart part already buffered).
func FromBytes(name, typ string, b []byte) File {
	return File{
		Name: name,
		Type: baseType(typ),
		Size: int64(len(b)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil },
	}
}

// Pending is the transferable form of a local image: self-describing,
// serializable and usable as an <img> source before any upload.
type Pending struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	DataURL string `json:"dataUrl"`
}

// Check applies the type and size rules to a single image.
func Check(name, typ string, size int64) error {
	if _, ok := allowedTypes[baseType(typ)]; !ok {
		return &UnsupportedTypeError{Name: name, Type: typ}
	}
	if size > MaxFileSize {
		return &FileTooLargeError{Name: name, Size: size, Limit: MaxFileSize}
	}
	return nil
}

func (f File) Check() error    { return Check(f.Name, f.Type, f.Size) }
func (p Pending) Check() error { return Check(p.Name, p.Type, p.Size) }

// CheckGallery validates a batch of additional images. A batch over the
// limit is rejected as a whole; otherwise every per-file error is returned
// joined.
func CheckGallery(images []Pending) error {
	if len(images) > MaxGalleryBatch {
		msgs := make([]string, 0, len(images))
		for _, p := range images {
			msgs = append(msgs, fmt.Sprintf("%s rejected: batch of %d exceeds the %d image limit", p.Name, len(images), MaxGalleryBatch))
		}
		return &TooManyImagesError{Count: len(images), Limit: MaxGalleryBatch, Messages: msgs}
	}
	var errs []error
	for _, p := range images {
		if err := p.Check(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Encode reads f fully and returns its transferable form. A file over
// MaxFileSize is never read past its first bytes: the result carries no
// data and fails Check.
func Encode(f File) (Pending, error) {
	if f.Open == nil {
		return Pending{}, &ImageReadError{Name: f.Name, Err: errors.New("no source")}
	}
	typ := baseType(f.Type)
	if f.Size > MaxFileSize && typ != "" {
		return Pending{Name: f.Name, Type: typ, Size: f.Size}, nil
	}
	rc, err := f.Open()
	if err != nil {
		return Pending{}, &ImageReadError{Name: f.Name, Err: err}
	}
	defer rc.Close()

	if f.Size > MaxFileSize {
		head, err := io.ReadAll(io.LimitReader(rc, sniffLen))
		if err != nil {
			return Pending{}, &ImageReadError{Name: f.Name, Err: err}
		}
		return Pending{Name: f.Name, Type: baseType(mimetype.Detect(head).String()), Size: f.Size}, nil
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return Pending{}, &ImageReadError{Name: f.Name, Err: err}
	}
	if len(data) == 0 {
		return Pending{}, &ImageReadError{Name: f.Name, Err: errors.New("file is empty")}
	}

	if typ == "" {
		typ = baseType(mimetype.Detect(data).String())
	}
	return Pending{
		Name:    f.Name,
		Type:    typ,
		Size:    int64(len(data)),
		DataURL: "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// EncodeAll encodes files concurrently and returns them in input order.
func EncodeAll(ctx context.Context, files []File) ([]Pending, error) {
	out := make([]Pending, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range files {
		g.Go(func() error {
			p, err := Encode(f)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode turns a transferable image back into an upload with a synthesized
// filename whose extension matches the content type.
func Decode(p Pending) (domain.Upload, error) {
	rest, ok := strings.CutPrefix(p.DataURL, "data:")
	if !ok {
		return domain.Upload{}, &ImageReadError{Name: p.Name, Err: errors.New("not a data URL")}
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return domain.Upload{}, &ImageReadError{Name: p.Name, Err: errors.New("not base64 encoded")}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.Upload{}, &ImageReadError{Name: p.Name, Err: err}
	}
	if len(data) == 0 {
		return domain.Upload{}, &ImageReadError{Name: p.Name, Err: errors.New("file is empty")}
	}

	typ := baseType(strings.TrimSuffix(header, ";base64"))
	if typ == "" {
		typ = p.Type
	}
	ext, ok := allowedTypes[typ]
	if !ok {
		if exts, _ := mime.ExtensionsByType(typ); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return domain.Upload{
		Filename:    "image-" + xid.New().String() + ext,
		ContentType: typ,
		Data:        data,
	}, nil
}

// DecodeAll decodes images in order, stopping at the first failure.
func DecodeAll(images []Pending) ([]domain.Upload, error) {
	out := make([]domain.Upload, 0, len(images))
	for _, p := range images {
		u, err := Decode(p)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// baseType strips parameters and normalizes the legacy image/jpg alias.
func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "image/jpg" {
		return "image/jpeg"
	}
	return t
}
