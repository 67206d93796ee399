package media

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ErrImage matches every image error of this package via errors.Is.
var ErrImage = errors.New("image error")

type UnsupportedTypeError struct {
	Name string
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: unsupported image type %q (allowed: JPEG, PNG, WebP)", e.Name, e.Type)
}

func (e *UnsupportedTypeError) Is(target error) bool { return target == ErrImage }

type FileTooLargeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s is %s, maximum is %s", e.Name,
		humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
}

func (e *FileTooLargeError) Is(target error) bool { return target == ErrImage }

// TooManyImagesError rejects a whole gallery batch. Messages has one entry
// per file past the limit.
type TooManyImagesError struct {
	Count    int
	Limit    int
	Messages []string
}

func (e *TooManyImagesError) Error() string {
	return fmt.Sprintf("too many images: %d selected, at most %d allowed", e.Count, e.Limit)
}

func (e *TooManyImagesError) Is(target error) bool { return target == ErrImage }

type ImageReadError struct {
	Name string
	Err  error
}

func (e *ImageReadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: could not read image", e.Name)
	}
	return fmt.Sprintf("%s: could not read image: %v", e.Name, e.Err)
}

func (e *ImageReadError) Unwrap() error        { return e.Err }
func (e *ImageReadError) Is(target error) bool { return target == ErrImage }

// Messages flattens an image error into user-facing lines for a field map.
func Messages(err error) []string {
	var tm *TooManyImagesError
	if errors.As(err, &tm) {
		return append([]string{tm.Error()}, tm.Messages...)
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, Messages(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
