package domain

// Upload is a binary ready for a multipart upload.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateRequest is the flattened draft handed to the Offer Service create call.
type CreateRequest struct {
	Fields    map[string]string // title_en, ..., duration, stars
	MainImage *Upload
	Images    []Upload
}

// MainImageOp is the main-image axis of an update. A nil MainImageOp keeps
// the current image.
type MainImageOp interface{ mainImageOp() }

type ReplaceMainImage struct{ Image Upload }

type RemoveMainImage struct{}

func (ReplaceMainImage) mainImageOp() {}
func (RemoveMainImage) mainImageOp()  {}

// GalleryOp is the gallery axis of an update. A nil GalleryOp leaves the
// server-side gallery untouched.
type GalleryOp interface{ galleryOp() }

// PatchGallery removes images by position (against the gallery as it was
// before the edit) and then appends Add.
type PatchGallery struct {
	Remove []int
	Add    []Upload
}

// ReplaceGallery overwrites the whole gallery with Images.
type ReplaceGallery struct {
	Images []Upload
}

func (PatchGallery) galleryOp()   {}
func (ReplaceGallery) galleryOp() {}

// UpdatePayload is the minimal diff sent to the Offer Service update call.
type UpdatePayload struct {
	ID        OfferID
	Fields    map[string]string // changed fields only
	MainImage MainImageOp
	Gallery   GalleryOp
}

// Empty reports whether the payload would change nothing.
func (p UpdatePayload) Empty() bool {
	return len(p.Fields) == 0 && p.MainImage == nil && p.Gallery == nil
}
