package entity

import "github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"

type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentLocation AttachmentKind = "location"
)

// Attachment is a tagged union: Kind selects which payload is set.
type Attachment struct {
	Kind     AttachmentKind      `json:"kind" firestore:"kind"`
	Image    *ImageAttachment    `json:"image,omitempty" firestore:"image,omitempty"`
	Location *LocationAttachment `json:"location,omitempty" firestore:"location,omitempty"`
}

type ImageAttachment struct {
	URL      string `json:"url,omitempty" firestore:"url"`
	Blurhash string `json:"blurhash,omitempty" firestore:"blurhash,omitempty"`
	// LocalURI is the on-device placeholder shown while uploading. Never persisted.
	LocalURI string `json:"localUri,omitempty" firestore:"-"`
}

type LocationAttachment struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

func NewImageAttachment(url, blurhash, localURI string) *Attachment {
	return &Attachment{
		Kind:  AttachmentImage,
		Image: &ImageAttachment{URL: url, Blurhash: blurhash, LocalURI: localURI},
	}
}

func NewLocationAttachment(lat, lng float64) *Attachment {
	return &Attachment{
		Kind:     AttachmentLocation,
		Location: &LocationAttachment{Lat: lat, Lng: lng},
	}
}

func (a *Attachment) Validate() error {
	switch a.Kind {
	case AttachmentImage:
		if a.Image == nil || a.Location != nil {
			return errors.BadRequest("image attachment payload mismatch", nil)
		}
		if a.Image.URL == "" && a.Image.LocalURI == "" {
			return errors.BadRequest("image attachment has no source", nil)
		}
	case AttachmentLocation:
		if a.Location == nil || a.Image != nil {
			return errors.BadRequest("location attachment payload mismatch", nil)
		}
		if a.Location.Lat < -90 || a.Location.Lat > 90 || a.Location.Lng < -180 || a.Location.Lng > 180 {
			return errors.BadRequest("location is out of range", nil)
		}
	default:
		return errors.BadRequest("unknown attachment kind", nil)
	}
	return nil
}

func (a *Attachment) clone() *Attachment {
	c := &Attachment{Kind: a.Kind}
	if a.Image != nil {
		img := *a.Image
		c.Image = &img
	}
	if a.Location != nil {
		loc := *a.Location
		c.Location = &loc
	}
	return c
}

func (a *Attachment) Equal(b *Attachment) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || (a.Image == nil) != (b.Image == nil) || (a.Location == nil) != (b.Location == nil) {
		return false
	}
	if a.Image != nil && *a.Image != *b.Image {
		return false
	}
	if a.Location != nil && *a.Location != *b.Location {
		return false
	}
	return true
}
