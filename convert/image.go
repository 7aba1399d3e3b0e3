package convert

import (
	"fmt"
	"strings"

	"github.com/HardCoreQual/pdf2png/fetch"
	"github.com/disintegration/imaging"
)

// Format is an output image encoding
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// ParseFormat accepts png, jpeg and jpg in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	default:
		return "", fmt.Errorf("convert: unsupported format %q", s)
	}
}

// Extension is the file extension without the dot
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}

// MediaType is the MIME type of the encoding
func (f Format) MediaType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) imaging() imaging.Format {
	if f == JPEG {
		return imaging.JPEG
	}
	return imaging.PNG
}

// Image is one rendered page
type Image struct {
	// Page is the 1-based page number
	Page   int
	Width  int
	Height int
	Format Format
	Data   []byte
}

// DataURL returns the image as a base64 data URL
func (i Image) DataURL() string {
	return fetch.EncodeDataURL(i.Format.MediaType(), i.Data)
}

// FileName is the zero-based index name used when the image is stored
func (i Image) FileName() string {
	return fmt.Sprintf("%d.%s", i.Page-1, i.Format.Extension())
}

// Source is a document to convert. Data wins over URL when both are set.
type Source struct {
	Name string
	Data []byte
	URL  string
}
