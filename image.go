// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gmapsimage

import (
	"bytes"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// LogoMargin is the number of pixels (at scale 1) cut from each border of a
// Static Maps image to remove the Google logo and attribution.
const LogoMargin = 22

// DecodeTile decodes an image returned by the API (or read from the cache).
// All formats registered in the image package are supported.
func DecodeTile(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "can't decode image")
	}
	return imaging.Clone(img), nil
}

// CutLogo removes scale * margin pixels from each border of img. The result
// starts at (0, 0).
func CutLogo(img image.Image, scale, margin int) (*image.NRGBA, error) {
	off := scale * margin
	r := img.Bounds().Inset(off)
	if r.Dx() != img.Bounds().Dx()-2*off || r.Dy() != img.Bounds().Dy()-2*off || r.Empty() {
		return nil, errors.Newf("image of size %v too small to cut %d pixels from each side",
			img.Bounds().Size(), off)
	}
	return imaging.Crop(img, r), nil
}

// ParseFormat returns the image format for a file name or extension. Only
// jpg and png are supported.
func ParseFormat(name string) (imaging.Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		ext = strings.ToLower(name)
	}
	format, err := imaging.FormatFromExtension(ext)
	if err != nil || (format != imaging.JPEG && format != imaging.PNG) {
		return -1, errors.Newf("unsupported file type: %s, expected .jpg or .png", name)
	}
	return format, nil
}

// EncodeImage writes img in the given format. jpgQuality is only used for
// jpg and must be between 1 and 100.
func EncodeImage(w io.Writer, img image.Image, format imaging.Format, jpgQuality int) error {
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(jpgQuality)); err != nil {
		return errors.Wrap(err, "can't encode image")
	}
	return nil
}

// SaveImage saves img to file, the format is given by the file extension.
func SaveImage(file string, img image.Image, jpgQuality int) error {
	if _, err := ParseFormat(file); err != nil {
		return err
	}
	if err := imaging.Save(img, file, imaging.JPEGQuality(jpgQuality)); err != nil {
		return errors.Wrapf(err, "can't save image to %s", file)
	}
	return nil
}

// ImageResizer resizes an image to the given width and height.
type ImageResizer interface {
	Resize(width, height uint, img image.Image) image.Image
}

// NfntResizer uses the nfnt/resize package to resize an image.
type NfntResizer struct {
	// InterP is the interpolation function to use.
	InterP resize.InterpolationFunction
}

// NewNfntResizer returns a new resizer given the interpolation function.
func NewNfntResizer(interP resize.InterpolationFunction) NfntResizer {
	return NfntResizer{interP}
}

// Resize calls nfnt/resize methods.
func (resizer NfntResizer) Resize(width, height uint, img image.Image) image.Image {
	return resize.Resize(width, height, img, resizer.InterP)
}

// DefaultResizer is the resizer used for output images if nothing else is
// configured.
var DefaultResizer = NewNfntResizer(resize.Lanczos3)

// GetInterP returns an interpolation function given a desired quality.
// The higher the quality the better the interpolation should be, but execution
// time is higher. Currently supported are values between 0 and 5, each
// selecting a different interpolation function. Values greater than 5 are
// treated as 5.
func GetInterP(quality uint) resize.InterpolationFunction {
	switch quality {
	case 0:
		return resize.NearestNeighbor
	case 1:
		return resize.Bilinear
	case 2:
		return resize.Bicubic
	case 3:
		return resize.MitchellNetravali
	case 4:
		return resize.Lanczos2
	default:
		return resize.Lanczos3
	}
}

var interPNames = map[resize.InterpolationFunction]string{
	resize.NearestNeighbor:   "nearest",
	resize.Bilinear:          "bilinear",
	resize.Bicubic:           "bicubic",
	resize.MitchellNetravali: "mitchell",
	resize.Lanczos2:          "lanczos2",
	resize.Lanczos3:          "lanczos3",
}

// InterPString returns a name for the interpolation function.
func InterPString(interP resize.InterpolationFunction) string {
	if name, has := interPNames[interP]; has {
		return name
	}
	return "unknown"
}

// InterPFromString parses a name returned by InterPString.
func InterPFromString(s string) (resize.InterpolationFunction, error) {
	s = strings.ToLower(s)
	for interP, name := range interPNames {
		if name == s {
			return interP, nil
		}
	}
	return resize.Lanczos3, errors.Newf("unknown interpolation function \"%s\"", s)
}

// ResizeToDimensions resizes img to width x height. A negative value keeps
// the ratio of the image, if both are negative img is returned unchanged.
func ResizeToDimensions(resizer ImageResizer, img image.Image, width, height int) (image.Image, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return img, nil
	}
	switch {
	case width < 0 && height < 0:
		return img, nil
	case width < 0:
		width = KeepRatioWidth(bounds.Dx(), bounds.Dy(), height)
	case height < 0:
		height = KeepRatioHeight(bounds.Dx(), bounds.Dy(), width)
	}
	if width == 0 || height == 0 {
		return nil, errors.Newf("image would be empty, dimensions %dx%d", width, height)
	}
	if width == bounds.Dx() && height == bounds.Dy() {
		return img, nil
	}
	return resizer.Resize(uint(width), uint(height), img), nil
}
