package pdf2image

import (
	"github.com/disintegration/imaging"
)

// Hook transforms the engine handle at a defined point in the render
// pipeline: before page data is read, or after flatten and format have
// been applied. A hook may mutate the handle in place or return a
// replacement; the returned handle becomes the converter's handle.
type Hook func(h Handle, page int) (Handle, error)

// ResizeHook returns a hook that resizes the page image to the given
// dimensions. A zero width or height preserves the aspect ratio.
func ResizeHook(width, height int) Hook {
	return func(h Handle, page int) (Handle, error) {
		img := h.Image()
		if img == nil {
			return h, nil
		}
		h.SetImage(imaging.Resize(img, width, height, imaging.Lanczos))
		return h, nil
	}
}

// SharpenHook returns a hook that sharpens the page image
func SharpenHook(sigma float64) Hook {
	return func(h Handle, page int) (Handle, error) {
		img := h.Image()
		if img == nil {
			return h, nil
		}
		h.SetImage(imaging.Sharpen(img, sigma))
		return h, nil
	}
}

// GrayscaleHook returns a hook that converts the page image to grayscale
func GrayscaleHook() Hook {
	return func(h Handle, page int) (Handle, error) {
		img := h.Image()
		if img == nil {
			return h, nil
		}
		h.SetImage(imaging.Grayscale(img))
		return h, nil
	}
}

// ChainHooks runs hooks in order, threading the handle through each
func ChainHooks(hooks ...Hook) Hook {
	return func(h Handle, page int) (Handle, error) {
		var err error
		for _, hook := range hooks {
			h, err = hook(h, page)
			if err != nil {
				return h, err
			}
		}
		return h, nil
	}
}
