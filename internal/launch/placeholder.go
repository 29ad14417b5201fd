package launch

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var (
	placeholderOnce  sync.Once
	placeholderBytes []byte
)

// placeholderImage returns a square PNG used when a launch has no image.
func placeholderImage() []byte {
	placeholderOnce.Do(func() {
		const size = 256
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		fill := color.RGBA{R: 0xf5, G: 0xc5, B: 0x18, A: 0xff}
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				img.Set(x, y, fill)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			placeholderBytes = buf.Bytes()
		}
	})
	return placeholderBytes
}
