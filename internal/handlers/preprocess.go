package handlers

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// decodeImage turns raw upload bytes into a pixel grid. Undecodable
// payloads are a client error, not a server fault.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("invalid image format; supported formats: JPEG, PNG")
	}
	return img, nil
}

// preprocess converts a decoded image into the network's input tensor:
// Lanczos3 resize to size×size, RGB with any alpha channel discarded,
// interleaved height×width×channel float32 values scaled from [0,255]
// to [-1,1] per the InceptionV3 preprocessing convention. The pipeline
// is deterministic: the same image always yields the same tensor.
func preprocess(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	bounds := resized.Bounds()
	data := make([]float32, size*size*3)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := pixelRGB(resized, x, y)
			data[i] = float32(r)/127.5 - 1
			data[i+1] = float32(g)/127.5 - 1
			data[i+2] = float32(b)/127.5 - 1
			i += 3
		}
	}

	return data
}

// pixelRGB reads an 8-bit straight-alpha RGB triple. NRGBA images are
// read directly so a translucent pixel keeps its stored color instead
// of being premultiplied toward black.
func pixelRGB(img image.Image, x, y int) (uint8, uint8, uint8) {
	switch p := img.(type) {
	case *image.NRGBA:
		i := p.PixOffset(x, y)
		return p.Pix[i], p.Pix[i+1], p.Pix[i+2]
	case *image.NRGBA64:
		i := p.PixOffset(x, y)
		return p.Pix[i], p.Pix[i+2], p.Pix[i+4]
	default:
		r, g, b, _ := img.At(x, y).RGBA()
		return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
	}
}
