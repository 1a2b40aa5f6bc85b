package model

import (
	"image"

	"github.com/nfnt/resize"
)

// Preprocess converts an image to the normalized CHW float tensor the vision
// encoder expects: resized to ImageSize x ImageSize, one plane per channel,
// each channel shifted by the mean and scaled by the std from the metadata.
func Preprocess(img image.Image, meta Metadata) []float32 {
	targetSize := uint(meta.ImageSize)

	resized := resize.Resize(targetSize, targetSize, img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	inputData := make([]float32, 3*width*height)
	plane := width * height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			pixelIndex := y*width + x
			inputData[pixelIndex] = (float32(r)/65535.0 - meta.Mean[0]) / meta.Std[0]
			inputData[plane+pixelIndex] = (float32(g)/65535.0 - meta.Mean[1]) / meta.Std[1]
			inputData[2*plane+pixelIndex] = (float32(b)/65535.0 - meta.Mean[2]) / meta.Std[2]
		}
	}

	return inputData
}
