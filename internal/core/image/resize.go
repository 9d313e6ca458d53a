package image

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultMaxDimension 長邊上限，超過時等比例縮小
const DefaultMaxDimension = 1200

// downscale 長邊超過 maxDim 時等比例縮小，否則原樣回傳
func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
