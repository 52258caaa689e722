package texture

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SlicePreview renders one Z slice of tex as an image scaled up by scale
// with nearest-neighbour filtering. R8 textures are shown as grey levels.
func SlicePreview(tex *Texture, z, scale int) (*image.RGBA, error) {
	if z < 0 || z >= tex.Depth {
		return nil, fmt.Errorf("slice %d out of range [0,%d)", z, tex.Depth)
	}
	if scale < 1 {
		scale = 1
	}

	src := image.NewRGBA(image.Rect(0, 0, tex.Width, tex.Height))
	for y := 0; y < tex.Height; y++ {
		for x := 0; x < tex.Width; x++ {
			t := tex.Texel(x, y, z)
			var c color.RGBA
			if tex.Format == FormatR8Uint {
				v := t[0]
				if v == 1 {
					v = 255 // occupancy masks
				}
				c = color.RGBA{v, v, v, 255}
			} else {
				c = color.RGBA{t[0], t[1], t[2], t[3]}
			}
			// image rows grow downward, grid Y grows upward
			src.SetRGBA(x, tex.Height-1-y, c)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, tex.Width*scale, tex.Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// Annotate draws lines of text in the top-left corner of img.
func Annotate(img draw.Image, lines []string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	lineHeight := face.Metrics().Height
	y := fixed.I(4) + face.Metrics().Ascent
	for _, line := range lines {
		d.Dot = fixed.Point26_6{X: fixed.I(4), Y: y}
		d.DrawString(line)
		y += lineHeight
	}
}

func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
