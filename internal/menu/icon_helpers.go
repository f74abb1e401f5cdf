package menu

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

const iconSize = 22

var (
	defaultIconData   = drawEnvelope(false)
	attentionIconData = drawEnvelope(true)
)

// drawEnvelope paints the indicator icon. The attention variant carries a
// filled badge in the top right corner.
func drawEnvelope(attention bool) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	ink := color.NRGBA{R: 0xde, G: 0xdd, B: 0xda, A: 0xff}
	badge := color.NRGBA{R: 0xe5, G: 0xa5, B: 0x0a, A: 0xff}

	top, bottom, left, right := 5, 17, 2, 19
	for x := left; x <= right; x++ {
		img.Set(x, top, ink)
		img.Set(x, bottom, ink)
	}
	for y := top; y <= bottom; y++ {
		img.Set(left, y, ink)
		img.Set(right, y, ink)
	}
	// flap
	for i := 0; i <= (right-left)/2; i++ {
		img.Set(left+i, top+i*2/3, ink)
		img.Set(right-i, top+i*2/3, ink)
	}
	if attention {
		cx, cy, r := 17, 5, 4
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
					img.Set(x, y, badge)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

// iconFor returns the platform-ready icon for the attention state.
func iconFor(attention bool) []byte {
	if attention {
		return normalizedIcon(attentionIconData)
	}
	return normalizedIcon(defaultIconData)
}

func cloneIcon(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp
}

func normalizedIcon(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	normalized := platformNormalizeIcon(data)
	if len(normalized) == 0 {
		return cloneIcon(data)
	}
	return normalized
}
