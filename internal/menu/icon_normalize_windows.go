//go:build windows

package menu

import (
	"bytes"
	"encoding/binary"
	"image/png"

	"github.com/example/msgmenu/internal/logging"
)

// platformNormalizeIcon wraps PNG data in a single-image ICO container,
// which is the only format the Windows notification area accepts.
func platformNormalizeIcon(data []byte) []byte {
	if isICO(data) {
		return data
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logging.Debugf("tray icon is not a png: %v", err)
		return nil
	}
	return wrapPNGAsICO(data, cfg.Width, cfg.Height)
}

func wrapPNGAsICO(pngData []byte, width, height int) []byte {
	dimension := func(value int) byte {
		if value <= 0 || value >= 256 {
			return 0
		}
		return byte(value)
	}

	buf := &bytes.Buffer{}
	// ICONDIR: reserved, type 1 (icon), one image.
	_ = binary.Write(buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.WriteByte(dimension(width))
	buf.WriteByte(dimension(height))
	buf.WriteByte(0) // palette
	buf.WriteByte(0) // reserved
	_ = binary.Write(buf, binary.LittleEndian, [2]uint16{1, 32})
	_ = binary.Write(buf, binary.LittleEndian, [2]uint32{uint32(len(pngData)), 6 + 16})
	buf.Write(pngData)
	return buf.Bytes()
}

func isICO(data []byte) bool {
	return len(data) >= 4 && data[0] == 0x00 && data[1] == 0x00 && data[2] == 0x01 && data[3] == 0x00
}
