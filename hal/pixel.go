package hal

import "image/color"

// RGB565 packs c into a rrrrrggggggbbbbb pixel. Alpha is dropped.
func RGB565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

// ExpandRGB565 widens p back to an opaque 8-bit-per-channel color.
func ExpandRGB565(p uint16) color.RGBA {
	return color.RGBA{
		R: uint8(uint32(p>>11&0x1f) * 255 / 31),
		G: uint8(uint32(p>>5&0x3f) * 255 / 63),
		B: uint8(uint32(p&0x1f) * 255 / 31),
		A: 0xff,
	}
}

// PutRGB565 stores p little endian at buf[off].
func PutRGB565(buf []byte, off int, p uint16) {
	buf[off] = byte(p)
	buf[off+1] = byte(p >> 8)
}

// LoadRGB565 reads the little-endian pixel at buf[off].
func LoadRGB565(buf []byte, off int) uint16 {
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

// expandFrame converts the RGB565 pixels of src to RGBA bytes in dst.
func expandFrame(dst, src []byte) {
	for i, j := 0, 0; i+1 < len(src) && j+3 < len(dst); i, j = i+2, j+4 {
		c := ExpandRGB565(LoadRGB565(src, i))
		dst[j], dst[j+1], dst[j+2], dst[j+3] = c.R, c.G, c.B, c.A
	}
}
