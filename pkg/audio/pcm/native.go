package pcm

import (
	"encoding/binary"

	"github.com/xaionaro-go/voicerestore/pkg/audio"
)

type endian int

const (
	endianUndefined = endian(iota)
	endianBig
	endianLittle
)

func getEndian() endian {
	v := binary.NativeEndian.Uint16([]byte{1, 2})
	switch v {
	case 0x0102:
		return endianBig
	case 0x0201:
		return endianLittle
	}
	return endianUndefined
}

// NativeFloat32 returns the float32 format in the byte order of this computer,
// or PCMFormatUndefined if the byte order could not be detected.
func NativeFloat32() audio.PCMFormat {
	switch getEndian() {
	case endianBig:
		return audio.PCMFormatFloat32BE
	case endianLittle:
		return audio.PCMFormatFloat32LE
	}
	return audio.PCMFormatUndefined
}
