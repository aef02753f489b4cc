// Package pcm converts raw PCM bytes to normalized float64 samples and back.
//
// Integer formats are mapped to [-1, 1) by dividing by their full scale
// (128, 32768, 8388608, ...). Encoding clips out-of-range values instead of
// letting them wrap around.
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/voicerestore/pkg/audio"
)

// Decode converts len(dst) samples of format "format" from "src".
func Decode(format audio.PCMFormat, dst []float64, src []byte) error {
	sampleSize := int(format.Size())
	if sampleSize == 0 {
		return fmt.Errorf("unknown format: %v", format)
	}
	if len(src) != len(dst)*sampleSize {
		return fmt.Errorf("the size of the input does not match the output: %d != %d*%d", len(src), len(dst), sampleSize)
	}
	for idx := range dst {
		dst[idx] = getFloat64(format, src[idx*sampleSize:])
	}
	return nil
}

// Encode converts len(src) samples into "dst" using format "format".
func Encode(format audio.PCMFormat, dst []byte, src []float64) error {
	sampleSize := int(format.Size())
	if sampleSize == 0 {
		return fmt.Errorf("unknown format: %v", format)
	}
	if len(dst) != len(src)*sampleSize {
		return fmt.Errorf("the size of the output does not match the input: %d != %d*%d", len(dst), len(src), sampleSize)
	}
	for idx, v := range src {
		setFloat64(format, dst[idx*sampleSize:], v)
	}
	return nil
}

func getFloat64(f audio.PCMFormat, p []byte) float64 {
	switch f {
	case audio.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case audio.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case audio.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case audio.PCMFormatS24LE:
		val := int32(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case audio.PCMFormatS24BE:
		val := int32(uint32(p[2]) | uint32(p[1])<<8 | uint32(p[0])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case audio.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / 9223372036854775808
	case audio.PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / 9223372036854775808
	case audio.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case audio.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case audio.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case audio.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func clipInt(v float64, scale float64) float64 {
	v = math.Round(v * scale)
	if v > scale-1 {
		return scale - 1
	}
	if v < -scale {
		return -scale
	}
	return v
}

func setFloat64(f audio.PCMFormat, p []byte, v float64) {
	switch f {
	case audio.PCMFormatU8:
		p[0] = byte(int(clipInt(v, 128)) + 128)
	case audio.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(clipInt(v, 32768))))
	case audio.PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(clipInt(v, 32768))))
	case audio.PCMFormatS24LE:
		val := int32(clipInt(v, 8388608))
		p[0] = byte(val)
		p[1] = byte(val >> 8)
		p[2] = byte(val >> 16)
	case audio.PCMFormatS24BE:
		val := int32(clipInt(v, 8388608))
		p[0] = byte(val >> 16)
		p[1] = byte(val >> 8)
		p[2] = byte(val)
	case audio.PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(clipInt(v, 2147483648))))
	case audio.PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(int32(clipInt(v, 2147483648))))
	case audio.PCMFormatS64LE:
		binary.LittleEndian.PutUint64(p, uint64(clipInt64(v)))
	case audio.PCMFormatS64BE:
		binary.BigEndian.PutUint64(p, uint64(clipInt64(v)))
	case audio.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case audio.PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

// float64 cannot represent math.MaxInt64, so the upper bound is handled separately.
func clipInt64(v float64) int64 {
	v = math.Round(v * 9223372036854775808)
	switch {
	case v >= 9223372036854775807:
		return math.MaxInt64
	case v <= -9223372036854775808:
		return math.MinInt64
	}
	return int64(v)
}
