package audio

import (
	"encoding/binary"
	"io"
	"math"
	"os"
)

// EncodeWAVFloat32LE encodes interleaved samples as an IEEE float WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // WAVE_FORMAT_IEEE_FLOAT
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

// WriteWAV writes stereo samples to w.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	_, err := w.Write(EncodeWAVFloat32LE(samples, sampleRate, 2))
	return err
}

// WriteWAVFile writes stereo samples to path.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	return os.WriteFile(path, EncodeWAVFloat32LE(samples, sampleRate, 2), 0644)
}
