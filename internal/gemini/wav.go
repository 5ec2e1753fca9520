package gemini

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// PCM format produced by the TTS model.
const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
)

// WriteWAV stores raw little-endian PCM as a WAV file.
func WriteWAV(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := EncodeWAV(f, pcm, SampleRate, Channels, BitsPerSample); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeWAV writes a canonical 44-byte RIFF header followed by pcm.
func EncodeWAV(w io.Writer, pcm []byte, sampleRate, channels, bitsPerSample int) error {
	blockAlign := channels * bitsPerSample / 8
	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: uint16(bitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
