package audio

import "encoding/binary"

const wavHeaderSize = 44

// EncodeWAV wraps 16-bit mono PCM samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	clip := make([]byte, wavHeaderSize+dataSize)

	copy(clip[0:], "RIFF")
	binary.LittleEndian.PutUint32(clip[4:], uint32(36+dataSize))
	copy(clip[8:], "WAVE")

	copy(clip[12:], "fmt ")
	binary.LittleEndian.PutUint32(clip[16:], 16)
	binary.LittleEndian.PutUint16(clip[20:], 1) // PCM
	binary.LittleEndian.PutUint16(clip[22:], 1) // mono
	binary.LittleEndian.PutUint32(clip[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(clip[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(clip[32:], 2)  // block align
	binary.LittleEndian.PutUint16(clip[34:], 16) // bits per sample

	copy(clip[36:], "data")
	binary.LittleEndian.PutUint32(clip[40:], uint32(dataSize))
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(clip[wavHeaderSize+i*2:], uint16(sample))
	}

	return clip
}

// PCMPayload returns the data chunk of a RIFF/WAVE clip, or the input
// unchanged when it is not a RIFF container.
func PCMPayload(clip []byte) []byte {
	if len(clip) < 12 || string(clip[0:4]) != "RIFF" || string(clip[8:12]) != "WAVE" {
		return clip
	}

	offset := 12
	for offset+8 <= len(clip) {
		chunkID := string(clip[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(clip[offset+4 : offset+8]))
		if chunkID == "data" {
			end := min(offset+8+chunkSize, len(clip))
			return clip[offset+8 : end]
		}
		offset += 8 + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	return nil
}
