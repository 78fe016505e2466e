package audio

import (
	"context"
	"testing"
	"time"
)

type scriptedSource struct {
	chunks [][]int16
}

func (s *scriptedSource) ReadChunk(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		return make([]int16, 1600), nil // endless silence
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func loudChunk(samples int) []int16 {
	chunk := make([]int16, samples)
	for i := range chunk {
		chunk[i] = 8000
	}
	return chunk
}

func TestRecordUtteranceStopsAfterSilence(t *testing.T) {
	source := &scriptedSource{chunks: [][]int16{
		make([]int16, 1600), // leading silence, discarded
		loudChunk(1600),
		loudChunk(1600),
	}}

	clip, err := RecordUtterance(context.Background(), source, CaptureConfig{
		SampleRate:      16000,
		SilenceDuration: 100 * time.Millisecond,
		MinDuration:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	payload := PCMPayload(clip)
	// 2 loud chunks plus one silent chunk that triggered the stop.
	if expected := 3 * 1600 * 2; len(payload) != expected {
		t.Errorf("expected %d payload bytes, got %d", expected, len(payload))
	}
}

func TestRecordUtterancePadsShortClips(t *testing.T) {
	source := &scriptedSource{chunks: [][]int16{loudChunk(1600)}}

	clip, err := RecordUtterance(context.Background(), source, CaptureConfig{
		SampleRate:      16000,
		SilenceDuration: 100 * time.Millisecond,
		MinDuration:     time.Second,
	})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	if payload := PCMPayload(clip); len(payload) != 16000*2 {
		t.Errorf("expected clip padded to 32000 payload bytes, got %d", len(payload))
	}
}

func TestRecordUtteranceCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clip, err := RecordUtterance(ctx, &scriptedSource{}, CaptureConfig{})
	if err != nil {
		t.Fatalf("expected header-only clip, got error: %v", err)
	}
	if len(clip) != wavHeaderSize {
		t.Errorf("expected %d byte clip, got %d", wavHeaderSize, len(clip))
	}
}

func TestRecordUtteranceCapsDuration(t *testing.T) {
	chunks := make([][]int16, 0, 40)
	for range 40 {
		chunks = append(chunks, loudChunk(1600))
	}

	clip, err := RecordUtterance(context.Background(), &scriptedSource{chunks: chunks}, CaptureConfig{
		SampleRate:  16000,
		MaxDuration: time.Second,
		MinDuration: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	if payload := PCMPayload(clip); len(payload) != 16000*2 {
		t.Errorf("expected capped clip of 32000 payload bytes, got %d", len(payload))
	}
}

func TestChunkRMS(t *testing.T) {
	if got := ChunkRMS(nil); got != 0 {
		t.Errorf("expected zero energy for empty chunk, got %f", got)
	}
	if got := ChunkRMS(make([]int16, 100)); got != 0 {
		t.Errorf("expected zero energy for silence, got %f", got)
	}
	if got := ChunkRMS([]int16{16384, -16384}); got < 0.49 || got > 0.51 {
		t.Errorf("expected half-scale energy near 0.5, got %f", got)
	}
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	clip := EncodeWAV(samples, 16000)

	if len(clip) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("unexpected clip size: %d", len(clip))
	}
	if string(clip[0:4]) != "RIFF" || string(clip[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}

	payload := PCMPayload(clip)
	if len(payload) != len(samples)*2 {
		t.Fatalf("unexpected payload size: %d", len(payload))
	}
}

func TestPCMPayloadPassesThroughBarePCM(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	if got := PCMPayload(raw); string(got) != string(raw) {
		t.Errorf("expected bare PCM to pass through, got %v", got)
	}
}
