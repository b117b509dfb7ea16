package audio_test

import (
	"encoding/binary"
	"math"
	"slices"
	"testing"

	"github.com/MrWong99/speakcoach/pkg/audio"
)

// samplesToBytes converts int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts little-endian bytes to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()

	stereo := samplesToBytes([]int16{100, 300, -200, -400, 32767, 32767})
	got := bytesToSamples(audio.StereoToMono(stereo))
	want := []int16{200, -300, 32767}
	if !slices.Equal(got, want) {
		t.Errorf("StereoToMono = %v, want %v", got, want)
	}
}

func TestStereoToMono_PartialFrameDropped(t *testing.T) {
	t.Parallel()

	stereo := append(samplesToBytes([]int16{10, 20}), 0x01, 0x02)
	if got := bytesToSamples(audio.StereoToMono(stereo)); !slices.Equal(got, []int16{15}) {
		t.Errorf("StereoToMono = %v, want [15]", got)
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       []int16
		src, dst int
		want     []int16
	}{
		{"same rate", []int16{1, 2, 3}, 16000, 16000, []int16{1, 2, 3}},
		{"zero source rate", []int16{1, 2}, 0, 16000, []int16{1, 2}},
		{"zero target rate", []int16{1, 2}, 16000, 0, []int16{1, 2}},
		{"upsample interpolates", []int16{0, 100}, 8000, 16000, []int16{0, 50, 100, 100}},
		{"downsample halves", []int16{0, 10, 20, 30}, 32000, 16000, []int16{0, 20}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := bytesToSamples(audio.ResampleMono16(samplesToBytes(tc.in), tc.src, tc.dst))
			if !slices.Equal(got, tc.want) {
				t.Errorf("ResampleMono16 = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestToMono16(t *testing.T) {
	t.Parallel()

	// 4 stereo frames at 32 kHz become 2 mono samples at 16 kHz.
	stereo := samplesToBytes([]int16{0, 0, 10, 10, 20, 20, 30, 30})
	got := bytesToSamples(audio.ToMono16(stereo, 32000, 2, 16000))
	if !slices.Equal(got, []int16{0, 20}) {
		t.Errorf("ToMono16 = %v, want [0 20]", got)
	}

	mono := samplesToBytes([]int16{5, 6})
	if got := bytesToSamples(audio.ToMono16(mono, 16000, 1, 16000)); !slices.Equal(got, []int16{5, 6}) {
		t.Errorf("ToMono16 mono passthrough = %v", got)
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 100)
	wav := audio.EncodeWAV(pcm, 48000, 2)

	if len(wav) != 144 {
		t.Fatalf("len = %d, want 144", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Errorf("bad chunk ids: %q %q %q", wav[0:4], wav[8:12], wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != 136 {
		t.Errorf("RIFF size = %d, want 136", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 2 {
		t.Errorf("channels = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 48000 {
		t.Errorf("sample rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 192000 {
		t.Errorf("byte rate = %d, want 192000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 100 {
		t.Errorf("data size = %d, want 100", got)
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := audio.RMS(make([]byte, 64)); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}
	if got := audio.RMS(samplesToBytes([]int16{1000, -1000})); math.Abs(got-1000) > 1e-9 {
		t.Errorf("RMS(±1000) = %v, want 1000", got)
	}
}
