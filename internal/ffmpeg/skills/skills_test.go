// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package skills

import "testing"

const versionOut = `ffmpeg version 6.1 Copyright (c) 2000-2023 the FFmpeg developers
built with gcc 13 (Debian 13.2.0-5)
configuration: --enable-gpl --enable-libx264
libavutil      58. 29.100 / 58. 29.100
`

const filtersOut = `Filters:
  T.. = Timeline support
  S.. = Slice threading
  ..C = Command support
  A = Audio input/output
  V = Video input/output
  N = Dynamic number and/or type of input/output
  | = Source or sink filter
 TSC acrossfade        AA->A      Cross fade two input audio streams.
 T.C highpass          A->A       Apply a high-pass filter with 3dB point frequency.
 ... loudnorm          A->A       EBU R128 loudness normalization
 T.C volume            A->A       Change input volume.
 ... concat            N->N       Concatenate audio and video streams.
 T.. trim              V->V       Pick one continuous section from the input, drop the rest.
`

const formatsOut = `File formats:
 D. = Demuxing supported
 .E = Muxing supported
 --
 D  aac             raw ADTS AAC (Advanced Audio Coding)
  E ipod            iPod H.264 MP4 (MPEG-4 Part 14)
 DE matroska,webm   Matroska / WebM
  E mp4             MP4 (MPEG-4 Part 14)
 DE wav             WAV / WAVE (Waveform Audio)
`

// ffmpeg 6.1+ adds a device column
const formatsDeviceOut = `File formats:
 D.. = Demuxing supported
 .E. = Muxing supported
 ..d = Is a device
 ---
 D   aac             raw ADTS AAC (Advanced Audio Coding)
  E  ipod            iPod H.264 MP4 (MPEG-4 Part 14)
 D d lavfi           Libavfilter virtual input device
 DE  matroska,webm   Matroska / WebM
  E  mp4             MP4 (MPEG-4 Part 14)
 DE  wav             WAV / WAVE (Waveform Audio)
`

const encodersOut = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
 A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3) (codec mp3)
`

func TestParseVersion(t *testing.T) {
	if got := ParseVersion([]byte(versionOut)); got != "6.1.0" {
		t.Fatalf("version = %q, want 6.1.0", got)
	}
	if got := ParseVersion([]byte("ffmpeg version 7.0.2-static")); got != "7.0.2" {
		t.Fatalf("version = %q, want 7.0.2", got)
	}
	if got := ParseVersion([]byte("not ffmpeg")); got != "" {
		t.Fatalf("version = %q, want empty", got)
	}
}

func TestParseFilters(t *testing.T) {
	s := Skills{Filters: ParseFilters([]byte(filtersOut))}
	if len(s.Filters) != 6 {
		t.Fatalf("got %d filters, want 6: %+v", len(s.Filters), s.Filters)
	}
	for _, id := range []string{"highpass", "loudnorm", "volume", "concat", "trim"} {
		if !s.HasFilter(id) {
			t.Errorf("missing filter %s", id)
		}
	}
	if s.HasFilter("lowpass") {
		t.Error("lowpass should not be detected")
	}
	if s.Filters[0].IO != "AA->A" {
		t.Errorf("io = %q", s.Filters[0].IO)
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		demuxers  int
		muxers    int
		demuxOnly string
	}{
		{"two columns", formatsOut, 4, 5, "aac"},
		{"device column", formatsDeviceOut, 5, 5, "lavfi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			demuxers, muxers := ParseFormats([]byte(tt.out))
			s := Skills{}
			s.Formats.Demuxers, s.Formats.Muxers = demuxers, muxers

			for _, id := range []string{"ipod", "matroska", "webm", "mp4", "wav"} {
				if !s.HasMuxer(id) {
					t.Errorf("missing muxer %s", id)
				}
			}
			if s.HasMuxer("aac") || s.HasMuxer(tt.demuxOnly) {
				t.Errorf("%s is demux only", tt.demuxOnly)
			}
			if len(demuxers) != tt.demuxers || len(muxers) != tt.muxers {
				t.Errorf("got %d demuxers and %d muxers, want %d and %d", len(demuxers), len(muxers), tt.demuxers, tt.muxers)
			}
		})
	}
}

func TestParseEncoders(t *testing.T) {
	s := Skills{Encoders: ParseEncoders([]byte(encodersOut))}
	if len(s.Encoders) != 3 {
		t.Fatalf("got %d encoders, want 3: %+v", len(s.Encoders), s.Encoders)
	}
	if !s.HasEncoder("libmp3lame") || s.Encoders[0].Type != "V" {
		t.Fatalf("unexpected encoders %+v", s.Encoders)
	}
}
