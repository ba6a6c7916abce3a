package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/kelvinpraises/vidrune/internal/manifest"
	"github.com/kelvinpraises/vidrune/internal/models"
)

func packToZip(t *testing.T, video io.Reader, scenes []*models.Scene) *zip.Reader {
	t.Helper()

	m := manifest.Build(manifest.Meta{ID: "vid-1", Title: "Test"}, scenes)
	srt := "1\n00:00:00,000 --> 00:00:03,000\ncaption\n\n"

	var buf bytes.Buffer
	if err := Pack(&buf, video, m, srt, scenes); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Failed to reopen archive: %v", err)
	}
	return zr
}

func memberNames(zr *zip.Reader) map[string]bool {
	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}
	return names
}

func readMember(t *testing.T, zr *zip.Reader, name string) []byte {
	t.Helper()
	rc, err := zr.Open(name)
	if err != nil {
		t.Fatalf("Failed to open member %s: %v", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Failed to read member %s: %v", name, err)
	}
	return data
}

func TestPack_MemberLayout(t *testing.T) {
	scenes := []*models.Scene{
		{Timestamp: 5, Caption: "second", Image: []byte("png2"), Audio: []byte("wav2"), Processed: true},
		{Timestamp: 0, Caption: "first", Image: []byte("png1"), Audio: []byte("wav1"), Processed: true},
		{Timestamp: 9, Caption: "skipped", Image: []byte("png3")},
	}

	zr := packToZip(t, strings.NewReader("video bytes"), scenes)
	names := memberNames(zr)

	for _, want := range []string{
		VideoMember, CaptionsMember, ManifestMember,
		"scenes/scene-001.png", "scenes/scene-002.png",
		"audio/audio-001.wav", "audio/audio-002.wav",
	} {
		if !names[want] {
			t.Errorf("Archive missing member %s", want)
		}
	}
	if names["scenes/scene-003.png"] {
		t.Error("Unprocessed scene leaked into the archive")
	}

	// Members follow final order: ascending timestamp, so scene-001 is t=0.
	if got := readMember(t, zr, "scenes/scene-001.png"); string(got) != "png1" {
		t.Errorf("scene-001 = %q, want png1", got)
	}
	if got := readMember(t, zr, "audio/audio-002.wav"); string(got) != "wav2" {
		t.Errorf("audio-002 = %q, want wav2", got)
	}

	var m manifest.Manifest
	if err := json.Unmarshal(readMember(t, zr, ManifestMember), &m); err != nil {
		t.Fatalf("Manifest member is not valid JSON: %v", err)
	}
	if len(m.Scenes) != 2 {
		t.Errorf("Manifest scenes = %d, want 2", len(m.Scenes))
	}
}

func TestPack_SceneWithoutAudio(t *testing.T) {
	scenes := []*models.Scene{
		{Timestamp: 0, Caption: "silent", Image: []byte("png"), Processed: true},
	}

	zr := packToZip(t, nil, scenes)
	names := memberNames(zr)

	if !names["scenes/scene-001.png"] {
		t.Error("Scene image member missing")
	}
	if names["audio/audio-001.wav"] {
		t.Error("Audio member present for a scene without audio")
	}
}

func TestPack_NilVideo(t *testing.T) {
	zr := packToZip(t, nil, nil)
	names := memberNames(zr)

	if names[VideoMember] {
		t.Error("Video member present despite nil reader")
	}
	if !names[CaptionsMember] || !names[ManifestMember] {
		t.Error("Captions or manifest member missing")
	}
}
