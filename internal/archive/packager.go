// Package archive bundles a finished index run into a single zip for
// storage handoff.
package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/kelvinpraises/vidrune/internal/manifest"
	"github.com/kelvinpraises/vidrune/internal/models"
)

// Fixed member names of the handoff archive.
const (
	VideoMember    = "video.mp4"
	CaptionsMember = "captions.srt"
	ManifestMember = "manifest.json"
)

// SceneMember returns the 1-indexed zero-padded scene image member name.
func SceneMember(index int) string {
	return fmt.Sprintf("scenes/scene-%03d.png", index)
}

// AudioMember returns the 1-indexed zero-padded audio member name.
func AudioMember(index int) string {
	return fmt.Sprintf("audio/audio-%03d.wav", index)
}

// Pack writes the handoff archive. Scene members follow final scene order
// (processed scenes, ascending timestamp); scenes without audio simply have
// no audio member. video may be nil when no source file is available.
func Pack(w io.Writer, video io.Reader, m manifest.Manifest, srt string, scenes []*models.Scene) error {
	final := make([]*models.Scene, 0, len(scenes))
	for _, s := range scenes {
		if s.Processed {
			final = append(final, s)
		}
	}
	sort.Slice(final, func(i, j int) bool {
		return final[i].Timestamp < final[j].Timestamp
	})

	zw := zip.NewWriter(w)

	if video != nil {
		member, err := zw.Create(VideoMember)
		if err != nil {
			return fmt.Errorf("create %s: %w", VideoMember, err)
		}
		if _, err := io.Copy(member, video); err != nil {
			return fmt.Errorf("write %s: %w", VideoMember, err)
		}
	}

	member, err := zw.Create(CaptionsMember)
	if err != nil {
		return fmt.Errorf("create %s: %w", CaptionsMember, err)
	}
	if _, err := io.WriteString(member, srt); err != nil {
		return fmt.Errorf("write %s: %w", CaptionsMember, err)
	}

	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	member, err = zw.Create(ManifestMember)
	if err != nil {
		return fmt.Errorf("create %s: %w", ManifestMember, err)
	}
	if _, err := member.Write(manifestJSON); err != nil {
		return fmt.Errorf("write %s: %w", ManifestMember, err)
	}

	for i, scene := range final {
		name := SceneMember(i + 1)
		member, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := member.Write(scene.Image); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}

		if len(scene.Audio) == 0 {
			continue
		}
		name = AudioMember(i + 1)
		member, err = zw.Create(name)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := member.Write(scene.Audio); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return zw.Close()
}
