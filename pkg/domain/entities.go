// Package domain defines the canonical entities, identifier and ordering
// primitives, and error taxonomy of the reelcore document model.
//
// Entities reference one another by ID only. The live maps held by the
// project aggregate are projections of the command log; an entity value
// must serialize and rehydrate without depending on pointer identity.
package domain

import "fmt"

// User identifies an author of commands. Immutable once created.
type User struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// AudioAsset is an imported audio file. The digest is the sha-256 of the
// file contents; duplicate imports of identical bytes resolve to the same
// asset through the digest index regardless of path.
type AudioAsset struct {
	ID     ID     `json:"id"`
	Path   string `json:"path"`
	Digest string `json:"digest"` // lowercase hex sha-256 of the file bytes
}

// AudioClip names a playable region source backed by one AudioAsset.
type AudioClip struct {
	ID           ID     `json:"id"`
	AudioAssetID ID     `json:"audio_asset_id"`
	Name         string `json:"name"`
}

// Track is an ordered lane of audio clip segments.
type Track struct {
	ID      ID      `json:"id"`
	Name    string  `json:"name"`
	SortKey SortKey `json:"sort_key"`
}

// AudioClipSegment places a slice of an audio clip on a track.
// Start and End are frame offsets into the clip, Pos is the position on the
// track timeline in whole notes.
type AudioClipSegment struct {
	ID          ID      `json:"id"`
	AudioClipID ID      `json:"audio_clip_id"`
	TrackID     ID      `json:"track_id"`
	Start       int64   `json:"start"`
	End         int64   `json:"end"`
	Pos         float64 `json:"pos"`
}

// Validate checks segment-local invariants.
func (s AudioClipSegment) Validate() error {
	if s.Start > s.End {
		return fmt.Errorf("segment start %d > end %d: %w", s.Start, s.End, ErrInvalidArgument)
	}
	return nil
}

// MixerLine is a mix bus owning an ordered list of effects.
type MixerLine struct {
	ID      ID      `json:"id"`
	Name    string  `json:"name"`
	SortKey SortKey `json:"sort_key"`
	Solo    bool    `json:"solo"`
	Volume  float32 `json:"volume"`
}

// EffectType tags the closed set of effect variants.
type EffectType int32

const (
	// EffectTypeSend routes the line's signal to a playback device.
	EffectTypeSend EffectType = 0
)

// EffectSend is the send effect payload.
type EffectSend struct {
	Gain     float32 `json:"gain"`
	DeviceID int32   `json:"device_id"`
}

// Effect is an entry in a mixer line's effect chain. Exactly the field for
// the tagged variant is meaningful.
type Effect struct {
	ID          ID         `json:"id"`
	MixerLineID ID         `json:"mixer_line_id"`
	SortKey     SortKey    `json:"sort_key"`
	Type        EffectType `json:"type"`
	Send        EffectSend `json:"send"`
}

// ChannelID names a speaker channel position.
type ChannelID uint8

const (
	ChannelFrontLeft   ChannelID = 1
	ChannelFrontRight  ChannelID = 2
	ChannelFrontCenter ChannelID = 3
)

// ChannelLayout describes the project's output channel arrangement.
type ChannelLayout struct {
	Name     string      `json:"name"`
	Channels []ChannelID `json:"channels"`
}

// Equal reports whether two layouts are identical.
func (l ChannelLayout) Equal(other ChannelLayout) bool {
	if l.Name != other.Name || len(l.Channels) != len(other.Channels) {
		return false
	}
	for i, c := range l.Channels {
		if other.Channels[i] != c {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (l ChannelLayout) Clone() ChannelLayout {
	cp := l
	cp.Channels = append([]ChannelID(nil), l.Channels...)
	return cp
}

// LayoutStereo is the default project channel layout.
func LayoutStereo() ChannelLayout {
	return ChannelLayout{Name: "Stereo", Channels: []ChannelID{ChannelFrontLeft, ChannelFrontRight}}
}

// LayoutMono is the single-channel layout.
func LayoutMono() ChannelLayout {
	return ChannelLayout{Name: "Mono", Channels: []ChannelID{ChannelFrontCenter}}
}

// Tags holds the project's descriptive metadata.
type Tags struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	AlbumArtist string `json:"album_artist"`
	Album       string `json:"album"`
	Year        int32  `json:"year"`
}

// DefaultSampleRate is used for newly created projects.
const DefaultSampleRate = 44100
