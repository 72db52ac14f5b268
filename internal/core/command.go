package core

import (
	"fmt"
	"sort"

	"reelcore/internal/oplog"
	"reelcore/pkg/domain"
)

// CommandType tags the closed set of command variants. Values are part of
// the project file format and must never be renumbered.
type CommandType int32

const (
	CommandInvalid CommandType = iota
	CommandUndo
	CommandRedo
	CommandAddTrack
	CommandDeleteTrack
	CommandAddAudioClip
	CommandAddAudioClipSegment
	CommandChangeSampleRate
	CommandChangeChannelLayout
)

// String names the command type for logs and errors.
func (t CommandType) String() string {
	switch t {
	case CommandUndo:
		return "undo"
	case CommandRedo:
		return "redo"
	case CommandAddTrack:
		return "add_track"
	case CommandDeleteTrack:
		return "delete_track"
	case CommandAddAudioClip:
		return "add_audio_clip"
	case CommandAddAudioClipSegment:
		return "add_audio_clip_segment"
	case CommandChangeSampleRate:
		return "change_sample_rate"
	case CommandChangeChannelLayout:
		return "change_channel_layout"
	default:
		return "invalid"
	}
}

// Command is one unit of change in the project history. Commands carry
// authorship and ordering metadata, apply and reverse their own effect
// against the live entity maps, and encode themselves for the durable log.
//
// Redo and Undo are only invoked through the documented protocol: Redo once
// when the command is performed or re-done, Undo only after a matching Redo.
// Both receive the open batch so a variant can stage side effects that must
// commit atomically with the command record itself.
type Command interface {
	Redo(p *Project, batch oplog.Batch) error
	Undo(p *Project, batch oplog.Batch) error
	Description() string
	Type() CommandType
	ID() domain.ID
	UserID() domain.ID
	Revision() int64
	serialize(e *cmdEncoder)
	deserialize(d *cmdDecoder) error
	base() *commandBase
}

// commandBase holds the serialized fields every variant shares.
type commandBase struct {
	id       domain.ID
	userID   domain.ID
	revision int64
}

func (b *commandBase) base() *commandBase { return b }

// ID returns the command's unique identifier.
func (b *commandBase) ID() domain.ID { return b.id }

// UserID returns the author of the command.
func (b *commandBase) UserID() domain.ID { return b.userID }

// Revision returns the command's position in the project history.
func (b *commandBase) Revision() int64 { return b.revision }

func (b *commandBase) serializeBase(e *cmdEncoder) {
	e.putID(b.id)
	e.putID(b.userID)
	e.putInt64(b.revision)
}

func (b *commandBase) deserializeBase(d *cmdDecoder) {
	b.id = d.id("command id")
	b.userID = d.id("user id")
	b.revision = d.int64("revision")
}

// newCommandBase stamps authorship, ordering, and identity onto a new command.
func (p *Project) newCommandBase() commandBase {
	return commandBase{
		id:       p.ids.NewID(),
		userID:   p.activeUser.ID,
		revision: p.nextRevision(),
	}
}

// EncodeCommand renders a command into its durable wire form.
func EncodeCommand(c Command) []byte {
	e := &cmdEncoder{}
	e.putInt32(int32(c.Type()))
	c.base().serializeBase(e)
	c.serialize(e)
	return e.bytes()
}

// SerializedSize reports the number of bytes the command occupies on disk.
func SerializedSize(c Command) int { return len(EncodeCommand(c)) }

// DecodeCommand parses a durable command record. Truncated or malformed
// input is rejected with a domain.ErrCorruption error.
func DecodeCommand(buf []byte) (Command, error) {
	d := newCmdDecoder(buf)
	typ := CommandType(d.int32("type tag"))
	if err := d.err(); err != nil {
		return nil, err
	}
	var c Command
	switch typ {
	case CommandUndo:
		c = &UndoCommand{}
	case CommandRedo:
		c = &RedoCommand{}
	case CommandAddTrack:
		c = &AddTrackCommand{}
	case CommandDeleteTrack:
		c = &DeleteTrackCommand{}
	case CommandAddAudioClip:
		c = &AddAudioClipCommand{}
	case CommandAddAudioClipSegment:
		c = &AddAudioClipSegmentCommand{}
	case CommandChangeSampleRate:
		c = &ChangeSampleRateCommand{}
	case CommandChangeChannelLayout:
		c = &ChangeChannelLayoutCommand{}
	default:
		return nil, fmt.Errorf("unknown command type %d: %w", typ, domain.ErrCorruption)
	}
	c.base().deserializeBase(d)
	if err := c.deserialize(d); err != nil {
		return nil, err
	}
	return c, nil
}

// AddTrackCommand inserts a new empty track at the given sort key.
type AddTrackCommand struct {
	commandBase
	TrackID domain.ID
	Name    string
	SortKey domain.SortKey
}

// NewAddTrackCommand allocates the track identity up front so redo after
// undo reinstates the identical track.
func (p *Project) NewAddTrackCommand(name string, key domain.SortKey) *AddTrackCommand {
	return &AddTrackCommand{
		commandBase: p.newCommandBase(),
		TrackID:     p.ids.NewID(),
		Name:        name,
		SortKey:     key.Clone(),
	}
}

func (c *AddTrackCommand) Description() string { return "Insert Track" }
func (c *AddTrackCommand) Type() CommandType   { return CommandAddTrack }

func (c *AddTrackCommand) Redo(p *Project, _ oplog.Batch) error {
	if !domain.ValidSortKey(c.SortKey) {
		return fmt.Errorf("add track %s: malformed sort key: %w", c.Name, domain.ErrInvalidArgument)
	}
	p.putTrack(domain.Track{ID: c.TrackID, Name: c.Name, SortKey: c.SortKey.Clone()})
	return nil
}

func (c *AddTrackCommand) Undo(p *Project, _ oplog.Batch) error {
	p.dropTrack(c.TrackID)
	return nil
}

func (c *AddTrackCommand) serialize(e *cmdEncoder) {
	e.putID(c.TrackID)
	e.putString(c.Name)
	e.putSortKey(c.SortKey)
}

func (c *AddTrackCommand) deserialize(d *cmdDecoder) error {
	c.TrackID = d.id("track id")
	c.Name = d.string("track name")
	c.SortKey = d.sortKey("track sort key")
	return d.done()
}

// DeleteTrackCommand removes a track. The command payload snapshots the
// track and every segment it owned so undo restores them with identical
// identity and attributes.
type DeleteTrackCommand struct {
	commandBase
	Track    domain.Track
	Segments []domain.AudioClipSegment
}

// NewDeleteTrackCommand snapshots the live track and its segments.
func (p *Project) NewDeleteTrackCommand(track domain.Track) *DeleteTrackCommand {
	segments := make([]domain.AudioClipSegment, 0)
	for _, seg := range p.segments {
		if seg.TrackID == track.ID {
			segments = append(segments, seg)
		}
	}
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].ID.Compare(segments[j].ID) < 0
	})
	return &DeleteTrackCommand{
		commandBase: p.newCommandBase(),
		Track:       domain.Track{ID: track.ID, Name: track.Name, SortKey: track.SortKey.Clone()},
		Segments:    segments,
	}
}

func (c *DeleteTrackCommand) Description() string { return "Delete Track" }
func (c *DeleteTrackCommand) Type() CommandType   { return CommandDeleteTrack }

func (c *DeleteTrackCommand) Redo(p *Project, _ oplog.Batch) error {
	if _, ok := p.tracks[c.Track.ID]; !ok {
		return fmt.Errorf("delete track: track %s missing: %w", c.Track.ID, domain.ErrCorruption)
	}
	for _, seg := range c.Segments {
		p.dropSegment(seg.ID)
	}
	p.dropTrack(c.Track.ID)
	return nil
}

func (c *DeleteTrackCommand) Undo(p *Project, _ oplog.Batch) error {
	p.putTrack(c.Track)
	for _, seg := range c.Segments {
		p.putSegment(seg)
	}
	return nil
}

func (c *DeleteTrackCommand) serialize(e *cmdEncoder) {
	e.putID(c.Track.ID)
	e.putString(c.Track.Name)
	e.putSortKey(c.Track.SortKey)
	e.putUint32(uint32(len(c.Segments)))
	for _, seg := range c.Segments {
		e.putID(seg.ID)
		e.putID(seg.AudioClipID)
		e.putInt64(seg.Start)
		e.putInt64(seg.End)
		e.putFloat64(seg.Pos)
	}
}

// segmentWireSize is the encoded size of one segment: two ids plus start,
// end and pos.
const segmentWireSize = 2*domain.IDSize + 3*8

func (c *DeleteTrackCommand) deserialize(d *cmdDecoder) error {
	c.Track.ID = d.id("track id")
	c.Track.Name = d.string("track name")
	c.Track.SortKey = d.sortKey("track sort key")
	n := d.count("segment count", segmentWireSize)
	if err := d.err(); err != nil {
		return err
	}
	c.Segments = make([]domain.AudioClipSegment, 0, n)
	for i := uint32(0); i < n; i++ {
		seg := domain.AudioClipSegment{
			ID:          d.id("segment id"),
			AudioClipID: d.id("segment clip id"),
			TrackID:     c.Track.ID,
			Start:       d.int64("segment start"),
			End:         d.int64("segment end"),
			Pos:         d.float64("segment pos"),
		}
		if d.err() != nil {
			break
		}
		c.Segments = append(c.Segments, seg)
	}
	return d.done()
}

// AddAudioClipCommand binds a named clip to an imported audio asset.
type AddAudioClipCommand struct {
	commandBase
	AudioClipID  domain.ID
	AudioAssetID domain.ID
	Name         string
}

// NewAddAudioClipCommand allocates the clip identity for the given asset.
func (p *Project) NewAddAudioClipCommand(asset domain.AudioAsset, name string) *AddAudioClipCommand {
	return &AddAudioClipCommand{
		commandBase:  p.newCommandBase(),
		AudioClipID:  p.ids.NewID(),
		AudioAssetID: asset.ID,
		Name:         name,
	}
}

func (c *AddAudioClipCommand) Description() string { return "Add Audio Clip" }
func (c *AddAudioClipCommand) Type() CommandType   { return CommandAddAudioClip }

func (c *AddAudioClipCommand) Redo(p *Project, _ oplog.Batch) error {
	if _, ok := p.assets[c.AudioAssetID]; !ok {
		return fmt.Errorf("add audio clip %s: audio asset %s missing: %w", c.Name, c.AudioAssetID, domain.ErrCorruption)
	}
	p.putClip(domain.AudioClip{ID: c.AudioClipID, AudioAssetID: c.AudioAssetID, Name: c.Name})
	return nil
}

func (c *AddAudioClipCommand) Undo(p *Project, _ oplog.Batch) error {
	p.dropClip(c.AudioClipID)
	return nil
}

func (c *AddAudioClipCommand) serialize(e *cmdEncoder) {
	e.putID(c.AudioClipID)
	e.putID(c.AudioAssetID)
	e.putString(c.Name)
}

func (c *AddAudioClipCommand) deserialize(d *cmdDecoder) error {
	c.AudioClipID = d.id("clip id")
	c.AudioAssetID = d.id("asset id")
	c.Name = d.string("clip name")
	return d.done()
}

// AddAudioClipSegmentCommand places a slice of a clip on a track.
type AddAudioClipSegmentCommand struct {
	commandBase
	SegmentID   domain.ID
	AudioClipID domain.ID
	TrackID     domain.ID
	Start       int64
	End         int64
	Pos         float64
}

// NewAddAudioClipSegmentCommand allocates the segment identity.
func (p *Project) NewAddAudioClipSegmentCommand(clipID, trackID domain.ID, start, end int64, pos float64) *AddAudioClipSegmentCommand {
	return &AddAudioClipSegmentCommand{
		commandBase: p.newCommandBase(),
		SegmentID:   p.ids.NewID(),
		AudioClipID: clipID,
		TrackID:     trackID,
		Start:       start,
		End:         end,
		Pos:         pos,
	}
}

func (c *AddAudioClipSegmentCommand) Description() string { return "Add Audio Clip Segment" }
func (c *AddAudioClipSegmentCommand) Type() CommandType   { return CommandAddAudioClipSegment }

func (c *AddAudioClipSegmentCommand) segment() domain.AudioClipSegment {
	return domain.AudioClipSegment{
		ID:          c.SegmentID,
		AudioClipID: c.AudioClipID,
		TrackID:     c.TrackID,
		Start:       c.Start,
		End:         c.End,
		Pos:         c.Pos,
	}
}

func (c *AddAudioClipSegmentCommand) Redo(p *Project, _ oplog.Batch) error {
	seg := c.segment()
	if err := seg.Validate(); err != nil {
		return err
	}
	if _, ok := p.clips[c.AudioClipID]; !ok {
		return fmt.Errorf("add segment: audio clip %s missing: %w", c.AudioClipID, domain.ErrCorruption)
	}
	if _, ok := p.tracks[c.TrackID]; !ok {
		return fmt.Errorf("add segment: track %s missing: %w", c.TrackID, domain.ErrCorruption)
	}
	p.putSegment(seg)
	return nil
}

func (c *AddAudioClipSegmentCommand) Undo(p *Project, _ oplog.Batch) error {
	p.dropSegment(c.SegmentID)
	return nil
}

func (c *AddAudioClipSegmentCommand) serialize(e *cmdEncoder) {
	e.putID(c.SegmentID)
	e.putID(c.AudioClipID)
	e.putID(c.TrackID)
	e.putInt64(c.Start)
	e.putInt64(c.End)
	e.putFloat64(c.Pos)
}

func (c *AddAudioClipSegmentCommand) deserialize(d *cmdDecoder) error {
	c.SegmentID = d.id("segment id")
	c.AudioClipID = d.id("clip id")
	c.TrackID = d.id("track id")
	c.Start = d.int64("start")
	c.End = d.int64("end")
	c.Pos = d.float64("pos")
	return d.done()
}

// ChangeSampleRateCommand swaps the project sample rate.
type ChangeSampleRateCommand struct {
	commandBase
	OldSampleRate int32
	NewSampleRate int32
}

// NewChangeSampleRateCommand captures the current rate as the undo target.
func (p *Project) NewChangeSampleRateCommand(sampleRate int32) *ChangeSampleRateCommand {
	return &ChangeSampleRateCommand{
		commandBase:   p.newCommandBase(),
		OldSampleRate: p.sampleRate,
		NewSampleRate: sampleRate,
	}
}

func (c *ChangeSampleRateCommand) Description() string {
	return fmt.Sprintf("Change Sample Rate from %d to %d", c.OldSampleRate, c.NewSampleRate)
}
func (c *ChangeSampleRateCommand) Type() CommandType { return CommandChangeSampleRate }

func (c *ChangeSampleRateCommand) Redo(p *Project, _ oplog.Batch) error {
	if c.NewSampleRate <= 0 {
		return fmt.Errorf("sample rate %d: %w", c.NewSampleRate, domain.ErrInvalidArgument)
	}
	p.sampleRate = c.NewSampleRate
	return nil
}

func (c *ChangeSampleRateCommand) Undo(p *Project, _ oplog.Batch) error {
	p.sampleRate = c.OldSampleRate
	return nil
}

func (c *ChangeSampleRateCommand) serialize(e *cmdEncoder) {
	e.putInt32(c.OldSampleRate)
	e.putInt32(c.NewSampleRate)
}

func (c *ChangeSampleRateCommand) deserialize(d *cmdDecoder) error {
	c.OldSampleRate = d.int32("old sample rate")
	c.NewSampleRate = d.int32("new sample rate")
	return d.done()
}

// ChangeChannelLayoutCommand swaps the project channel layout.
type ChangeChannelLayoutCommand struct {
	commandBase
	OldLayout domain.ChannelLayout
	NewLayout domain.ChannelLayout
}

// NewChangeChannelLayoutCommand captures the current layout as the undo target.
func (p *Project) NewChangeChannelLayoutCommand(layout domain.ChannelLayout) *ChangeChannelLayoutCommand {
	return &ChangeChannelLayoutCommand{
		commandBase: p.newCommandBase(),
		OldLayout:   p.layout.Clone(),
		NewLayout:   layout.Clone(),
	}
}

func (c *ChangeChannelLayoutCommand) Description() string {
	return fmt.Sprintf("Change Channel Layout from %s to %s", c.OldLayout.Name, c.NewLayout.Name)
}
func (c *ChangeChannelLayoutCommand) Type() CommandType { return CommandChangeChannelLayout }

func (c *ChangeChannelLayoutCommand) Redo(p *Project, _ oplog.Batch) error {
	if len(c.NewLayout.Channels) == 0 {
		return fmt.Errorf("channel layout %q has no channels: %w", c.NewLayout.Name, domain.ErrInvalidArgument)
	}
	p.layout = c.NewLayout.Clone()
	return nil
}

func (c *ChangeChannelLayoutCommand) Undo(p *Project, _ oplog.Batch) error {
	p.layout = c.OldLayout.Clone()
	return nil
}

func (c *ChangeChannelLayoutCommand) serialize(e *cmdEncoder) {
	e.putLayout(c.OldLayout)
	e.putLayout(c.NewLayout)
}

func (c *ChangeChannelLayoutCommand) deserialize(d *cmdDecoder) error {
	c.OldLayout = d.layout("old layout")
	c.NewLayout = d.layout("new layout")
	return d.done()
}

// UndoCommand reverses a referenced prior command. It is a first-class log
// entry rather than a cursor move, so replaying the log alone reconstructs
// the final state and multiple observers of one log converge without
// exchanging undo-stack positions.
type UndoCommand struct {
	commandBase
	OtherID domain.ID

	other Command // transient, resolved lazily from the command map
}

// NewUndoCommand wraps the command to reverse.
func (p *Project) NewUndoCommand(other Command) *UndoCommand {
	return &UndoCommand{
		commandBase: p.newCommandBase(),
		OtherID:     other.ID(),
		other:       other,
	}
}

func (c *UndoCommand) Description() string { return "Undo" }
func (c *UndoCommand) Type() CommandType   { return CommandUndo }

func (c *UndoCommand) resolve(p *Project) (Command, error) {
	if c.other != nil {
		return c.other, nil
	}
	other, ok := p.commandsByID[c.OtherID]
	if !ok {
		return nil, fmt.Errorf("undo references unknown command %s: %w", c.OtherID, domain.ErrCorruption)
	}
	c.other = other
	return other, nil
}

func (c *UndoCommand) Redo(p *Project, batch oplog.Batch) error {
	other, err := c.resolve(p)
	if err != nil {
		return err
	}
	return other.Undo(p, batch)
}

func (c *UndoCommand) Undo(p *Project, batch oplog.Batch) error {
	other, err := c.resolve(p)
	if err != nil {
		return err
	}
	return other.Redo(p, batch)
}

func (c *UndoCommand) serialize(e *cmdEncoder) { e.putID(c.OtherID) }

func (c *UndoCommand) deserialize(d *cmdDecoder) error {
	c.OtherID = d.id("undone command id")
	return d.done()
}

// RedoCommand reapplies a referenced prior command; like UndoCommand it is
// logged as part of the audit trail.
type RedoCommand struct {
	commandBase
	OtherID domain.ID

	other Command
}

// NewRedoCommand wraps the command to reapply.
func (p *Project) NewRedoCommand(other Command) *RedoCommand {
	return &RedoCommand{
		commandBase: p.newCommandBase(),
		OtherID:     other.ID(),
		other:       other,
	}
}

func (c *RedoCommand) Description() string { return "Redo" }
func (c *RedoCommand) Type() CommandType   { return CommandRedo }

func (c *RedoCommand) resolve(p *Project) (Command, error) {
	if c.other != nil {
		return c.other, nil
	}
	other, ok := p.commandsByID[c.OtherID]
	if !ok {
		return nil, fmt.Errorf("redo references unknown command %s: %w", c.OtherID, domain.ErrCorruption)
	}
	c.other = other
	return other, nil
}

func (c *RedoCommand) Redo(p *Project, batch oplog.Batch) error {
	other, err := c.resolve(p)
	if err != nil {
		return err
	}
	return other.Redo(p, batch)
}

func (c *RedoCommand) Undo(p *Project, batch oplog.Batch) error {
	other, err := c.resolve(p)
	if err != nil {
		return err
	}
	return other.Undo(p, batch)
}

func (c *RedoCommand) serialize(e *cmdEncoder) { e.putID(c.OtherID) }

func (c *RedoCommand) deserialize(d *cmdDecoder) error {
	c.OtherID = d.id("redone command id")
	return d.done()
}
