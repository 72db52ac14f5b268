package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"reelcore/internal/oplog"
	"reelcore/pkg/domain"
)

func trackNames(p *Project) []string {
	list := p.TrackList()
	names := make([]string, len(list))
	for i, tr := range list {
		names[i] = tr.Name
	}
	return names
}

func wantTracks(t *testing.T, p *Project, want ...string) {
	t.Helper()
	got := trackNames(p)
	if len(got) != len(want) {
		t.Fatalf("track list %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("track list %v, want %v", got, want)
		}
	}
}

func TestCreateSeedsMasterMixerLine(t *testing.T) {
	p := newTestProject(t)
	master := p.MasterMixerLine()
	if master.Name != "Master" || master.Volume != 1.0 {
		t.Fatalf("unexpected master line: %+v", master)
	}
	lines := p.MixerLineList()
	if len(lines) != 1 || lines[0].ID != master.ID {
		t.Fatalf("unexpected mixer line list: %+v", lines)
	}
	effects := p.MixerLineEffects(master.ID)
	if len(effects) != 1 || effects[0].Type != domain.EffectTypeSend {
		t.Fatalf("unexpected master effect chain: %+v", effects)
	}
	if p.SampleRate() != domain.DefaultSampleRate {
		t.Fatalf("sample rate = %d", p.SampleRate())
	}
	if !p.ChannelLayout().Equal(domain.LayoutStereo()) {
		t.Fatalf("layout = %+v", p.ChannelLayout())
	}
}

func TestInsertTrackOrdering(t *testing.T) {
	p := newTestProject(t)
	drums, err := p.AppendTrack("Drums")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	bass, err := p.AppendTrack("Bass")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	wantTracks(t, p, "Drums", "Bass")

	if _, err := p.InsertTrack("Percussion", &drums, &bass); err != nil {
		t.Fatalf("insert: %v", err)
	}
	wantTracks(t, p, "Drums", "Percussion", "Bass")

	if _, err := p.InsertTrack("Count-in", nil, &drums); err != nil {
		t.Fatalf("insert front: %v", err)
	}
	wantTracks(t, p, "Count-in", "Drums", "Percussion", "Bass")
}

func TestUndoRedoInverse(t *testing.T) {
	p := newTestProject(t)
	if p.CanUndo() || p.CanRedo() {
		t.Fatalf("fresh project should have empty undo stack")
	}
	if _, err := p.AppendTrack("Drums"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := p.AppendTrack("Bass"); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := p.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	wantTracks(t, p, "Drums")
	if !p.CanRedo() {
		t.Fatalf("expected CanRedo after undo")
	}

	if err := p.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	wantTracks(t, p, "Drums", "Bass")

	// undo and redo are logged commands, not cursor moves
	history := p.CommandList()
	if len(history) != 4 {
		t.Fatalf("history length %d, want 4", len(history))
	}
	if history[2].Type() != CommandUndo || history[3].Type() != CommandRedo {
		t.Fatalf("history types: %s, %s", history[2].Type(), history[3].Type())
	}
	if p.Revision() != 4 {
		t.Fatalf("revision = %d, want 4", p.Revision())
	}
}

func TestUndoRedoAtStackEndsAreNoOps(t *testing.T) {
	p := newTestProject(t)
	if err := p.Undo(); err != nil {
		t.Fatalf("undo on empty stack: %v", err)
	}
	if err := p.Redo(); err != nil {
		t.Fatalf("redo on empty stack: %v", err)
	}
	if p.Revision() != 0 {
		t.Fatalf("no-op undo/redo logged a command, revision %d", p.Revision())
	}
}

func TestPerformAfterUndoTruncatesRedoTail(t *testing.T) {
	p := newTestProject(t)
	if _, err := p.AppendTrack("A"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := p.AppendTrack("B"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := p.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := p.AppendTrack("C"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if p.CanRedo() {
		t.Fatalf("redo tail should be discarded by a new command")
	}
	wantTracks(t, p, "A", "C")

	if err := p.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if err := p.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	wantTracks(t, p)
	if p.CanUndo() {
		t.Fatalf("expected empty undo stack")
	}
}

func TestDeleteTrackRestoresSegmentsOnUndo(t *testing.T) {
	p := newTestProject(t)
	dir := t.TempDir()
	wav := writeTestWAV(t, filepath.Join(dir, "kick.wav"), 44100, 2, 1000)
	asset, err := p.AddAudioAsset(wav)
	if err != nil {
		t.Fatalf("add asset: %v", err)
	}
	clip, err := p.AddAudioClip(asset.ID, "kick")
	if err != nil {
		t.Fatalf("add clip: %v", err)
	}
	track, err := p.AppendTrack("Drums")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	seg, err := p.AddAudioClipSegment(clip.ID, track.ID, 0, 1000, 0)
	if err != nil {
		t.Fatalf("add segment: %v", err)
	}

	if err := p.DeleteTrack(track.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	wantTracks(t, p)
	if got := p.TrackSegments(track.ID); len(got) != 0 {
		t.Fatalf("segments survived delete: %+v", got)
	}

	if err := p.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	wantTracks(t, p, "Drums")
	restored := p.TrackSegments(track.ID)
	if len(restored) != 1 || restored[0].ID != seg.ID || restored[0].End != 1000 {
		t.Fatalf("segments not restored: %+v", restored)
	}
}

func TestSampleRateAndLayoutCommands(t *testing.T) {
	p := newTestProject(t)
	if err := p.SetSampleRate(48000); err != nil {
		t.Fatalf("set sample rate: %v", err)
	}
	if p.SampleRate() != 48000 {
		t.Fatalf("sample rate = %d", p.SampleRate())
	}
	if err := p.SetChannelLayout(domain.LayoutMono()); err != nil {
		t.Fatalf("set layout: %v", err)
	}
	if !p.ChannelLayout().Equal(domain.LayoutMono()) {
		t.Fatalf("layout = %+v", p.ChannelLayout())
	}

	if err := p.Undo(); err != nil {
		t.Fatalf("undo layout: %v", err)
	}
	if !p.ChannelLayout().Equal(domain.LayoutStereo()) {
		t.Fatalf("layout after undo = %+v", p.ChannelLayout())
	}
	if err := p.Undo(); err != nil {
		t.Fatalf("undo rate: %v", err)
	}
	if p.SampleRate() != domain.DefaultSampleRate {
		t.Fatalf("sample rate after undo = %d", p.SampleRate())
	}

	if err := p.SetSampleRate(0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTrackListCacheIdentity(t *testing.T) {
	p := newTestProject(t)
	if _, err := p.AppendTrack("A"); err != nil {
		t.Fatalf("append: %v", err)
	}
	first := p.TrackList()
	second := p.TrackList()
	if &first[0] != &second[0] {
		t.Fatalf("clean reads rebuilt the track list")
	}
	if _, err := p.AppendTrack("B"); err != nil {
		t.Fatalf("append: %v", err)
	}
	third := p.TrackList()
	if len(third) != 2 {
		t.Fatalf("dirty read did not rebuild, len %d", len(third))
	}
}

func TestReplayReconstructsState(t *testing.T) {
	log := oplog.NewMemoryLog()
	ids := domain.NewSeededIDSource(11)
	p, err := Create("replay.reel", ids.NewID(), domain.User{Name: "alice"},
		WithLog(log), WithIDSource(ids))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	alice := p.ActiveUser()
	if _, err := p.AppendTrack("Drums"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := p.AppendTrack("Bass"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := p.SetSampleRate(96000); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := p.Undo(); err != nil { // back to default rate
		t.Fatalf("undo: %v", err)
	}
	wantRevision := p.Revision()
	wantTrackList := trackNames(p)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open("replay.reel", alice, WithLog(log))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if reopened.ID() != p.ID() {
		t.Fatalf("project id changed across reopen")
	}
	if reopened.Revision() != wantRevision {
		t.Fatalf("revision %d, want %d", reopened.Revision(), wantRevision)
	}
	got := trackNames(reopened)
	if fmt.Sprint(got) != fmt.Sprint(wantTrackList) {
		t.Fatalf("track list %v, want %v", got, wantTrackList)
	}
	if reopened.SampleRate() != domain.DefaultSampleRate {
		t.Fatalf("sample rate %d not restored by replayed undo", reopened.SampleRate())
	}
	if !reopened.CanRedo() {
		t.Fatalf("undo cursor not reconstructed: expected CanRedo")
	}
	if err := reopened.Redo(); err != nil {
		t.Fatalf("redo after reopen: %v", err)
	}
	if reopened.SampleRate() != 96000 {
		t.Fatalf("redo after reopen did not reapply: rate %d", reopened.SampleRate())
	}
	if len(reopened.UserList()) != 1 {
		t.Fatalf("user list %+v, want just alice", reopened.UserList())
	}
}

func TestReplayFromSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.reel")
	ids := domain.NewSeededIDSource(3)
	p, err := Create(path, ids.NewID(), domain.User{Name: "alice"}, WithIDSource(ids))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	alice := p.ActiveUser()
	if _, err := p.AppendTrack("Drums"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, alice)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	wantTracks(t, reopened, "Drums")
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.reel"), domain.User{Name: "bob"})
	if !errors.Is(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestOpenRegistersNewUser(t *testing.T) {
	log := oplog.NewMemoryLog()
	ids := domain.NewSeededIDSource(21)
	p, err := Create("multi.reel", ids.NewID(), domain.User{Name: "alice"},
		WithLog(log), WithIDSource(ids))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := p.AppendTrack("Drums"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = p.Close()

	q, err := Open("multi.reel", domain.User{Name: "bob"}, WithLog(log))
	if err != nil {
		t.Fatalf("open as bob: %v", err)
	}
	defer func() { _ = q.Close() }()
	users := q.UserList()
	if len(users) != 2 {
		t.Fatalf("user list %+v, want alice and bob", users)
	}
	if users[0].Name != "alice" || users[1].Name != "bob" {
		t.Fatalf("user order %+v", users)
	}
	if _, err := q.AppendTrack("Bass"); err != nil {
		t.Fatalf("append as bob: %v", err)
	}
	history := q.CommandList()
	last := history[len(history)-1]
	if last.UserID() != q.ActiveUser().ID {
		t.Fatalf("command not attributed to bob")
	}
}

type failingLog struct{ inner oplog.Log }

type failingBatch struct{}

func (failingBatch) Put(key, value []byte) {}
func (failingBatch) Commit() error         { return errors.New("disk full") }

func (l *failingLog) Begin() oplog.Batch                             { return failingBatch{} }
func (l *failingLog) Iterate(fn func(key, value []byte) error) error { return l.inner.Iterate(fn) }
func (l *failingLog) Close() error                                   { return l.inner.Close() }

func TestPerformRollsBackOnCommitFailure(t *testing.T) {
	p := newTestProject(t)
	if _, err := p.AppendTrack("A"); err != nil {
		t.Fatalf("append: %v", err)
	}
	rev := p.Revision()

	p.log = &failingLog{inner: p.log}
	key, err := domain.SortKeyBetween(nil, nil)
	if err != nil {
		t.Fatalf("sort key: %v", err)
	}
	if err := p.Perform(p.NewAddTrackCommand("B", key)); err == nil {
		t.Fatalf("expected commit failure")
	}
	wantTracks(t, p, "A")
	if p.Revision() != rev {
		t.Fatalf("revision advanced despite failed commit")
	}
	if p.CanRedo() {
		t.Fatalf("failed command left undo stack state behind")
	}
}

func TestPerformRejectsStaleRevision(t *testing.T) {
	p := newTestProject(t)
	key, err := domain.SortKeyBetween(nil, nil)
	if err != nil {
		t.Fatalf("sort key: %v", err)
	}
	stale := p.NewAddTrackCommand("A", key)
	if _, err := p.AppendTrack("B"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := p.Perform(stale); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for stale revision, got %v", err)
	}
}

func TestSegmentDurations(t *testing.T) {
	p := newTestProject(t)
	seg := domain.AudioClipSegment{Start: 0, End: 44100} // one second at the default rate
	if got := SegmentDurationFrames(seg); got != 44100 {
		t.Fatalf("frames = %d", got)
	}
	// at 120 BPM in 4/4, one second is half a whole note
	if got := p.SegmentDurationWholeNotes(seg); got != 0.5 {
		t.Fatalf("whole notes = %v", got)
	}
}

func TestTrackDurationWholeNotes(t *testing.T) {
	p := newTestProject(t)
	dir := t.TempDir()
	wav := writeTestWAV(t, filepath.Join(dir, "pad.wav"), 44100, 2, 44100)
	asset, err := p.AddAudioAsset(wav)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	clip, err := p.AddAudioClip(asset.ID, "pad")
	if err != nil {
		t.Fatalf("clip: %v", err)
	}
	track, err := p.AppendTrack("Pads")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	// two one-second segments: at pos 0 and pos 2 whole notes
	if _, err := p.AddAudioClipSegment(clip.ID, track.ID, 0, 44100, 0); err != nil {
		t.Fatalf("segment: %v", err)
	}
	if _, err := p.AddAudioClipSegment(clip.ID, track.ID, 0, 44100, 2); err != nil {
		t.Fatalf("segment: %v", err)
	}
	if got := p.TrackDurationWholeNotes(track.ID); got != 2.5 {
		t.Fatalf("track duration = %v", got)
	}
}

func TestEffectString(t *testing.T) {
	p := newTestProject(t)
	effects := p.MixerLineEffects(p.MasterMixerLine().ID)
	if len(effects) != 1 {
		t.Fatalf("effects: %+v", effects)
	}
	if got := p.EffectString(effects[0]); got != "Send to device 0 (gain 1.00)" {
		t.Fatalf("EffectString = %q", got)
	}
	unknown := effects[0]
	unknown.Type = domain.EffectType(42)
	if got := p.EffectString(unknown); got != "Unknown effect 42" {
		t.Fatalf("EffectString = %q", got)
	}
}
