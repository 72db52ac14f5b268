// Package core implements the reelcore document model: the project
// aggregate, its command history, and the derived views rendered from it.
//
// The command log is the single source of truth. Every live entity map is a
// projection of replaying the log in commit order; undo and redo are
// themselves logged commands, so the log alone reconstructs both the final
// state and the undo cursor. Mutation is single-writer: Perform, Undo and
// Redo must not be called concurrently on one Project.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"reelcore/internal/blob"
	"reelcore/internal/oplog"
	"reelcore/internal/osutil"
	"reelcore/pkg/domain"
)

const (
	headerKey   = "header"
	userPrefix  = "user/"
	assetPrefix = "asset/"
	cmdPrefix   = "cmd/"
)

func commandKey(revision int64) []byte {
	return []byte(fmt.Sprintf("%s%016x", cmdPrefix, revision))
}

// headerRecord is the first record written to a new project log. Everything that
// commands mutate starts from these values; everything else here is fixed
// for the project's lifetime.
type headerRecord struct {
	ProjectID         domain.ID            `json:"project_id"`
	MasterMixerLineID domain.ID            `json:"master_mixer_line_id"`
	SampleRate        int32                `json:"sample_rate"`
	ChannelLayout     domain.ChannelLayout `json:"channel_layout"`
	Tags              domain.Tags          `json:"tags"`
	MixerLines        []domain.MixerLine   `json:"mixer_lines"`
	Effects           []domain.Effect      `json:"effects"`
}

// Project aggregates the canonical entity maps, the command log, the
// per-file undo cursor, and the lazily rebuilt derived views.
type Project struct {
	// canonical data, shared among all users of the log
	id           domain.ID
	masterLineID domain.ID
	sampleRate   int32
	layout       domain.ChannelLayout
	tags         domain.Tags

	users        map[domain.ID]domain.User
	assets       map[domain.ID]domain.AudioAsset
	clips        map[domain.ID]domain.AudioClip
	tracks       map[domain.ID]domain.Track
	segments     map[domain.ID]domain.AudioClipSegment
	mixerLines   map[domain.ID]domain.MixerLine
	effects      map[domain.ID]domain.Effect
	commandsByID map[domain.ID]Command
	revision     int64

	// per-file state, not shared among users
	undoStack  []Command
	undoCursor int

	// prepared views of the data
	trackList          []domain.Track
	trackListDirty     bool
	userList           []domain.User
	userListDirty      bool
	commandList        []Command
	commandListDirty   bool
	assetList          []domain.AudioAsset
	assetListDirty     bool
	assetsByDigest     map[string]domain.ID
	clipList           []domain.AudioClip
	clipListDirty      bool
	mixerLineList      []domain.MixerLine
	mixerLineListDirty bool
	segmentsByTrack    map[domain.ID][]domain.AudioClipSegment
	segmentsDirty      bool
	effectsByLine      map[domain.ID][]domain.Effect
	effectsDirty       bool

	// transient state
	path        string
	log         oplog.Log
	activeUser  domain.User
	ids         *domain.IDSource
	decoder     AudioFileDecoder
	loadedAudio map[domain.ID]*AudioFile
	archive     blob.Store
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
}

// Option configures a Project at Create or Open time.
type Option func(*Project)

// WithLogger injects a structured logger.
func WithLogger(l Logger) Option { return func(p *Project) { p.logger = l } }

// WithMetricsRecorder injects an operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option { return func(p *Project) { p.metrics = m } }

// WithTracer injects an operation tracer.
func WithTracer(t Tracer) Option { return func(p *Project) { p.tracer = t } }

// WithIDSource injects the identifier generator, letting tests seed it.
func WithIDSource(s *domain.IDSource) Option { return func(p *Project) { p.ids = s } }

// WithLog injects the backing log, bypassing the environment-driven factory.
func WithLog(l oplog.Log) Option { return func(p *Project) { p.log = l } }

// WithAudioDecoder replaces the audio file decoder used on asset load.
func WithAudioDecoder(d AudioFileDecoder) Option { return func(p *Project) { p.decoder = d } }

// WithSampleArchive attaches a content-addressed archive that imported
// audio bytes are copied into.
func WithSampleArchive(s blob.Store) Option { return func(p *Project) { p.archive = s } }

func newProject(path string) *Project {
	return &Project{
		users:          make(map[domain.ID]domain.User),
		assets:         make(map[domain.ID]domain.AudioAsset),
		clips:          make(map[domain.ID]domain.AudioClip),
		tracks:         make(map[domain.ID]domain.Track),
		segments:       make(map[domain.ID]domain.AudioClipSegment),
		mixerLines:     make(map[domain.ID]domain.MixerLine),
		effects:        make(map[domain.ID]domain.Effect),
		commandsByID:   make(map[domain.ID]Command),
		assetsByDigest: make(map[string]domain.ID),
		loadedAudio:    make(map[domain.ID]*AudioFile),
		path:           path,
		logger:         noopLogger{},
		metrics:        noopMetricsRecorder{},
		tracer:         noopTracer{},
	}
}

func (p *Project) finishInit() error {
	if p.ids == nil {
		ids, err := domain.NewIDSource(domain.RandomQualityRobust)
		if err != nil {
			return err
		}
		p.ids = ids
	}
	if p.decoder == nil {
		p.decoder = WAVDecoder{}
	}
	if p.log == nil {
		log, err := oplog.Open(p.path)
		if err != nil {
			return err
		}
		p.log = log
	}
	return nil
}

// Create initializes a new project file at path with the given identity and
// active user. The user's id is assigned when zero.
func Create(path string, id domain.ID, user domain.User, opts ...Option) (*Project, error) {
	p := newProject(path)
	for _, opt := range opts {
		opt(p)
	}
	if err := p.finishInit(); err != nil {
		return nil, err
	}
	if user.ID.IsZero() {
		user.ID = p.ids.NewID()
	}
	p.id = id
	p.sampleRate = domain.DefaultSampleRate
	p.layout = domain.LayoutStereo()

	masterKey, err := domain.SortKeyBetween(nil, nil)
	if err != nil {
		return nil, err
	}
	master := domain.MixerLine{ID: p.ids.NewID(), Name: "Master", SortKey: masterKey, Volume: 1.0}
	sendKey, err := domain.SortKeyBetween(nil, nil)
	if err != nil {
		return nil, err
	}
	send := domain.Effect{
		ID:          p.ids.NewID(),
		MixerLineID: master.ID,
		SortKey:     sendKey,
		Type:        domain.EffectTypeSend,
		Send:        domain.EffectSend{Gain: 1.0, DeviceID: 0},
	}
	p.masterLineID = master.ID
	p.mixerLines[master.ID] = master
	p.effects[send.ID] = send
	p.mixerLineListDirty = true
	p.effectsDirty = true

	header := headerRecord{
		ProjectID:         p.id,
		MasterMixerLineID: p.masterLineID,
		SampleRate:        p.sampleRate,
		ChannelLayout:     p.layout,
		MixerLines:        []domain.MixerLine{master},
		Effects:           []domain.Effect{send},
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	userBytes, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	batch := p.log.Begin()
	batch.Put([]byte(headerKey), headerBytes)
	batch.Put([]byte(userPrefix+user.ID.String()), userBytes)
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("initialize project: %w", err)
	}
	p.users[user.ID] = user
	p.userListDirty = true
	p.activeUser = user
	p.logger.Info("project created", "path", path, "project_id", p.id.String(), "user", user.Name)
	return p, nil
}

// Open loads the project file at path, replays all committed commands to
// rebuild the canonical maps, and registers user as the active author if
// the log has not seen them before.
func Open(path string, user domain.User, opts ...Option) (*Project, error) {
	p := newProject(path)
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		if drv := os.Getenv("REELCORE_LOG_DRIVER"); drv == "" || drv == string(oplog.DriverSQLite) {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("project file %s: %w", path, osutil.Classify(err))
			}
		}
	}
	if err := p.finishInit(); err != nil {
		return nil, err
	}
	if err := p.observe("open", p.replay); err != nil {
		return nil, err
	}
	if user.ID.IsZero() {
		user.ID = p.ids.NewID()
	}
	if _, known := p.users[user.ID]; !known {
		userBytes, err := json.Marshal(user)
		if err != nil {
			return nil, fmt.Errorf("encode user: %w", err)
		}
		batch := p.log.Begin()
		batch.Put([]byte(userPrefix+user.ID.String()), userBytes)
		if err := batch.Commit(); err != nil {
			return nil, fmt.Errorf("register user: %w", err)
		}
		p.users[user.ID] = user
		p.userListDirty = true
	}
	p.activeUser = user
	p.logger.Info("project opened", "path", path,
		"project_id", p.id.String(), "commands", len(p.commandsByID), "user", user.Name)
	return p, nil
}

// Close releases the backing log. The Project must not be used afterwards.
func (p *Project) Close() error {
	return p.log.Close()
}

// replay rebuilds canonical state from the log. Records are buffered first
// because key order interleaves user and asset records after command
// records, while commands may reference either.
func (p *Project) replay() error {
	var headerBytes []byte
	var cmdRecords [][]byte
	empty := true
	err := p.log.Iterate(func(key, value []byte) error {
		empty = false
		k := string(key)
		switch {
		case k == headerKey:
			headerBytes = append([]byte(nil), value...)
		case bytes.HasPrefix(key, []byte(userPrefix)):
			var u domain.User
			if err := json.Unmarshal(value, &u); err != nil {
				return fmt.Errorf("decode user record %s: %v: %w", k, err, domain.ErrCorruption)
			}
			p.users[u.ID] = u
		case bytes.HasPrefix(key, []byte(assetPrefix)):
			var a domain.AudioAsset
			if err := json.Unmarshal(value, &a); err != nil {
				return fmt.Errorf("decode asset record %s: %v: %w", k, err, domain.ErrCorruption)
			}
			p.assets[a.ID] = a
			p.assetsByDigest[a.Digest] = a.ID
		case bytes.HasPrefix(key, []byte(cmdPrefix)):
			cmdRecords = append(cmdRecords, append([]byte(nil), value...))
		default:
			return fmt.Errorf("unknown record key %q: %w", k, domain.ErrCorruption)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if empty {
		return fmt.Errorf("project file %s is empty: %w", p.path, domain.ErrFileNotFound)
	}
	if headerBytes == nil {
		return fmt.Errorf("project file %s has no header record: %w", p.path, domain.ErrCorruption)
	}
	var header headerRecord
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return fmt.Errorf("decode header: %v: %w", err, domain.ErrCorruption)
	}
	p.id = header.ProjectID
	p.masterLineID = header.MasterMixerLineID
	p.sampleRate = header.SampleRate
	p.layout = header.ChannelLayout
	p.tags = header.Tags
	for _, line := range header.MixerLines {
		p.mixerLines[line.ID] = line
	}
	for _, effect := range header.Effects {
		p.effects[effect.ID] = effect
	}
	if _, ok := p.mixerLines[p.masterLineID]; !ok {
		return fmt.Errorf("master mixer line %s missing: %w", p.masterLineID, domain.ErrCorruption)
	}
	p.userListDirty = true
	p.assetListDirty = true
	p.mixerLineListDirty = true
	p.effectsDirty = true

	for i, record := range cmdRecords {
		cmd, err := DecodeCommand(record)
		if err != nil {
			return err
		}
		if got, want := cmd.Revision(), int64(i+1); got != want {
			return fmt.Errorf("command revision %d out of order (want %d): %w", got, want, domain.ErrCorruption)
		}
		if _, ok := p.users[cmd.UserID()]; !ok {
			return fmt.Errorf("command %s authored by unknown user %s: %w",
				cmd.ID(), cmd.UserID(), domain.ErrCorruption)
		}
		if err := p.applyReplayed(cmd); err != nil {
			return err
		}
	}
	return nil
}

// applyReplayed folds one logged command into live state, reproducing the
// exact undo-stack bookkeeping Perform/Undo/Redo did when it was committed.
func (p *Project) applyReplayed(cmd Command) error {
	switch c := cmd.(type) {
	case *UndoCommand:
		if p.undoCursor == 0 {
			return fmt.Errorf("logged undo with empty undo stack: %w", domain.ErrCorruption)
		}
		if target := p.undoStack[p.undoCursor-1]; target.ID() != c.OtherID {
			return fmt.Errorf("logged undo targets %s, stack has %s: %w",
				c.OtherID, target.ID(), domain.ErrCorruption)
		}
		if err := c.Redo(p, nil); err != nil {
			return err
		}
		p.undoCursor--
	case *RedoCommand:
		if p.undoCursor >= len(p.undoStack) {
			return fmt.Errorf("logged redo with nothing to redo: %w", domain.ErrCorruption)
		}
		if target := p.undoStack[p.undoCursor]; target.ID() != c.OtherID {
			return fmt.Errorf("logged redo targets %s, stack has %s: %w",
				c.OtherID, target.ID(), domain.ErrCorruption)
		}
		if err := c.Redo(p, nil); err != nil {
			return err
		}
		p.undoCursor++
	default:
		if err := cmd.Redo(p, nil); err != nil {
			return err
		}
		p.undoStack = append(p.undoStack[:p.undoCursor], cmd)
		p.undoCursor = len(p.undoStack)
	}
	p.registerCommand(cmd)
	p.revision = cmd.Revision()
	return nil
}

func (p *Project) nextRevision() int64 { return p.revision + 1 }

func (p *Project) registerCommand(cmd Command) {
	p.commandsByID[cmd.ID()] = cmd
	p.commandListDirty = true
}

// commit runs the command's forward effect and makes it durable atomically.
// If persistence fails the live maps are rolled back, so the caller sees
// pre-call state.
func (p *Project) commit(cmd Command) error {
	batch := p.log.Begin()
	if err := cmd.Redo(p, batch); err != nil {
		return err
	}
	batch.Put(commandKey(cmd.Revision()), EncodeCommand(cmd))
	if err := batch.Commit(); err != nil {
		if uerr := cmd.Undo(p, nil); uerr != nil {
			// cannot restore in-memory invariants; continuing would corrupt
			p.logger.Error("rollback after failed commit failed", "error", uerr)
			panic(fmt.Sprintf("reelcore: rollback failed after commit error: %v (commit: %v)", uerr, err))
		}
		return fmt.Errorf("commit %s: %w", cmd.Type(), err)
	}
	p.registerCommand(cmd)
	p.revision = cmd.Revision()
	return nil
}

func (p *Project) observe(op string, fn func() error) error {
	span := p.tracer.Start(op)
	start := time.Now()
	err := fn()
	span.End(err)
	p.metrics.Observe(op, err == nil, time.Since(start))
	if err != nil {
		p.logger.Warn(op+" failed", "error", err)
	}
	return err
}

// Perform is the single mutation entry point. The command's forward effect
// and its log record commit atomically; the undo stack is truncated at the
// cursor, discarding any stale redo tail, before the command is pushed.
func (p *Project) Perform(cmd Command) error {
	return p.observe("perform", func() error {
		if cmd.Revision() != p.revision+1 {
			return fmt.Errorf("command revision %d does not extend history at %d: %w",
				cmd.Revision(), p.revision, domain.ErrInvalidArgument)
		}
		if err := p.commit(cmd); err != nil {
			return err
		}
		p.undoStack = append(p.undoStack[:p.undoCursor], cmd)
		p.undoCursor = len(p.undoStack)
		p.logger.Debug("command performed", "type", cmd.Type().String(),
			"revision", cmd.Revision(), "description", cmd.Description())
		return nil
	})
}

// Undo reverses the command at the cursor by logging an UndoCommand for it.
// No-op when the cursor is at the bottom of the stack.
func (p *Project) Undo() error {
	return p.observe("undo", func() error {
		if p.undoCursor == 0 {
			return nil
		}
		target := p.undoStack[p.undoCursor-1]
		if err := p.commit(p.NewUndoCommand(target)); err != nil {
			return err
		}
		p.undoCursor--
		return nil
	})
}

// Redo reapplies the next undone command by logging a RedoCommand for it.
// No-op when the cursor is at the top of the stack.
func (p *Project) Redo() error {
	return p.observe("redo", func() error {
		if p.undoCursor >= len(p.undoStack) {
			return nil
		}
		target := p.undoStack[p.undoCursor]
		if err := p.commit(p.NewRedoCommand(target)); err != nil {
			return err
		}
		p.undoCursor++
		return nil
	})
}

// CanUndo reports whether the cursor has commands beneath it.
func (p *Project) CanUndo() bool { return p.undoCursor > 0 }

// CanRedo reports whether undone commands remain above the cursor.
func (p *Project) CanRedo() bool { return p.undoCursor < len(p.undoStack) }

// ID returns the project identifier.
func (p *Project) ID() domain.ID { return p.id }

// Path returns the project file path.
func (p *Project) Path() string { return p.path }

// ActiveUser returns the author attached to new commands.
func (p *Project) ActiveUser() domain.User { return p.activeUser }

// Revision returns the revision of the most recent committed command.
func (p *Project) Revision() int64 { return p.revision }

// SampleRate returns the project sample rate in frames per second.
func (p *Project) SampleRate() int32 { return p.sampleRate }

// ChannelLayout returns the project output channel layout.
func (p *Project) ChannelLayout() domain.ChannelLayout { return p.layout.Clone() }

// Tags returns the project's descriptive metadata.
func (p *Project) Tags() domain.Tags { return p.tags }

// MasterMixerLine returns the master mix bus.
func (p *Project) MasterMixerLine() domain.MixerLine { return p.mixerLines[p.masterLineID] }

// entity map mutation helpers; every mutation marks the derived views it
// invalidates, an invariant each command's Redo and Undo relies on

func (p *Project) putTrack(t domain.Track) {
	p.tracks[t.ID] = t
	p.trackListDirty = true
}

func (p *Project) dropTrack(id domain.ID) {
	delete(p.tracks, id)
	p.trackListDirty = true
}

func (p *Project) putSegment(s domain.AudioClipSegment) {
	p.segments[s.ID] = s
	p.segmentsDirty = true
}

func (p *Project) dropSegment(id domain.ID) {
	delete(p.segments, id)
	p.segmentsDirty = true
}

func (p *Project) putClip(c domain.AudioClip) {
	p.clips[c.ID] = c
	p.clipListDirty = true
}

func (p *Project) dropClip(id domain.ID) {
	delete(p.clips, id)
	p.clipListDirty = true
}

// convenience mutators, the usual way callers drive the command machinery

// InsertTrack performs an AddTrack command with a sort key allocated
// between the two neighbor tracks (either may be nil for the ends).
func (p *Project) InsertTrack(name string, before, after *domain.Track) (domain.Track, error) {
	var lo, hi domain.SortKey
	if before != nil {
		lo = before.SortKey
	}
	if after != nil {
		hi = after.SortKey
	}
	key, err := domain.SortKeyBetween(lo, hi)
	if err != nil {
		return domain.Track{}, err
	}
	cmd := p.NewAddTrackCommand(name, key)
	if err := p.Perform(cmd); err != nil {
		return domain.Track{}, err
	}
	return p.tracks[cmd.TrackID], nil
}

// AppendTrack performs an AddTrack command ordering the track after every
// existing one.
func (p *Project) AppendTrack(name string) (domain.Track, error) {
	list := p.TrackList()
	var before *domain.Track
	if len(list) > 0 {
		before = &list[len(list)-1]
	}
	return p.InsertTrack(name, before, nil)
}

// DeleteTrack performs a DeleteTrack command for the given track.
func (p *Project) DeleteTrack(id domain.ID) error {
	track, ok := p.tracks[id]
	if !ok {
		return fmt.Errorf("track %s: %w", id, domain.ErrInvalidArgument)
	}
	return p.Perform(p.NewDeleteTrackCommand(track))
}

// AddAudioClip performs an AddAudioClip command binding a clip to asset.
func (p *Project) AddAudioClip(assetID domain.ID, name string) (domain.AudioClip, error) {
	asset, ok := p.assets[assetID]
	if !ok {
		return domain.AudioClip{}, fmt.Errorf("audio asset %s: %w", assetID, domain.ErrInvalidArgument)
	}
	cmd := p.NewAddAudioClipCommand(asset, name)
	if err := p.Perform(cmd); err != nil {
		return domain.AudioClip{}, err
	}
	return p.clips[cmd.AudioClipID], nil
}

// AddAudioClipSegment performs an AddAudioClipSegment command.
func (p *Project) AddAudioClipSegment(clipID, trackID domain.ID, start, end int64, pos float64) (domain.AudioClipSegment, error) {
	cmd := p.NewAddAudioClipSegmentCommand(clipID, trackID, start, end, pos)
	if err := p.Perform(cmd); err != nil {
		return domain.AudioClipSegment{}, err
	}
	return p.segments[cmd.SegmentID], nil
}

// SetSampleRate performs a ChangeSampleRate command.
func (p *Project) SetSampleRate(sampleRate int32) error {
	return p.Perform(p.NewChangeSampleRateCommand(sampleRate))
}

// SetChannelLayout performs a ChangeChannelLayout command.
func (p *Project) SetChannelLayout(layout domain.ChannelLayout) error {
	return p.Perform(p.NewChangeChannelLayoutCommand(layout))
}

// derived views: each accessor rebuilds its cached sequence only when a
// mutation marked it dirty, and otherwise returns the identical slice

// TrackList returns tracks ordered by sort key.
func (p *Project) TrackList() []domain.Track {
	if p.trackListDirty || p.trackList == nil {
		list := make([]domain.Track, 0, len(p.tracks))
		for _, t := range p.tracks {
			list = append(list, t)
		}
		sort.Slice(list, func(i, j int) bool {
			if c := list[i].SortKey.Compare(list[j].SortKey); c != 0 {
				return c < 0
			}
			return list[i].ID.Compare(list[j].ID) < 0
		})
		p.trackList = list
		p.trackListDirty = false
	}
	return p.trackList
}

// UserList returns users ordered by name.
func (p *Project) UserList() []domain.User {
	if p.userListDirty || p.userList == nil {
		list := make([]domain.User, 0, len(p.users))
		for _, u := range p.users {
			list = append(list, u)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Name != list[j].Name {
				return list[i].Name < list[j].Name
			}
			return list[i].ID.Compare(list[j].ID) < 0
		})
		p.userList = list
		p.userListDirty = false
	}
	return p.userList
}

// CommandList returns the full history ordered by revision.
func (p *Project) CommandList() []Command {
	if p.commandListDirty || p.commandList == nil {
		list := make([]Command, 0, len(p.commandsByID))
		for _, c := range p.commandsByID {
			list = append(list, c)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].Revision() < list[j].Revision()
		})
		p.commandList = list
		p.commandListDirty = false
	}
	return p.commandList
}

// AudioAssetList returns imported assets ordered by path.
func (p *Project) AudioAssetList() []domain.AudioAsset {
	if p.assetListDirty || p.assetList == nil {
		list := make([]domain.AudioAsset, 0, len(p.assets))
		for _, a := range p.assets {
			list = append(list, a)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Path != list[j].Path {
				return list[i].Path < list[j].Path
			}
			return list[i].ID.Compare(list[j].ID) < 0
		})
		p.assetList = list
		p.assetListDirty = false
	}
	return p.assetList
}

// AudioClipList returns clips ordered by name.
func (p *Project) AudioClipList() []domain.AudioClip {
	if p.clipListDirty || p.clipList == nil {
		list := make([]domain.AudioClip, 0, len(p.clips))
		for _, c := range p.clips {
			list = append(list, c)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Name != list[j].Name {
				return list[i].Name < list[j].Name
			}
			return list[i].ID.Compare(list[j].ID) < 0
		})
		p.clipList = list
		p.clipListDirty = false
	}
	return p.clipList
}

// MixerLineList returns mixer lines ordered by sort key.
func (p *Project) MixerLineList() []domain.MixerLine {
	if p.mixerLineListDirty || p.mixerLineList == nil {
		list := make([]domain.MixerLine, 0, len(p.mixerLines))
		for _, l := range p.mixerLines {
			list = append(list, l)
		}
		sort.Slice(list, func(i, j int) bool {
			if c := list[i].SortKey.Compare(list[j].SortKey); c != 0 {
				return c < 0
			}
			return list[i].ID.Compare(list[j].ID) < 0
		})
		p.mixerLineList = list
		p.mixerLineListDirty = false
	}
	return p.mixerLineList
}

func (p *Project) rebuildSegmentIndex() {
	if !p.segmentsDirty && p.segmentsByTrack != nil {
		return
	}
	index := make(map[domain.ID][]domain.AudioClipSegment)
	for _, seg := range p.segments {
		index[seg.TrackID] = append(index[seg.TrackID], seg)
	}
	for trackID := range index {
		segs := index[trackID]
		sort.Slice(segs, func(i, j int) bool {
			if segs[i].Pos != segs[j].Pos {
				return segs[i].Pos < segs[j].Pos
			}
			return segs[i].ID.Compare(segs[j].ID) < 0
		})
	}
	p.segmentsByTrack = index
	p.segmentsDirty = false
}

// TrackSegments returns the track's segments ordered by timeline position.
func (p *Project) TrackSegments(trackID domain.ID) []domain.AudioClipSegment {
	p.rebuildSegmentIndex()
	return p.segmentsByTrack[trackID]
}

func (p *Project) rebuildEffectIndex() {
	if !p.effectsDirty && p.effectsByLine != nil {
		return
	}
	index := make(map[domain.ID][]domain.Effect)
	for _, effect := range p.effects {
		index[effect.MixerLineID] = append(index[effect.MixerLineID], effect)
	}
	for lineID := range index {
		effects := index[lineID]
		sort.Slice(effects, func(i, j int) bool {
			if c := effects[i].SortKey.Compare(effects[j].SortKey); c != 0 {
				return c < 0
			}
			return effects[i].ID.Compare(effects[j].ID) < 0
		})
	}
	p.effectsByLine = index
	p.effectsDirty = false
}

// MixerLineEffects returns the line's effect chain in order.
func (p *Project) MixerLineEffects(lineID domain.ID) []domain.Effect {
	p.rebuildEffectIndex()
	return p.effectsByLine[lineID]
}

// DefaultBeatsPerMinute is the fixed project tempo until tempo automation
// exists. At 120 BPM in 4/4 a whole note lasts two seconds.
const DefaultBeatsPerMinute = 120.0

// SegmentDurationFrames returns the segment's length in audio frames.
func SegmentDurationFrames(seg domain.AudioClipSegment) int64 { return seg.End - seg.Start }

// SegmentDurationWholeNotes converts the segment's frame length into whole
// notes on the project timeline at the project sample rate and tempo.
func (p *Project) SegmentDurationWholeNotes(seg domain.AudioClipSegment) float64 {
	if p.sampleRate <= 0 {
		return 0
	}
	seconds := float64(SegmentDurationFrames(seg)) / float64(p.sampleRate)
	secondsPerWholeNote := 4.0 * 60.0 / DefaultBeatsPerMinute
	return seconds / secondsPerWholeNote
}

// TrackDurationWholeNotes returns the timeline position where the track's
// last segment ends, in whole notes.
func (p *Project) TrackDurationWholeNotes(trackID domain.ID) float64 {
	var end float64
	for _, seg := range p.TrackSegments(trackID) {
		if e := seg.Pos + p.SegmentDurationWholeNotes(seg); e > end {
			end = e
		}
	}
	return end
}

// EffectString renders an effect for display.
func (p *Project) EffectString(effect domain.Effect) string {
	switch effect.Type {
	case domain.EffectTypeSend:
		return fmt.Sprintf("Send to device %d (gain %.2f)", effect.Send.DeviceID, effect.Send.Gain)
	default:
		return fmt.Sprintf("Unknown effect %d", effect.Type)
	}
}
