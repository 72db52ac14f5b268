package core

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"reelcore/internal/blob"
	"reelcore/internal/osutil"
	"reelcore/pkg/domain"
)

// AudioFile is the decoded description of an imported audio asset.
type AudioFile struct {
	SampleRate   int32
	ChannelCount int32
	FrameCount   int64
}

// AudioFileDecoder inspects raw audio bytes. The default decoder reads
// canonical RIFF/WAVE headers; callers with richer format support inject
// their own via WithAudioDecoder.
type AudioFileDecoder interface {
	Decode(data []byte) (*AudioFile, error)
}

// WAVDecoder decodes canonical RIFF/WAVE files: a PCM fmt chunk followed
// by a data chunk.
type WAVDecoder struct{}

func (WAVDecoder) Decode(data []byte) (*AudioFile, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file: %w", domain.ErrCorruption)
	}
	var (
		sampleRate    int32
		channelCount  int32
		bitsPerSample int32
		dataSize      int64
		haveFmt       bool
		haveData      bool
	)
	off := 12
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+chunkSize > len(data) {
			return nil, fmt.Errorf("truncated %s chunk: %w", chunkID, domain.ErrCorruption)
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("short fmt chunk: %w", domain.ErrCorruption)
			}
			channelCount = int32(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int32(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int32(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			dataSize = int64(chunkSize)
			haveData = true
		}
		// chunks are word-aligned
		off = body + chunkSize + chunkSize%2
	}
	if !haveFmt || !haveData {
		return nil, fmt.Errorf("missing fmt or data chunk: %w", domain.ErrCorruption)
	}
	if channelCount <= 0 || sampleRate <= 0 || bitsPerSample <= 0 {
		return nil, fmt.Errorf("invalid wave format: %w", domain.ErrCorruption)
	}
	frameSize := int64(channelCount) * int64(bitsPerSample/8)
	if frameSize == 0 {
		return nil, fmt.Errorf("invalid wave frame size: %w", domain.ErrCorruption)
	}
	return &AudioFile{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		FrameCount:   dataSize / frameSize,
	}, nil
}

// AudioAssetDigest returns the hex content digest used as the dedup key.
func AudioAssetDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AddAudioAsset imports the audio file at path. Importing the same bytes
// twice, from any path, returns the already-registered asset instead of a
// new one. When a sample archive is attached the raw bytes are also copied
// into it under their digest.
func (p *Project) AddAudioAsset(path string) (domain.AudioAsset, error) {
	var asset domain.AudioAsset
	err := p.observe("add_audio_asset", func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("audio file %s: %w", path, osutil.Classify(err))
		}
		digest := AudioAssetDigest(data)
		if id, ok := p.assetsByDigest[digest]; ok {
			asset = p.assets[id]
			return nil
		}
		if _, err := p.decoder.Decode(data); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		asset = domain.AudioAsset{ID: p.ids.NewID(), Path: path, Digest: digest}
		record, err := json.Marshal(asset)
		if err != nil {
			return fmt.Errorf("encode asset: %w", err)
		}
		batch := p.log.Begin()
		batch.Put([]byte(assetPrefix+asset.ID.String()), record)
		if err := batch.Commit(); err != nil {
			return fmt.Errorf("persist asset: %w", err)
		}
		p.assets[asset.ID] = asset
		p.assetsByDigest[digest] = asset.ID
		p.assetListDirty = true
		if p.archive != nil {
			if _, err := p.archive.Put(context.Background(), archiveKey(digest), data, blob.PutOptions{
				ContentType: "application/octet-stream",
			}); err != nil {
				p.logger.Warn("sample archive put failed", "digest", digest, "error", err)
			}
		}
		p.logger.Debug("audio asset imported", "path", path, "digest", digest)
		return nil
	})
	return asset, err
}

func archiveKey(digest string) string { return "samples/" + digest }

// EnsureAudioAssetLoaded decodes the asset's file on first use and caches
// the result. When the original path is gone but a sample archive is
// attached, the bytes are restored from the archive.
func (p *Project) EnsureAudioAssetLoaded(id domain.ID) (*AudioFile, error) {
	if file, ok := p.loadedAudio[id]; ok {
		return file, nil
	}
	asset, ok := p.assets[id]
	if !ok {
		return nil, fmt.Errorf("audio asset %s: %w", id, domain.ErrInvalidArgument)
	}
	data, err := os.ReadFile(asset.Path)
	if err != nil {
		classified := osutil.Classify(err)
		if !errors.Is(classified, domain.ErrFileNotFound) || p.archive == nil {
			return nil, fmt.Errorf("audio asset %s: %w", asset.Path, classified)
		}
		restored, _, rerr := p.archive.Get(context.Background(), archiveKey(asset.Digest))
		if rerr != nil {
			return nil, fmt.Errorf("audio asset %s not on disk and not archived: %w", asset.Path, domain.ErrFileNotFound)
		}
		data = restored
	}
	if got := AudioAssetDigest(data); got != asset.Digest {
		return nil, fmt.Errorf("audio asset %s content changed (digest %s, recorded %s): %w",
			asset.Path, got, asset.Digest, domain.ErrCorruption)
	}
	file, err := p.decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	p.loadedAudio[id] = file
	return file, nil
}

// ArchiveAudioAsset copies the asset's bytes into the attached sample
// archive under their digest.
func (p *Project) ArchiveAudioAsset(ctx context.Context, id domain.ID) error {
	if p.archive == nil {
		return fmt.Errorf("no sample archive attached: %w", domain.ErrInvalidArgument)
	}
	asset, ok := p.assets[id]
	if !ok {
		return fmt.Errorf("audio asset %s: %w", id, domain.ErrInvalidArgument)
	}
	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return fmt.Errorf("audio asset %s: %w", asset.Path, osutil.Classify(err))
	}
	if got := AudioAssetDigest(data); got != asset.Digest {
		return fmt.Errorf("audio asset %s content changed (digest %s, recorded %s): %w",
			asset.Path, got, asset.Digest, domain.ErrCorruption)
	}
	_, err = p.archive.Put(ctx, archiveKey(asset.Digest), data, blob.PutOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// RestoreAudioAsset materializes an archived asset whose source path is
// missing into a samples directory next to the project file, and repoints
// the asset record at the restored copy.
func (p *Project) RestoreAudioAsset(ctx context.Context, id domain.ID) (domain.AudioAsset, error) {
	asset, ok := p.assets[id]
	if !ok {
		return domain.AudioAsset{}, fmt.Errorf("audio asset %s: %w", id, domain.ErrInvalidArgument)
	}
	if _, err := os.Stat(asset.Path); err == nil {
		return asset, nil
	}
	if p.archive == nil {
		return domain.AudioAsset{}, fmt.Errorf("audio asset %s not on disk and no archive attached: %w",
			asset.Path, domain.ErrFileNotFound)
	}
	data, _, err := p.archive.Get(ctx, archiveKey(asset.Digest))
	if err != nil {
		return domain.AudioAsset{}, fmt.Errorf("audio asset %s not archived: %w", asset.Path, domain.ErrFileNotFound)
	}
	dir := filepath.Join(filepath.Dir(p.path), "samples")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.AudioAsset{}, err
	}
	dest := filepath.Join(dir, filepath.Base(asset.Path))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return domain.AudioAsset{}, err
	}

	restored := asset
	restored.Path = dest
	record, err := json.Marshal(restored)
	if err != nil {
		return domain.AudioAsset{}, fmt.Errorf("encode asset: %w", err)
	}
	batch := p.log.Begin()
	batch.Put([]byte(assetPrefix+restored.ID.String()), record)
	if err := batch.Commit(); err != nil {
		return domain.AudioAsset{}, fmt.Errorf("persist asset: %w", err)
	}
	p.assets[restored.ID] = restored
	p.assetListDirty = true
	p.logger.Info("audio asset restored", "from", asset.Path, "to", dest)
	return restored, nil
}

// AudioAsset returns the asset with the given id.
func (p *Project) AudioAsset(id domain.ID) (domain.AudioAsset, bool) {
	a, ok := p.assets[id]
	return a, ok
}

// AudioAssetByDigest returns the asset registered for a content digest.
func (p *Project) AudioAssetByDigest(digest string) (domain.AudioAsset, bool) {
	id, ok := p.assetsByDigest[digest]
	if !ok {
		return domain.AudioAsset{}, false
	}
	return p.assets[id], true
}
