package snapshot

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
)

// MagicBytes identifies a snapshot artifact file ("SNAP").
const (
	MagicBytes    uint32 = 0x534E4150
	FormatVersion uint16 = 1
	HeaderSize    int    = 32
	FileExt              = ".snap"
)

const flagZstd uint8 = 1 << 0

// ArtifactHeader is the 32-byte header at the start of every artifact file.
type ArtifactHeader struct {
	Magic      uint32
	Version    uint16
	Codec      uint8
	Flags      uint8
	PayloadLen uint64
	Checksum   uint32
	CreatedAt  int64
}

func (h ArtifactHeader) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = h.Codec
	buf[7] = h.Flags
	binary.LittleEndian.PutUint64(buf[8:16], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[16:20], h.Checksum)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(h.CreatedAt))
	return buf
}

func decodeHeader(buf []byte) ArtifactHeader {
	return ArtifactHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint16(buf[4:6]),
		Codec:      buf[6],
		Flags:      buf[7],
		PayloadLen: binary.LittleEndian.Uint64(buf[8:16]),
		Checksum:   binary.LittleEndian.Uint32(buf[16:20]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[20:28])),
	}
}

// FileStore keeps one file per artifact under a data directory.
type FileStore struct {
	dataDir  string
	codec    Codec
	compress bool
	logger   *slog.Logger
}

func NewFileStore(dataDir string, codec Codec, compress bool) *FileStore {
	if codec == nil {
		codec = JSON
	}
	return &FileStore{
		dataDir:  dataDir,
		codec:    codec,
		compress: compress,
		logger:   slog.Default().With("component", "snapshot-file", "data_dir", dataDir),
	}
}

func (s *FileStore) path(artifact string) string {
	return filepath.Join(s.dataDir, artifact+FileExt)
}

// Save encodes every artifact to a .tmp file, syncs them, and only then
// renames all four into place.
func (s *FileStore) Save(ctx context.Context, st *index.State) error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	payloads := map[string]any{
		ArtifactIndex:           st.Index,
		ArtifactDocMap:          st.Documents,
		ArtifactTermFrequencies: st.TermFrequencies,
		ArtifactDocLengths:      st.DocLengths,
	}
	tmpPaths := make([]string, 0, len(Artifacts))
	cleanup := func() {
		for _, p := range tmpPaths {
			os.Remove(p)
		}
	}
	for _, name := range Artifacts {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		tmpPath := s.path(name) + ".tmp"
		tmpPaths = append(tmpPaths, tmpPath)
		if err := s.writeArtifact(tmpPath, name, payloads[name]); err != nil {
			cleanup()
			return err
		}
	}
	for i, name := range Artifacts {
		if err := os.Rename(tmpPaths[i], s.path(name)); err != nil {
			cleanup()
			return fmt.Errorf("renaming artifact %q: %w", name, err)
		}
	}
	syncDir(s.dataDir)
	s.logger.Info("snapshot saved",
		"codec", s.codec.Name(),
		"compressed", s.compress,
		"terms", len(st.Index),
		"docs", st.DocCount(),
	)
	return nil
}

func (s *FileStore) writeArtifact(path, name string, v any) error {
	payload, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling artifact %q: %w", name, err)
	}
	var flags uint8
	if s.compress {
		payload = compress(payload)
		flags |= flagZstd
	}
	header := ArtifactHeader{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		Codec:      s.codec.ID(),
		Flags:      flags,
		PayloadLen: uint64(len(payload)),
		Checksum:   crc32.ChecksumIEEE(payload),
		CreatedAt:  time.Now().Unix(),
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating artifact %q: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(header.encode()); err != nil {
		return fmt.Errorf("writing header of %q: %w", name, err)
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("writing artifact %q: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing artifact %q: %w", name, err)
	}
	return f.Close()
}

// Load checks that all four artifacts exist before reading any of them.
func (s *FileStore) Load(ctx context.Context) (*index.State, error) {
	for _, name := range Artifacts {
		if _, err := os.Stat(s.path(name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &MissingArtifactError{Name: name}
			}
			return nil, fmt.Errorf("checking artifact %q: %w", name, err)
		}
	}
	st := &index.State{}
	targets := map[string]any{
		ArtifactIndex:           &st.Index,
		ArtifactDocMap:          &st.Documents,
		ArtifactTermFrequencies: &st.TermFrequencies,
		ArtifactDocLengths:      &st.DocLengths,
	}
	for _, name := range Artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.readArtifact(name, targets[name]); err != nil {
			return nil, err
		}
	}
	ensureTables(st)
	if err := st.Validate(); err != nil {
		return nil, err
	}
	s.logger.Info("snapshot loaded", "terms", len(st.Index), "docs", st.DocCount())
	return st, nil
}

func (s *FileStore) readArtifact(name string, target any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return fmt.Errorf("reading artifact %q: %w", name, err)
	}
	if len(data) < HeaderSize {
		return corrupt(name, "file is %d bytes, shorter than the header", len(data))
	}
	header := decodeHeader(data[:HeaderSize])
	if header.Magic != MagicBytes {
		return corrupt(name, "bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return corrupt(name, "unsupported format version %d", header.Version)
	}
	payload := data[HeaderSize:]
	if uint64(len(payload)) != header.PayloadLen {
		return corrupt(name, "payload is %d bytes, header says %d", len(payload), header.PayloadLen)
	}
	if crc32.ChecksumIEEE(payload) != header.Checksum {
		return corrupt(name, "checksum mismatch")
	}
	codec, err := codecByID(header.Codec)
	if err != nil {
		return corrupt(name, "%v", err)
	}
	if header.Flags&flagZstd != 0 {
		if payload, err = decompress(payload); err != nil {
			return corrupt(name, "%v", err)
		}
	}
	if err := codec.Unmarshal(payload, target); err != nil {
		return corrupt(name, "decoding %s payload: %v", codec.Name(), err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// ensureTables replaces tables decoded as nil (an encoded null) with empty
// ones so an empty snapshot loads as an empty State.
func ensureTables(st *index.State) {
	if st.Index == nil {
		st.Index = make(map[string]index.PostingList)
	}
	if st.Documents == nil {
		st.Documents = make(map[int]corpus.Document)
	}
	if st.TermFrequencies == nil {
		st.TermFrequencies = make(map[int]map[string]int)
	}
	if st.DocLengths == nil {
		st.DocLengths = make(map[int]int)
	}
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
