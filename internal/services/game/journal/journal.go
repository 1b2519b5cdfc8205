package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/journal/integrity"
	"github.com/klauspost/compress/zstd"
)

const (
	filePrefix = "resolutions-"
	fileSuffix = ".jsonl.zst"
	dayLayout  = "20060102"
)

// Entry is one archived resolution. Entries of a day file form a hash chain:
// ChainHash covers ContentHash and the previous entry's ChainHash.
type Entry struct {
	PayloadID   string             `json:"payloadId"`
	Fingerprint string             `json:"fingerprint"`
	Payload     resolution.Payload `json:"payload"`
	Report      resolution.Report  `json:"report"`
	RecordedAt  time.Time          `json:"recordedAt"`

	ContentHash string `json:"contentHash"`
	PrevHash    string `json:"prevHash,omitempty"`
	ChainHash   string `json:"chainHash"`
	Signature   string `json:"signature,omitempty"`
	KeyID       string `json:"keyId,omitempty"`
}

// content is the hashed part of an entry.
func (e Entry) content() any {
	return struct {
		PayloadID   string             `json:"payloadId"`
		Fingerprint string             `json:"fingerprint"`
		Payload     resolution.Payload `json:"payload"`
		Report      resolution.Report  `json:"report"`
		RecordedAt  time.Time          `json:"recordedAt"`
	}{e.PayloadID, e.Fingerprint, e.Payload, e.Report, e.RecordedAt}
}

// Writer appends entries to the day file of the current UTC date.
type Writer struct {
	dir     string
	now     func() time.Time
	keyring *integrity.Keyring

	mu       sync.Mutex
	day      string
	lastHash string
	file     *os.File
	enc      *zstd.Encoder
	buf      *bufio.Writer
	closed   bool
}

// Open prepares a writer rooted at dir. Files are created lazily.
func Open(dir string) (*Writer, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("journal dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// SetClock overrides the time source used for rotation and RecordedAt.
func (w *Writer) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
}

// SetKeyring signs every appended entry with keyring. Nil disables signing.
func (w *Writer) SetKeyring(keyring *integrity.Keyring) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keyring = keyring
}

// Dir returns the directory the writer archives into.
func (w *Writer) Dir() string {
	return w.dir
}

// Append archives a completed resolution. The line is flushed through the
// encoder before Append returns.
func (w *Writer) Append(ctx context.Context, payload resolution.Payload, report resolution.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("journal is closed")
	}

	now := w.now().UTC()
	day := now.Format(dayLayout)
	if day != w.day {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	payload.PayloadID = report.PayloadID
	entry := Entry{
		PayloadID:   report.PayloadID,
		Fingerprint: report.Fingerprint,
		Payload:     payload,
		Report:      report,
		RecordedAt:  now,
	}
	if err := w.sealLocked(&entry); err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	if _, err := w.buf.Write(line); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush journal entry: %w", err)
	}
	if err := w.enc.Flush(); err != nil {
		return fmt.Errorf("flush journal encoder: %w", err)
	}
	w.lastHash = entry.ChainHash
	return nil
}

func (w *Writer) sealLocked(entry *Entry) error {
	contentHash, err := integrity.ContentHash(entry.content())
	if err != nil {
		return fmt.Errorf("hash journal entry: %w", err)
	}
	chainHash, err := integrity.ChainHash(contentHash, w.lastHash)
	if err != nil {
		return fmt.Errorf("chain journal entry: %w", err)
	}
	entry.ContentHash = contentHash
	entry.PrevHash = w.lastHash
	entry.ChainHash = chainHash
	if w.keyring != nil {
		signature, keyID, err := w.keyring.Sign(w.day, chainHash)
		if err != nil {
			return fmt.Errorf("sign journal entry: %w", err)
		}
		entry.Signature = signature
		entry.KeyID = keyID
	}
	return nil
}

// Close finishes the open frame and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.closeLocked()
}

func (w *Writer) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := filepath.Join(w.dir, FileName(day))
	lastHash, err := lastChainHash(path)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	w.file = file
	w.enc = enc
	w.buf = bufio.NewWriterSize(enc, 64*1024)
	w.day = day
	w.lastHash = lastHash
	return nil
}

// lastChainHash returns the chain hash of the last entry already in path, so
// a reopened day file continues its chain.
func lastChainHash(path string) (string, error) {
	entries, err := ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	return entries[len(entries)-1].ChainHash, nil
}

func (w *Writer) closeLocked() error {
	var errs []error
	if w.buf != nil {
		errs = append(errs, w.buf.Flush())
	}
	if w.enc != nil {
		errs = append(errs, w.enc.Close())
	}
	if w.file != nil {
		errs = append(errs, w.file.Close())
	}
	w.buf, w.enc, w.file, w.day, w.lastHash = nil, nil, nil, "", ""
	return errors.Join(errs...)
}

// FileName returns the archive file name for a YYYYMMDD day.
func FileName(day string) string {
	return filePrefix + day + fileSuffix
}

// ReadAll decodes every entry of one archive stream.
func ReadAll(r io.Reader) ([]Entry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var entries []Entry
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("decode journal line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// ReadFile decodes one archive file.
func ReadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	defer file.Close()
	return ReadAll(file)
}

// Verify checks the hash chain of one day's entries. When keyring is set,
// every entry must also carry a valid signature for day.
func Verify(day string, entries []Entry, keyring *integrity.Keyring) error {
	prev := ""
	for i, entry := range entries {
		contentHash, err := integrity.ContentHash(entry.content())
		if err != nil {
			return fmt.Errorf("entry %d: hash: %w", i+1, err)
		}
		if contentHash != entry.ContentHash {
			return fmt.Errorf("entry %d (%s): content hash mismatch", i+1, entry.PayloadID)
		}
		if entry.PrevHash != prev {
			return fmt.Errorf("entry %d (%s): chain broken", i+1, entry.PayloadID)
		}
		chainHash, err := integrity.ChainHash(contentHash, prev)
		if err != nil {
			return fmt.Errorf("entry %d: chain: %w", i+1, err)
		}
		if chainHash != entry.ChainHash {
			return fmt.Errorf("entry %d (%s): chain hash mismatch", i+1, entry.PayloadID)
		}
		if keyring != nil {
			if err := keyring.Verify(day, chainHash, entry.Signature, entry.KeyID); err != nil {
				return fmt.Errorf("entry %d (%s): %w", i+1, entry.PayloadID, err)
			}
		}
		prev = chainHash
	}
	return nil
}

// VerifyFile reads and verifies one archive file. The day is taken from the
// file name.
func VerifyFile(path string, keyring *integrity.Keyring) error {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return fmt.Errorf("%s is not a journal file", name)
	}
	day := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	entries, err := ReadFile(path)
	if err != nil {
		return err
	}
	return Verify(day, entries, keyring)
}

// ListFiles returns the archive files in dir ordered by day.
func ListFiles(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read journal dir: %w", err)
	}
	var files []string
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
