package journal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/journal/integrity"
	"github.com/klauspost/compress/zstd"
)

func sampleReport(id string) (resolution.Payload, resolution.Report) {
	payload := resolution.Payload{
		AttackerRef:   "hero",
		EssenceKey:    "vitalis",
		AttritionCost: 20,
		Targets:       []resolution.Target{{Ref: "goblin", Damage: 15}},
	}
	report := resolution.Report{
		PayloadID:        id,
		Fingerprint:      "fp-" + id,
		AttritionApplied: true,
		TargetsDamaged:   1,
		Defeated:         []string{"goblin"},
		Completed:        true,
	}
	return payload, report
}

func TestWriterRotatesByDayAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	writer, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	now := time.Date(2026, time.March, 3, 23, 59, 0, 0, time.UTC)
	writer.SetClock(func() time.Time { return now })

	ctx := context.Background()
	for _, id := range []string{"res-1", "res-2"} {
		payload, report := sampleReport(id)
		if err := writer.Append(ctx, payload, report); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	now = now.Add(2 * time.Minute)
	payload, report := sampleReport("res-3")
	if err := writer.Append(ctx, payload, report); err != nil {
		t.Fatalf("append res-3: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "resolutions-20260303.jsonl.zst"),
		filepath.Join(dir, "resolutions-20260304.jsonl.zst"),
	}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files = %v, want %v", files, want)
	}

	first, err := ReadFile(files[0])
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if len(first) != 2 || first[0].PayloadID != "res-1" || first[1].PayloadID != "res-2" {
		t.Fatalf("first day = %+v", first)
	}
	if first[0].Payload.PayloadID != "res-1" {
		t.Fatalf("payload id = %q, want stamped from report", first[0].Payload.PayloadID)
	}
	if first[0].Fingerprint != "fp-res-1" || first[0].Report.Defeated[0] != "goblin" {
		t.Fatalf("entry = %+v", first[0])
	}
}

func TestWriterAppendsFramesAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"res-a", "res-b"} {
		writer, err := Open(dir)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		writer.SetClock(func() time.Time { return fixed })
		payload, report := sampleReport(id)
		if err := writer.Append(context.Background(), payload, report); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	entries, err := ReadFile(filepath.Join(dir, FileName("20260401")))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 || entries[1].PayloadID != "res-b" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].PrevHash != "" || entries[1].PrevHash != entries[0].ChainHash {
		t.Fatalf("chain not continued across reopen: %q -> %q", entries[0].ChainHash, entries[1].PrevHash)
	}
	if err := Verify("20260401", entries, nil); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	writer, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	payload, report := sampleReport("res-1")
	if err := writer.Append(context.Background(), payload, report); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestReadAllRejectsCorruptLine(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	if _, err := enc.Write([]byte("{\"payloadId\":\"ok\"}\nnot json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = ReadAll(&buf)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error = %v, want line 2 failure", err)
	}
}

func TestListFilesIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", FileName("20260101")} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
}

func writeSignedDay(t *testing.T, keyring *integrity.Keyring) string {
	t.Helper()
	dir := t.TempDir()
	writer, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	writer.SetClock(func() time.Time { return time.Date(2026, time.May, 5, 8, 0, 0, 0, time.UTC) })
	writer.SetKeyring(keyring)
	for _, id := range []string{"res-1", "res-2", "res-3"} {
		payload, report := sampleReport(id)
		if err := writer.Append(context.Background(), payload, report); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return filepath.Join(dir, FileName("20260505"))
}

func testKeyring(t *testing.T) *integrity.Keyring {
	t.Helper()
	ring, err := integrity.NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	return ring
}

func TestVerifyFileAcceptsSignedChain(t *testing.T) {
	ring := testKeyring(t)
	path := writeSignedDay(t, ring)
	if err := VerifyFile(path, ring); err != nil {
		t.Fatalf("verify: %v", err)
	}
	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if entries[0].KeyID != "v1" || entries[0].Signature == "" {
		t.Fatalf("entry not signed: %+v", entries[0])
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	ring := testKeyring(t)
	entries, err := ReadFile(writeSignedDay(t, ring))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]Entry) []Entry
		want   string
	}{
		{
			name: "edited damage",
			mutate: func(e []Entry) []Entry {
				e[1].Payload.Targets[0].Damage = 1
				return e
			},
			want: "content hash mismatch",
		},
		{
			name:   "dropped entry",
			mutate: func(e []Entry) []Entry { return append(e[:1], e[2:]...) },
			want:   "chain broken",
		},
		{
			name: "reordered",
			mutate: func(e []Entry) []Entry {
				e[0], e[1] = e[1], e[0]
				return e
			},
			want: "chain broken",
		},
		{
			name: "forged chain hash",
			mutate: func(e []Entry) []Entry {
				e[2].ChainHash = "00"
				return e
			},
			want: "chain hash mismatch",
		},
		{
			name: "stripped signature",
			mutate: func(e []Entry) []Entry {
				e[0].Signature = ""
				return e
			},
			want: "signature mismatch",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copied := make([]Entry, len(entries))
			for i, entry := range entries {
				copied[i] = entry
				copied[i].Payload.Targets = append([]resolution.Target(nil), entry.Payload.Targets...)
			}
			err := Verify("20260505", tt.mutate(copied), ring)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestVerifyFileRejectsForeignNames(t *testing.T) {
	if err := VerifyFile(filepath.Join(t.TempDir(), "notes.txt"), nil); err == nil {
		t.Fatal("expected error for non-journal file")
	}
}
