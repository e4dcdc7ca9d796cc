// internal/journal/journal.go
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/agentscope/internal/protocol"
)

// CaptureID identifies one recorded session under the data directory.
type CaptureID string

// NewCaptureID returns a fresh capture identifier.
func NewCaptureID() CaptureID {
	return CaptureID(uuid.New().String())
}

// Entry is one received event with local bookkeeping.
type Entry struct {
	Seq        int64           `json:"seq"`
	ReceivedAt time.Time       `json:"received_at"`
	Event      *protocol.Event `json:"event"`
}

// Recorder appends received events to a JSONL file at
// sessions/<captureID>/events.jsonl. Append-only; entries are never
// rewritten.
type Recorder struct {
	mu   sync.Mutex
	path string
	f    *os.File
	seq  int64
}

// NewRecorder opens (creating if needed) the capture file for the given id.
func NewRecorder(root string, id CaptureID) (*Recorder, error) {
	dir := filepath.Join(root, "sessions", string(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	path := filepath.Join(dir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return &Recorder{path: path, f: f}, nil
}

// Append writes one received event to the capture with an auto-incremented
// sequence number.
func (r *Recorder) Append(ev *protocol.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry := Entry{Seq: r.seq, ReceivedAt: time.Now().UTC(), Event: ev}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.f.Write(data); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// Close flushes and closes the capture file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// Read returns all entries of a capture in recorded order. Lines that fail
// to parse are skipped; a capture is a tolerated-loss record of a
// tolerated-loss channel.
func Read(root string, id CaptureID) ([]Entry, error) {
	path := filepath.Join(root, "sessions", string(id), "events.jsonl")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan capture: %w", err)
	}
	return entries, nil
}

// CaptureInfo summarizes one stored capture.
type CaptureInfo struct {
	ID         CaptureID
	ModifiedAt time.Time
}

// List returns the captures under root, most recently modified first.
func List(root string) ([]CaptureInfo, error) {
	dir := filepath.Join(root, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var infos []CaptureInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fi, err := os.Stat(filepath.Join(dir, e.Name(), "events.jsonl"))
		if err != nil {
			continue
		}
		infos = append(infos, CaptureInfo{ID: CaptureID(e.Name()), ModifiedAt: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModifiedAt.After(infos[j].ModifiedAt)
	})
	return infos, nil
}
