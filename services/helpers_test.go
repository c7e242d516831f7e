package services

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mrnavastar/uemodman/archive"
	"github.com/mrnavastar/uemodman/events"
)

type zipEntry struct {
	name string
	data string
}

func zipBytes(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("zip Create %s: %v", e.name, err)
		}
		if _, err := fw.Write([]byte(e.data)); err != nil {
			t.Fatalf("zip Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	return buf.Bytes()
}

func writeZip(t *testing.T, file string, entries []zipEntry) {
	t.Helper()
	if err := os.WriteFile(file, zipBytes(t, entries), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// palworldDir lays out a steam Palworld install with an empty Paks folder.
func palworldDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Palworld.exe"), "exe")
	if err := os.MkdirAll(filepath.Join(dir, "Pal", "Content", "Paks"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func entries(names ...string) []archive.Entry {
	out := make([]archive.Entry, 0, len(names))
	for _, n := range names {
		out = append(out, archive.Entry{Name: n, IsDir: strings.HasSuffix(n, "/"), Size: int64(len(n))})
	}
	return out
}

// memSource serves entry contents from memory.
type memSource map[string]string

func (m memSource) Open(name string) (io.ReadCloser, error) {
	data, ok := m[name]
	if !ok {
		return nil, archive.ErrEntryNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

// recorder collects every payload published under the names it watches.
type recorder struct {
	mu   sync.Mutex
	seen map[string][]any
}

func record(bus *events.Bus, names ...string) *recorder {
	r := &recorder{seen: map[string][]any{}}
	for _, name := range names {
		name := name
		bus.Subscribe(name, func(p any) {
			r.mu.Lock()
			r.seen[name] = append(r.seen[name], p)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) get(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[name]
}
