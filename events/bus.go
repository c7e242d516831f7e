// Package events is the one-way progress channel between the engine and
// whatever front end is listening.
package events

import "sync"

const (
	DownloadFile     = "download-file"
	DownloadModFile  = "download-mod-file"
	InstallModFile   = "install-mod-file"
	ExtractModFile   = "extract-mod-file"
	FrameworkProcess = "framework-process"
)

// Framework sub-phases carried by FrameworkProcess events.
const (
	PhaseDownload    = "download"
	PhaseExtract     = "extract"
	PhaseDelete      = "delete"
	PhaseComplete    = "complete"
	PhaseError       = "error"
	PhaseUninstalled = "uninstalled"
)

type Handler func(payload any)

// Progress is the payload of the download events. Percentage is -1 when the
// total size is unknown.
type Progress struct {
	ModID      int     `json:"mod_id,omitempty"`
	FileID     int     `json:"file_id,omitempty"`
	FileName   string  `json:"filename"`
	OutputPath string  `json:"output_path"`
	Received   int64   `json:"received"`
	Total      int64   `json:"total"`
	Percentage float64 `json:"percentage"`
}

type Install struct {
	InstallPath string   `json:"install_path"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	ModID       int      `json:"mod_id"`
	FileID      int      `json:"file_id"`
	Entries     []string `json:"entries"`
}

type Extract struct {
	Entry      string `json:"entry"`
	OutputPath string `json:"output_path"`
	Index      int    `json:"index"`
	Total      int    `json:"total"`
}

type Framework struct {
	Phase string `json:"phase"`
	Data  any    `json:"data,omitempty"`
}

type subscription struct {
	id int
	fn Handler
}

// Bus delivers published payloads synchronously to the handlers subscribed to
// that event name, in subscription order. A nil *Bus drops everything.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for name and returns a function that removes it.
// The zero Bus is ready to use.
func (b *Bus) Subscribe(name string, fn Handler) func() {
	if b == nil {
		return func() {}
	}
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[string][]subscription)
	}
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[name]
		for i, s := range list {
			if s.id == id {
				b.subs[name] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(name string, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[name]))
	for _, s := range b.subs[name] {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(payload)
	}
}
