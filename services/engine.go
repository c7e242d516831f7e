package services

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/mrnavastar/uemodman/api"
	"github.com/mrnavastar/uemodman/events"
	"go.uber.org/zap"
)

var (
	ErrMissingInput      = errors.New("missing required input")
	ErrNotDownloaded     = errors.New("mod file is not downloaded")
	ErrAlreadyDownloaded = errors.New("mod file is already downloaded")
	ErrAlreadyInstalled  = errors.New("mod is already installed")
	ErrNotInstalled      = errors.New("mod is not installed")
)

// DefaultRemoteGameID keys the cache manifest when no remote game id is configured.
const DefaultRemoteGameID = "palworld"

type Options struct {
	Client *api.Client
	Bus    *events.Bus
	Logger *zap.Logger
	// RemoteGameID is the game domain used by the remote mod repository.
	RemoteGameID string
	// FrameworkReleases is the base of the framework release download URLs.
	FrameworkReleases string
}

// Engine runs installs, uninstalls and downloads. Operations on the same game
// directory are serialised; different directories proceed independently.
type Engine struct {
	client            *api.Client
	bus               *events.Bus
	log               *zap.Logger
	remoteGameID      string
	frameworkReleases string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Client == nil {
		opts.Client = api.NewClient(api.Options{Logger: opts.Logger})
	}
	if opts.RemoteGameID == "" {
		opts.RemoteGameID = DefaultRemoteGameID
	}
	if opts.FrameworkReleases == "" {
		opts.FrameworkReleases = DefaultFrameworkReleases
	}
	return &Engine{
		client:            opts.Client,
		bus:               opts.Bus,
		log:               opts.Logger,
		remoteGameID:      opts.RemoteGameID,
		frameworkReleases: opts.FrameworkReleases,
		locks:             make(map[string]*sync.Mutex),
	}
}

// Bus returns the bus progress events are published on. It may be nil.
func (e *Engine) Bus() *events.Bus { return e.bus }

// lockDir takes the lock of one game directory and returns its release.
func (e *Engine) lockDir(dir string) func() {
	key := dir
	if abs, err := filepath.Abs(dir); err == nil {
		key = abs
	}
	key = filepath.Clean(key)

	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (e *Engine) publish(name string, payload any) {
	e.bus.Publish(name, payload)
}
