package games

import (
	"os"
	"path/filepath"
)

// FrameworkDLL is the loader dll dropped into the binaries folder by UE4SS.
const FrameworkDLL = "dwmapi.dll"

const epicMarker = ".egstore"

type Kind int

const (
	KindInvalidPath Kind = iota
	KindUnknown
	KindGame
)

func (k Kind) String() string {
	switch k {
	case KindGame:
		return "game"
	case KindUnknown:
		return "{UNKNOWN}"
	default:
		return "{invalid-path}"
	}
}

// ValidatedGame is the classification of a directory against the descriptor table.
// Only Kind and Path are set unless Kind is KindGame.
type ValidatedGame struct {
	Kind       Kind
	Path       string
	GameID     string
	Platform   Platform
	LaunchType LaunchType
	UnrealRoot string

	ExePath       string
	ContentPath   string
	PaksPath      string
	FrameworkRoot string
	FrameworkPath string
	HasFramework  bool
}

func (v ValidatedGame) Valid() bool { return v.Kind == KindGame }

// BinariesSubdir is Win64 or WinGDK depending on the platform.
func (v ValidatedGame) BinariesSubdir() string { return v.Platform.BinariesSubdir() }

// Validate classifies path as one of the known games. An empty or unreadable
// path yields KindInvalidPath and an unrecognised one KindUnknown; neither is an error.
func Validate(path string) ValidatedGame {
	if path == "" {
		return ValidatedGame{Kind: KindInvalidPath}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return ValidatedGame{Kind: KindInvalidPath, Path: path}
	}
	files := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files[e.Name()] = true
		}
	}

	all, err := All()
	if err != nil {
		return ValidatedGame{Kind: KindUnknown, Path: path}
	}

	for _, d := range all {
		if d.ID == GenericID {
			continue
		}
		for _, platform := range Platforms {
			for _, launch := range LaunchTypes {
				layout, ok := d.Layout(launch, platform)
				if !ok || layout.Root == "" || layout.App == "" {
					continue
				}
				if !files[layout.App+".exe"] {
					continue
				}
				if layout.Match != nil && !layout.Match.MatchString(path) {
					continue
				}
				if platform == PlatformEpic && !dirExists(filepath.Join(path, epicMarker)) {
					continue
				}
				return newValidatedGame(path, d.ID, platform, launch, layout)
			}
		}
	}
	return ValidatedGame{Kind: KindUnknown, Path: path}
}

func newValidatedGame(path, id string, platform Platform, launch LaunchType, layout Layout) ValidatedGame {
	frameworkRoot := filepath.Join(path, layout.Root, "Binaries", platform.BinariesSubdir())
	frameworkPath := filepath.Join(frameworkRoot, FrameworkDLL)
	return ValidatedGame{
		Kind:          KindGame,
		Path:          path,
		GameID:        id,
		Platform:      platform,
		LaunchType:    launch,
		UnrealRoot:    layout.Root,
		ExePath:       filepath.Join(path, layout.App+".exe"),
		ContentPath:   filepath.Join(path, layout.Root, "Content"),
		PaksPath:      filepath.Join(path, layout.Root, "Content", "Paks"),
		FrameworkRoot: frameworkRoot,
		FrameworkPath: frameworkPath,
		HasFramework:  fileExists(frameworkPath),
	}
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
