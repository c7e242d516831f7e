// Package games holds the table of recognised Unreal Engine games and the
// logic that classifies an install directory against it.
package games

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed games.toml
var descriptorTOML string

// GenericID is reserved for the fallback descriptor and never matched by Validate.
const GenericID = "generic"

var ErrUnknownGame = errors.New("unknown game id")

type Platform string

const (
	PlatformEpic  Platform = "epic"
	PlatformSteam Platform = "steam"
	PlatformXbox  Platform = "xbox"
)

// Platforms lists every platform in classification order.
var Platforms = []Platform{PlatformEpic, PlatformSteam, PlatformXbox}

// BinariesSubdir is the folder under <root>/Binaries holding the game binaries.
func (p Platform) BinariesSubdir() string {
	if p == PlatformXbox {
		return "WinGDK"
	}
	return "Win64"
}

type LaunchType string

const (
	LaunchDemo   LaunchType = "demo"
	LaunchGame   LaunchType = "game"
	LaunchServer LaunchType = "server"
)

// LaunchTypes lists every launch type in classification order.
var LaunchTypes = []LaunchType{LaunchDemo, LaunchGame, LaunchServer}

// Layout describes one platform build of a game.
type Layout struct {
	Root       string // unreal project folder, eg "Pal"
	App        string // executable base name without .exe
	Match      *regexp.Regexp
	SteamAppID int
}

type Descriptor struct {
	ID      string
	Name    string
	Nexus   string
	Layouts map[LaunchType]map[Platform]Layout
}

// Layout returns the layout for the given launch type and platform, if any.
func (d Descriptor) Layout(launch LaunchType, platform Platform) (Layout, bool) {
	l, ok := d.Layouts[launch][platform]
	return l, ok
}

type rawLayout struct {
	Root       string `toml:"root"`
	App        string `toml:"app"`
	Match      string `toml:"match"`
	SteamAppID int    `toml:"steam_app_id"`
}

type rawDescriptor struct {
	ID        string                          `toml:"id"`
	Name      string                          `toml:"name"`
	Nexus     string                          `toml:"nexus"`
	Platforms map[string]map[string]rawLayout `toml:"platforms"`
}

type descriptorFile struct {
	Games []rawDescriptor `toml:"games"`
}

var (
	tableOnce sync.Once
	table     []Descriptor
	tableErr  error
)

// All returns the descriptor table in classification order.
func All() ([]Descriptor, error) {
	tableOnce.Do(func() {
		table, tableErr = parseTable(descriptorTOML)
	})
	return table, tableErr
}

// Lookup returns the descriptor with the given id.
func Lookup(id string) (Descriptor, error) {
	all, err := All()
	if err != nil {
		return Descriptor{}, err
	}
	for _, d := range all {
		if d.ID == id {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownGame, id)
}

func parseTable(doc string) ([]Descriptor, error) {
	var file descriptorFile
	if _, err := toml.Decode(doc, &file); err != nil {
		return nil, fmt.Errorf("decode game table: %w", err)
	}

	out := make([]Descriptor, 0, len(file.Games))
	for _, raw := range file.Games {
		d := Descriptor{
			ID:      raw.ID,
			Name:    raw.Name,
			Nexus:   raw.Nexus,
			Layouts: map[LaunchType]map[Platform]Layout{},
		}
		for launchName, platforms := range raw.Platforms {
			launch, ok := parseLaunchType(launchName)
			if !ok {
				return nil, fmt.Errorf("game %s: unknown launch type %q", raw.ID, launchName)
			}
			d.Layouts[launch] = map[Platform]Layout{}
			for platformName, rl := range platforms {
				platform, ok := parsePlatform(platformName)
				if !ok {
					return nil, fmt.Errorf("game %s: unknown platform %q", raw.ID, platformName)
				}
				layout := Layout{Root: rl.Root, App: rl.App, SteamAppID: rl.SteamAppID}
				if rl.Match != "" {
					re, err := regexp.Compile(rl.Match)
					if err != nil {
						return nil, fmt.Errorf("game %s: bad match pattern: %w", raw.ID, err)
					}
					layout.Match = re
				}
				d.Layouts[launch][platform] = layout
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func parseLaunchType(s string) (LaunchType, bool) {
	for _, l := range LaunchTypes {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

func parsePlatform(s string) (Platform, bool) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}
