package games

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andygrunwald/vdf"
)

// LocatedGame is a descriptor game found inside a Steam library.
type LocatedGame struct {
	Descriptor Descriptor
	AppID      int
	Path       string
	Game       ValidatedGame
}

// SteamRoots returns existing Steam installation roots, STEAM_ROOT first.
func SteamRoots() []string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		os.Getenv("STEAM_ROOT"),
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", "data", "Steam"),
		`C:\Program Files (x86)\Steam`,
	}
	var out []string
	for _, c := range candidates {
		if c != "" && dirExists(c) {
			out = append(out, c)
		}
	}
	return out
}

// LocateSteamGames scans the libraries of every Steam root for descriptor games
// that declare a Steam app id.
func LocateSteamGames(roots []string) ([]LocatedGame, error) {
	all, err := All()
	if err != nil {
		return nil, err
	}
	byAppID := map[int]Descriptor{}
	for _, d := range all {
		for _, platforms := range d.Layouts {
			for _, l := range platforms {
				if l.SteamAppID != 0 {
					byAppID[l.SteamAppID] = d
				}
			}
		}
	}

	var found []LocatedGame
	seen := map[string]bool{}
	for _, root := range roots {
		for _, lib := range libraryPaths(root) {
			steamapps := filepath.Join(lib, "steamapps")
			for appID, d := range byAppID {
				installDir, ok := readInstallDir(steamapps, appID)
				if !ok {
					continue
				}
				gamePath := filepath.Join(steamapps, "common", installDir)
				if seen[gamePath] || !dirExists(gamePath) {
					continue
				}
				seen[gamePath] = true
				found = append(found, LocatedGame{
					Descriptor: d,
					AppID:      appID,
					Path:       gamePath,
					Game:       Validate(gamePath),
				})
			}
		}
	}
	return found, nil
}

// libraryPaths reads steamapps/libraryfolders.vdf. The root itself is always a library.
func libraryPaths(root string) []string {
	paths := []string{root}
	f, err := os.Open(filepath.Join(root, "steamapps", "libraryfolders.vdf"))
	if err != nil {
		return paths
	}
	defer f.Close()

	m, err := vdf.NewParser(f).Parse()
	if err != nil {
		return paths
	}
	folders, ok := m["libraryfolders"].(map[string]interface{})
	if !ok {
		return paths
	}
	for _, v := range folders {
		entry, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		p, ok := entry["path"].(string)
		if !ok || p == "" || filepath.Clean(p) == filepath.Clean(root) {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

func readInstallDir(steamapps string, appID int) (string, bool) {
	f, err := os.Open(filepath.Join(steamapps, fmt.Sprintf("appmanifest_%d.acf", appID)))
	if err != nil {
		return "", false
	}
	defer f.Close()

	m, err := vdf.NewParser(f).Parse()
	if err != nil {
		return "", false
	}
	state, ok := m["AppState"].(map[string]interface{})
	if !ok {
		return "", false
	}
	if id, ok := state["appid"].(string); ok && id != strconv.Itoa(appID) {
		return "", false
	}
	dir, ok := state["installdir"].(string)
	return dir, ok && dir != ""
}
