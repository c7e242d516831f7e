package services

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mrnavastar/uemodman/archive"
	"github.com/mrnavastar/uemodman/games"
	"github.com/mrnavastar/uemodman/util"
	"go.uber.org/zap"
)

// LogicModMarker is the asset name that identifies a blueprint logic mod.
const LogicModMarker = "ModActor.uasset"

var (
	ErrEmptyArchive    = errors.New("archive has no entries")
	ErrInvalidGamePath = errors.New("invalid game path")
	ErrUnknownGamePath = errors.New("unknown game path")
)

// RootKind is a recognised top level folder of a mod archive.
type RootKind int

const (
	RootDefault RootKind = iota // ~mods/ or anything unrecognised
	RootProject
	RootBinaries
	RootContent
	RootWin64
	RootWinGDK
	RootMods
	RootMovies
	RootSplash
	RootPaks
	RootLogicMods
)

var rootNames = map[string]RootKind{
	"Binaries":  RootBinaries,
	"Content":   RootContent,
	"Win64":     RootWin64,
	"WinGDK":    RootWinGDK,
	"Mods":      RootMods,
	"Movies":    RootMovies,
	"Splash":    RootSplash,
	"Paks":      RootPaks,
	"LogicMods": RootLogicMods,
	"~mods":     RootDefault,
}

// allowedRoots are the segments accepted at the top of a well formed archive.
// Splash is only reachable through a forced root.
var allowedRoots = []string{"Binaries", "Content", "Win64", "WinGDK", "Mods", "Movies", "Paks", "LogicMods", "~mods"}

// validFileTypes are never ignored, whatever their size or location.
var validFileTypes = []string{"pak", "ucas", "utoc", "txt", "json", "lua", "md", "bk2", "bmp"}

var splashPattern = regexp.MustCompile(`(?i)splash`)

// ParseRoot maps a folder name, with or without trailing slash, to its kind.
func ParseRoot(name, unrealRoot string) RootKind {
	name = strings.TrimSuffix(name, "/")
	if name == unrealRoot && name != "" {
		return RootProject
	}
	if k, ok := rootNames[name]; ok {
		return k
	}
	return RootDefault
}

// installDestination is where an archive whose first directory is k gets extracted.
func installDestination(k RootKind, g games.ValidatedGame) string {
	root := filepath.Join(g.Path, g.UnrealRoot)
	switch k {
	case RootProject:
		return g.Path
	case RootBinaries, RootContent:
		return root
	case RootWin64, RootWinGDK:
		return filepath.Join(root, "Binaries")
	case RootMods:
		return filepath.Join(root, "Binaries", g.BinariesSubdir())
	case RootMovies:
		return filepath.Join(root, "Content", "Movies")
	case RootSplash:
		return filepath.Join(root, "Content", "Splash")
	case RootPaks:
		return filepath.Join(root, "Content", "Paks")
	case RootLogicMods:
		return filepath.Join(root, "Content", "Paks", "LogicMods")
	default:
		return filepath.Join(root, "Content", "Paks", "~mods")
	}
}

// forcedDestination maps a caller supplied root straight to the folder it names.
func forcedDestination(k RootKind, g games.ValidatedGame) string {
	root := filepath.Join(g.Path, g.UnrealRoot)
	switch k {
	case RootBinaries:
		return filepath.Join(root, "Binaries")
	case RootContent:
		return filepath.Join(root, "Content")
	case RootWin64:
		return filepath.Join(root, "Binaries", "Win64")
	case RootWinGDK:
		return filepath.Join(root, "Binaries", "WinGDK")
	default:
		return installDestination(k, g)
	}
}

// uninstallBase is the folder recorded entries are relative to when a record
// carries no root. Entries then still start with their root folder.
func uninstallBase(k RootKind, g games.ValidatedGame) string {
	root := filepath.Join(g.Path, g.UnrealRoot)
	switch k {
	case RootMovies, RootSplash, RootPaks:
		return filepath.Join(root, "Content")
	case RootLogicMods:
		return filepath.Join(root, "Content", "Paks")
	default:
		return installDestination(k, g)
	}
}

// EntrySource gives the resolver access to entry contents for logic mod sniffing.
type EntrySource interface {
	Open(name string) (io.ReadCloser, error)
}

type Resolution struct {
	Game        games.ValidatedGame
	InstallRoot string
	Root        RootKind
	// IgnoredRoot is the wrapper folder stripped from every entry.
	IgnoredRoot string
	// Ignored lists entry names that are neither extracted nor recorded.
	Ignored []string
	// Entries carries every archive entry with OutputPath set.
	Entries []archive.Entry
	// LogicMod is set when sniffing found LogicModMarker.
	LogicMod bool
}

// IsIgnored reports whether name was filtered out.
func (r Resolution) IsIgnored(name string) bool {
	return util.Contains(r.Ignored, name)
}

// OutputPaths returns the mapped paths of the kept file entries, in archive order.
func (r Resolution) OutputPaths() []string {
	out := []string{}
	for _, e := range r.Entries {
		if e.IsDir || e.OutputPath == "" || r.IsIgnored(e.Name) {
			continue
		}
		out = append(out, e.OutputPath)
	}
	return out
}

// OutputName maps an archive entry name to its path under InstallRoot.
func (r Resolution) OutputName(name string) string {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.OutputPath
		}
	}
	return name
}

// ResolveInstallPath works out where inside gameDir the entries of one
// archive belong. forcedRoot, when not empty, names the destination folder
// directly (eg "LogicMods/"). src may be nil, which disables logic mod sniffing.
func (e *Engine) ResolveInstallPath(gameDir string, entries []archive.Entry, forcedRoot string, src EntrySource) (Resolution, error) {
	game := games.Validate(gameDir)
	switch game.Kind {
	case games.KindInvalidPath:
		return Resolution{}, ErrInvalidGamePath
	case games.KindUnknown:
		return Resolution{}, ErrUnknownGamePath
	}
	if len(entries) == 0 {
		return Resolution{}, ErrEmptyArchive
	}

	allowed := append([]string{game.UnrealRoot}, allowedRoots...)
	isAllowed := func(seg string) bool { return util.Contains(allowed, seg) }

	ignoredRoot := ""
	first := -1
	for i, entry := range entries {
		rel := entry.Name
		nested := ignoredRoot != "" && strings.HasPrefix(rel, ignoredRoot)
		if nested {
			rel = strings.TrimPrefix(rel, ignoredRoot)
		}
		seg, rest := splitFirst(rel)
		if isAllowed(seg) {
			first = i
			break
		}
		// a directory entry, or a path that implies one, wraps the real layout
		if entry.IsDir || rest != "" {
			if nested {
				ignoredRoot += seg + "/"
			} else {
				ignoredRoot = seg + "/"
			}
		}
	}

	res := Resolution{
		Game:        game,
		IgnoredRoot: ignoredRoot,
		Entries:     make([]archive.Entry, len(entries)),
	}
	copy(res.Entries, entries)

	var firstEntry archive.Entry
	if strip, ok := scriptsWrapper(ignoredRoot); ok {
		// lua mods zipped without their Mods folder
		for i := range res.Entries {
			name := res.Entries[i].Name
			if !strings.HasPrefix(name, strip) || name == strip {
				res.Entries[i].OutputPath = ""
				continue
			}
			res.Entries[i].OutputPath = "Mods/" + strings.TrimPrefix(name, strip)
		}
		firstEntry = archive.Entry{Name: "Mods/", IsDir: true, OutputPath: "Mods/"}
	} else {
		for i := range res.Entries {
			name := res.Entries[i].Name
			if res.Entries[i].IsDir && strings.HasPrefix(ignoredRoot, name) {
				// the wrapper folders themselves
				name = ""
			}
			res.Entries[i].OutputPath = strings.TrimPrefix(name, ignoredRoot)
		}
		if first < 0 {
			first = 0
		}
		firstEntry = res.Entries[first]
	}

	res.Ignored = ignoredEntries(entries, isAllowed)

	switch {
	case forcedRoot != "":
		res.Root = ParseRoot(forcedRoot, game.UnrealRoot)
		res.InstallRoot = forcedDestination(res.Root, game)
	case firstEntry.IsDir:
		seg, _ := splitFirst(firstEntry.OutputPath)
		res.Root = ParseRoot(seg, game.UnrealRoot)
		if res.Root == RootDefault {
			res.Root = e.sniffRoot(res.Entries, firstEntry, src, &res)
		}
		res.InstallRoot = installDestination(res.Root, game)
	default:
		res.Root = e.sniffRoot(res.Entries, firstEntry, src, &res)
		res.InstallRoot = installDestination(res.Root, game)
	}

	stripInstallRoot(&res)

	e.log.Debug("resolved install path",
		zap.String("game", game.GameID),
		zap.String("first", firstEntry.Name),
		zap.String("ignored_root", ignoredRoot),
		zap.Strings("ignored", res.Ignored),
		zap.String("install_root", res.InstallRoot))
	return res, nil
}

// scriptsWrapper reports whether the wrapper folders end in a lua Scripts
// folder and returns the prefix to drop. The folder holding Scripts is kept
// as the mod's name, so "Outer/MyMod/Scripts/" drops "Outer/".
func scriptsWrapper(ignoredRoot string) (string, bool) {
	segs := strings.Split(strings.TrimSuffix(ignoredRoot, "/"), "/")
	for i, seg := range segs {
		if seg != "Scripts" {
			continue
		}
		if i <= 1 {
			return "", true
		}
		return strings.Join(segs[:i-1], "/") + "/", true
	}
	return "", false
}

// sniffRoot guesses the destination of an archive without a recognised folder.
func (e *Engine) sniffRoot(entries []archive.Entry, first archive.Entry, src EntrySource, res *Resolution) RootKind {
	if src != nil && containsLogicMod(entries, src) {
		res.LogicMod = true
		return RootLogicMods
	}
	name := strings.ToLower(first.Name)
	if strings.HasSuffix(name, ".bk2") {
		return RootMovies
	}
	if splashPattern.MatchString(first.Name) && strings.HasSuffix(name, ".bmp") {
		return RootSplash
	}
	return RootDefault
}

// sniffChunk is how much of an entry containsLogicMod reads at a time.
const sniffChunk = 64 << 10

// containsLogicMod searches pak and utoc entries for LogicModMarker. This is
// a plain byte search, so compressed containers can be missed.
func containsLogicMod(entries []archive.Entry, src EntrySource) bool {
	marker := bytes.ToLower([]byte(LogicModMarker))
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if ext := entry.Ext(); ext != "pak" && ext != "utoc" {
			continue
		}
		rc, err := src.Open(entry.Name)
		if err != nil {
			continue
		}
		found := streamContains(rc, marker)
		rc.Close()
		if found {
			return true
		}
	}
	return false
}

// streamContains lower cases r chunk by chunk and looks for marker, keeping
// the tail of each chunk so a match across two reads is not lost. marker must
// be lower case ASCII.
func streamContains(r io.Reader, marker []byte) bool {
	overlap := len(marker) - 1
	buf := make([]byte, overlap+sniffChunk)
	kept := 0
	for {
		n, err := io.ReadFull(r, buf[kept:])
		if n > 0 {
			for i := kept; i < kept+n; i++ {
				if c := buf[i]; 'A' <= c && c <= 'Z' {
					buf[i] = c + 'a' - 'A'
				}
			}
			window := buf[:kept+n]
			if bytes.Contains(window, marker) {
				return true
			}
			if len(window) > overlap {
				kept = copy(buf, window[len(window)-overlap:])
			} else {
				kept = len(window)
			}
		}
		if err != nil {
			return false
		}
	}
}

// ignoredEntries filters files that have no business in the game tree: an
// unknown extension and either no content or no recognised folder anywhere
// in the path.
func ignoredEntries(entries []archive.Entry, isAllowed func(string) bool) []string {
	ignored := []string{}
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		known := false
		for _, ext := range validFileTypes {
			if strings.HasSuffix(entry.Name, "."+ext) {
				known = true
				break
			}
		}
		if known {
			continue
		}
		if entry.Size == 0 {
			ignored = append(ignored, entry.Name)
			continue
		}
		inRoot := false
		for _, part := range strings.Split(entry.Name, "/") {
			if isAllowed(part) {
				inRoot = true
				break
			}
		}
		if !inRoot {
			ignored = append(ignored, entry.Name)
		}
	}
	return ignored
}

// stripInstallRoot removes from each output path the leading folders that
// InstallRoot already ends with, so "Movies/x.bk2" lands in Content/Movies
// rather than Content/Movies/Movies.
func stripInstallRoot(res *Resolution) {
	rel, err := filepath.Rel(res.Game.Path, res.InstallRoot)
	if err != nil || rel == "." {
		return
	}
	segs := strings.Split(filepath.ToSlash(rel), "/")
	for i := range res.Entries {
		out := res.Entries[i].OutputPath
		for start := 0; start < len(segs); start++ {
			prefix := strings.Join(segs[start:], "/") + "/"
			if strings.HasPrefix(out, prefix) {
				res.Entries[i].OutputPath = strings.TrimPrefix(out, prefix)
				break
			}
		}
	}
}

// splitFirst splits "a/b/c" into "a" and "b/c". Backslashes count as separators.
func splitFirst(p string) (string, string) {
	p = strings.ReplaceAll(p, `\`, "/")
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i], p[i+1:]
	}
	return p, ""
}
