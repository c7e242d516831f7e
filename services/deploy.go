package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mrnavastar/uemodman/archive"
	"github.com/mrnavastar/uemodman/events"
	"github.com/mrnavastar/uemodman/games"
	"github.com/mrnavastar/uemodman/util"
	"github.com/mrnavastar/uemodman/util/fileutils"
	"go.uber.org/zap"
)

// backedUpTypes are restored on uninstall when an install overwrote them.
var backedUpTypes = []string{".bk2", ".bmp"}

type InstallRequest struct {
	CacheDir string
	GameDir  string
	Mod      util.Mod
	File     util.File
	// IsLocal records the mod under local_mods keyed by File.FileName.
	IsLocal bool
	// ForcedRoot skips detection, eg "LogicMods/".
	ForcedRoot string
	// Extra is stored in the manifest record next to the known fields.
	Extra map[string]interface{}
}

// Install extracts a cached archive into the game and records what it wrote.
func (e *Engine) Install(ctx context.Context, req InstallRequest) (Resolution, error) {
	if req.CacheDir == "" || req.GameDir == "" || req.File.FileName == "" || (!req.IsLocal && req.Mod.ModID == 0) {
		return Resolution{}, ErrMissingInput
	}
	unlock := e.lockDir(req.GameDir)
	defer unlock()

	archivePath := filepath.Join(req.CacheDir, req.File.FileName)
	if !fileutils.Exists(archivePath) {
		return Resolution{}, fmt.Errorf("%w: %s", ErrNotDownloaded, req.File.FileName)
	}

	manifest := fileutils.LoadManifest(req.GameDir)
	if alreadyInstalled(&manifest, req) {
		return Resolution{}, fmt.Errorf("%w: %s", ErrAlreadyInstalled, req.File.FileName)
	}

	r, err := archive.Open(archivePath)
	if err != nil {
		return Resolution{}, err
	}
	defer r.Close()

	entries, err := r.Entries()
	if err != nil {
		return Resolution{}, fmt.Errorf("read %s: %w", req.File.FileName, err)
	}
	res, err := e.ResolveInstallPath(req.GameDir, entries, req.ForcedRoot, r)
	if err != nil {
		return Resolution{}, err
	}
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	backups, err := e.backupAssets(res)
	if err != nil {
		return Resolution{}, err
	}

	outputs := make(map[string]string, len(res.Entries))
	for _, entry := range res.Entries {
		outputs[entry.Name] = entry.OutputPath
	}
	err = archive.ExtractAll(r, res.InstallRoot, archive.ExtractOptions{
		Overwrite:  true,
		Ignored:    res.Ignored,
		OutputName: func(name string) string { return outputs[name] },
		Progress: func(p archive.Progress) {
			e.publish(events.ExtractModFile, events.Extract{
				Entry:      p.Entry,
				OutputPath: p.OutputPath,
				Index:      p.Index,
				Total:      p.Total,
			})
		},
	})
	if err != nil {
		return Resolution{}, err
	}

	root := res.InstallRoot
	rec := &fileutils.ModRecord{
		Root:     &root,
		Version:  req.File.Version,
		FileID:   req.File.FileID,
		FileName: req.File.FileName,
		Entries:  res.OutputPaths(),
		Backups:  backups,
		Extra:    req.Extra,
	}
	manifest.Put(req.IsLocal, recordKey(req.IsLocal, req.Mod, req.File.FileName), rec)
	if err := fileutils.SaveManifest(req.GameDir, manifest); err != nil {
		return Resolution{}, err
	}

	e.publish(events.InstallModFile, events.Install{
		InstallPath: res.InstallRoot,
		Name:        req.Mod.Name,
		Version:     req.File.Version,
		ModID:       req.Mod.ModID,
		FileID:      req.File.FileID,
		Entries:     rec.Entries,
	})
	e.log.Info("installed mod",
		zap.Int("mod_id", req.Mod.ModID),
		zap.String("file", req.File.FileName),
		zap.String("install_root", res.InstallRoot),
		zap.Int("entries", len(rec.Entries)),
		zap.Int("ignored", len(res.Ignored)))
	return res, nil
}

func recordKey(local bool, mod util.Mod, fileName string) string {
	if local {
		return fileName
	}
	return fileutils.ModKey(mod.ModID)
}

// alreadyInstalled keeps a mod in at most one of the two manifest tables.
func alreadyInstalled(m *fileutils.Manifest, req InstallRequest) bool {
	if _, ok := m.Get(true, req.File.FileName); ok {
		return true
	}
	if !req.IsLocal {
		_, ok := m.Get(false, fileutils.ModKey(req.Mod.ModID))
		return ok
	}
	for _, rec := range m.Mods {
		if rec != nil && rec.FileName == req.File.FileName {
			return true
		}
	}
	return false
}

// backupAssets saves every movie and splash file the install is about to
// overwrite. A backup left by an earlier install is kept as is and not recorded.
func (e *Engine) backupAssets(res Resolution) ([]string, error) {
	var saved []string
	for _, out := range res.OutputPaths() {
		if !util.HasAnySuffix(out, backedUpTypes...) {
			continue
		}
		target := filepath.Join(res.InstallRoot, filepath.FromSlash(out))
		if !fileutils.Exists(target) {
			continue
		}
		if bak := target + fileutils.BackupSuffix; fileutils.Exists(bak) {
			e.log.Warn("backup already exists, leaving it untouched", zap.String("backup", bak), zap.String("file", target))
			continue
		}
		if _, err := fileutils.BackupFile(target); err != nil {
			return nil, err
		}
		saved = append(saved, out)
	}
	return saved, nil
}

type UninstallRequest struct {
	GameDir string
	Mod     util.Mod
	// FileName keys local mods.
	FileName string
	Local    bool
	// Manifest, when set, is edited in place and left for the caller to save.
	Manifest *fileutils.Manifest
}

// Uninstall deletes the files recorded for a mod, restores backed up assets
// and removes the directories the mod left empty.
func (e *Engine) Uninstall(ctx context.Context, req UninstallRequest) error {
	if req.GameDir == "" || (req.Local && req.FileName == "") || (!req.Local && req.Mod.ModID == 0) {
		return ErrMissingInput
	}
	unlock := e.lockDir(req.GameDir)
	defer unlock()
	return e.uninstall(ctx, req.GameDir, req.Local, recordKey(req.Local, req.Mod, req.FileName), req.Manifest)
}

func (e *Engine) uninstall(ctx context.Context, gameDir string, local bool, key string, override *fileutils.Manifest) error {
	manifest := override
	if manifest == nil {
		m := fileutils.LoadManifest(gameDir)
		manifest = &m
	}
	// a cancelled uninstall keeps its record
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, ok := manifest.Remove(local, key)
	if !ok {
		if local && override != nil {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNotInstalled, key)
	}
	if override == nil {
		if err := fileutils.SaveManifest(gameDir, *manifest); err != nil {
			return err
		}
	}

	base, err := recordBase(gameDir, rec)
	if err != nil {
		return err
	}
	if err := e.removeEntries(base, rec); err != nil {
		return err
	}
	e.log.Info("uninstalled mod", zap.String("key", key), zap.String("root", base), zap.Int("entries", len(rec.Entries)))
	return nil
}

// recordBase is the directory a record's entries are relative to.
func recordBase(gameDir string, rec *fileutils.ModRecord) (string, error) {
	if rec.Root != nil && *rec.Root != "" {
		return *rec.Root, nil
	}
	game := games.Validate(gameDir)
	if !game.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownGamePath, gameDir)
	}
	first := ""
	if len(rec.Entries) > 0 {
		first, _ = splitFirst(rec.Entries[0])
	}
	return uninstallBase(ParseRoot(first, game.UnrealRoot), game), nil
}

func (e *Engine) removeEntries(base string, rec *fileutils.ModRecord) error {
	dirs := map[string]bool{}
	for _, entry := range rec.Entries {
		if strings.HasSuffix(entry, "/") {
			dirs[strings.TrimSuffix(entry, "/")] = true
			continue
		}
		for d := path.Dir(entry); d != "." && d != "/"; d = path.Dir(d) {
			dirs[d] = true
		}

		target := filepath.Join(base, filepath.FromSlash(entry))
		info, err := os.Stat(target)
		switch {
		case os.IsNotExist(err):
			e.log.Warn("installed file already gone", zap.String("path", target))
		case err != nil:
			return err
		case info.IsDir():
			dirs[entry] = true
			continue
		default:
			if err := os.Remove(target); err != nil {
				return err
			}
		}

		if util.Contains(rec.Backups, entry) {
			if err := fileutils.RestoreBackup(target); err != nil {
				return err
			}
		}
	}
	return removeEmptyDirs(base, dirs)
}

// removeEmptyDirs removes the deepest directories first so parents empty out.
func removeEmptyDirs(base string, dirs map[string]bool) error {
	list := make([]string, 0, len(dirs))
	for d := range dirs {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		di, dj := strings.Count(list[i], "/"), strings.Count(list[j], "/")
		if di != dj {
			return di > dj
		}
		return list[i] > list[j]
	})

	for _, d := range list {
		p := filepath.Join(base, filepath.FromSlash(d))
		children, err := os.ReadDir(p)
		if err != nil || len(children) > 0 {
			continue
		}
		if err := os.Remove(p); err != nil {
			return err
		}
	}
	return nil
}

// UninstallReport maps each mod key to the error its uninstall returned, or nil.
type UninstallReport map[string]error

// UninstallAll removes every remotely sourced mod of a game. A failing mod
// does not stop the others; the manifest is written once at the end.
func (e *Engine) UninstallAll(ctx context.Context, gameDir string) (UninstallReport, error) {
	if gameDir == "" {
		return nil, ErrMissingInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := e.lockDir(gameDir)
	defer unlock()

	manifest := fileutils.LoadManifest(gameDir)
	keys := make([]string, 0, len(manifest.Mods))
	for k := range manifest.Mods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	report := UninstallReport{}
	var errs []error
	for _, key := range keys {
		err := e.uninstall(ctx, gameDir, false, key, &manifest)
		report[key] = err
		if err != nil {
			e.log.Warn("uninstall failed", zap.String("key", key), zap.Error(err))
			errs = append(errs, fmt.Errorf("mod %s: %w", key, err))
		}
	}
	if err := fileutils.SaveManifest(gameDir, manifest); err != nil {
		errs = append(errs, err)
	}
	return report, errors.Join(errs...)
}

// IsInstalled reports whether mod has a record. With file set the record
// must also be for that file.
func (e *Engine) IsInstalled(gameDir string, mod util.Mod, file *util.File) bool {
	manifest := fileutils.LoadManifest(gameDir)
	rec, ok := manifest.Get(false, fileutils.ModKey(mod.ModID))
	if !ok {
		return false
	}
	return file == nil || rec.FileName == file.FileName
}

// IsLocalInstalled reports whether a local archive has a record.
func (e *Engine) IsLocalInstalled(gameDir, fileName string) bool {
	manifest := fileutils.LoadManifest(gameDir)
	_, ok := manifest.Get(true, fileName)
	return ok
}

// ValidateModFiles reports, for every recorded entry of an installed mod,
// whether it is still on disk.
func (e *Engine) ValidateModFiles(gameDir string, mod util.Mod, file util.File) (map[string]bool, error) {
	manifest := fileutils.LoadManifest(gameDir)
	rec, ok := manifest.Get(false, fileutils.ModKey(mod.ModID))
	if !ok || rec.FileName != file.FileName {
		return nil, fmt.Errorf("%w: %d", ErrNotInstalled, mod.ModID)
	}
	base, err := recordBase(gameDir, rec)
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool, len(rec.Entries))
	for _, entry := range rec.Entries {
		result[entry] = fileutils.Exists(filepath.Join(base, filepath.FromSlash(entry)))
	}
	return result, nil
}
