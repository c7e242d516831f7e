package fileutils

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/mrnavastar/uemodman/util"
)

// ManifestFileName is used both in game directories and in cache directories.
const ManifestFileName = "uemodman.config.json"

// ModRecord is what an install wrote. Entries is the only record of what to
// delete on uninstall.
type ModRecord struct {
	// Root is the absolute install root; nil means relative to the game directory.
	Root     *string
	Version  string
	FileID   int
	FileName string
	Entries  []string
	// Backups lists the entries whose previous file was saved with BackupSuffix.
	Backups []string
	// Extra holds caller supplied properties stored alongside the record.
	Extra map[string]interface{}
}

type modRecordJSON struct {
	Root     *string  `json:"root"`
	Version  string   `json:"version"`
	FileID   int      `json:"file_id"`
	FileName string   `json:"file_name"`
	Entries  []string `json:"entries"`
	Backups  []string `json:"backups"`
}

var recordKeys = []string{"root", "version", "file_id", "file_name", "entries", "backups"}

func (r ModRecord) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	for k, v := range r.Extra {
		out[k] = v
	}
	entries := r.Entries
	if entries == nil {
		entries = []string{}
	}
	out["root"] = r.Root
	out["version"] = r.Version
	out["file_id"] = r.FileID
	out["file_name"] = r.FileName
	out["entries"] = entries
	if len(r.Backups) > 0 {
		out["backups"] = r.Backups
	}
	return json.Marshal(out)
}

func (r *ModRecord) UnmarshalJSON(data []byte) error {
	var known modRecordJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range recordKeys {
		delete(all, k)
	}
	*r = ModRecord{
		Root:     known.Root,
		Version:  known.Version,
		FileID:   known.FileID,
		FileName: known.FileName,
		Entries:  known.Entries,
		Backups:  known.Backups,
	}
	if len(all) > 0 {
		r.Extra = all
	}
	return nil
}

// FrameworkRecord remembers which UE4SS build was installed.
type FrameworkRecord struct {
	Version string       `json:"version"`
	Zip     string       `json:"zip"`
	Patches []util.Patch `json:"patches,omitempty"`
}

// Manifest is the per game directory record of installed mods. Mods is keyed
// by mod id and LocalMods by archive file name.
type Manifest struct {
	Mods      map[string]*ModRecord `json:"mods,omitempty"`
	LocalMods map[string]*ModRecord `json:"local_mods,omitempty"`
	Framework *FrameworkRecord      `json:"ue4ss,omitempty"`
}

func ModKey(modID int) string { return strconv.Itoa(modID) }

func (m *Manifest) table(local bool) map[string]*ModRecord {
	if local {
		if m.LocalMods == nil {
			m.LocalMods = map[string]*ModRecord{}
		}
		return m.LocalMods
	}
	if m.Mods == nil {
		m.Mods = map[string]*ModRecord{}
	}
	return m.Mods
}

func (m *Manifest) Get(local bool, key string) (*ModRecord, bool) {
	rec, ok := m.table(local)[key]
	return rec, ok && rec != nil
}

func (m *Manifest) Put(local bool, key string, rec *ModRecord) {
	m.table(local)[key] = rec
}

// Remove deletes and returns the record stored under key.
func (m *Manifest) Remove(local bool, key string) (*ModRecord, bool) {
	t := m.table(local)
	rec, ok := t[key]
	delete(t, key)
	return rec, ok && rec != nil
}

// LoadManifest reads the manifest of a game directory. A missing or broken
// file reads as an empty manifest.
func LoadManifest(dir string) Manifest {
	var m Manifest
	data, err := ioutil.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return Manifest{}
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}
	}
	return m
}

func SaveManifest(dir string, m Manifest) error {
	return writeJSON(dir, m)
}

// CacheRecord is one downloaded archive.
type CacheRecord struct {
	Ver string `json:"ver"`
	Zip string `json:"zip"`
}

// CacheManifest is keyed by remote game id, then mod id, then file id.
type CacheManifest map[string]map[string]map[string]CacheRecord

func LoadCacheManifest(dir string) CacheManifest {
	m := CacheManifest{}
	data, err := ioutil.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return CacheManifest{}
	}
	return m
}

func SaveCacheManifest(dir string, m CacheManifest) error {
	return writeJSON(dir, m)
}

// AddCacheEntry records a downloaded file, replacing any other file of the same mod.
func AddCacheEntry(dir, gameID string, mod util.Mod, file util.File) error {
	m := LoadCacheManifest(dir)
	if m[gameID] == nil {
		m[gameID] = map[string]map[string]CacheRecord{}
	}
	m[gameID][ModKey(mod.ModID)] = map[string]CacheRecord{
		strconv.Itoa(file.FileID): {Ver: file.Version, Zip: file.FileName},
	}
	return SaveCacheManifest(dir, m)
}

// RemoveCacheEntry edits the cache manifest in place. A mod left with no
// files is dropped too.
func RemoveCacheEntry(dir, gameID string, mod util.Mod, file *util.File) error {
	path := filepath.Join(dir, ManifestFileName)
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	modKey := ModKey(mod.ModID)
	if file != nil {
		data = jsonparser.Delete(data, gameID, modKey, strconv.Itoa(file.FileID))
		remaining := 0
		_ = jsonparser.ObjectEach(data, func(_, _ []byte, _ jsonparser.ValueType, _ int) error {
			remaining++
			return nil
		}, gameID, modKey)
		if remaining > 0 {
			return ioutil.WriteFile(path, data, 0644)
		}
	}
	data = jsonparser.Delete(data, gameID, modKey)
	return ioutil.WriteFile(path, data, 0644)
}

func writeJSON(dir string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(filepath.Join(dir, ManifestFileName), data, 0644)
}
