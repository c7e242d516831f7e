package fileutils

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrnavastar/uemodman/util"
)

func TestLoadManifest_MissingAndBroken(t *testing.T) {
	dir := t.TempDir()
	m := LoadManifest(dir)
	if len(m.Mods) != 0 || len(m.LocalMods) != 0 {
		t.Errorf("missing manifest = %+v", m)
	}

	if err := ioutil.WriteFile(filepath.Join(dir, ManifestFileName), []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	m = LoadManifest(dir)
	if len(m.Mods) != 0 {
		t.Errorf("broken manifest = %+v", m)
	}
}

func TestManifest_RoundTripKeepsExtra(t *testing.T) {
	dir := t.TempDir()
	root := "/games/pal/Pal/Content/Paks/~mods"

	var m Manifest
	m.Put(false, ModKey(42), &ModRecord{
		Root:     &root,
		Version:  "1.2.0",
		FileID:   7,
		FileName: "cool.zip",
		Entries:  []string{"cool.pak"},
		Extra:    map[string]interface{}{"pinned": true},
	})
	m.Put(true, "local.zip", &ModRecord{FileName: "local.zip"})
	if err := SaveManifest(dir, m); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	raw, _ := ioutil.ReadFile(filepath.Join(dir, ManifestFileName))
	if !strings.Contains(string(raw), "\n    \"") {
		t.Errorf("manifest not indented with 4 spaces:\n%s", raw)
	}

	got := LoadManifest(dir)
	rec, ok := got.Get(false, "42")
	if !ok {
		t.Fatal("record 42 missing after reload")
	}
	if rec.Root == nil || *rec.Root != root || rec.FileID != 7 || len(rec.Entries) != 1 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Extra["pinned"] != true {
		t.Errorf("extra = %v", rec.Extra)
	}
	local, ok := got.Get(true, "local.zip")
	if !ok || local.Root != nil {
		t.Errorf("local record = %+v, %v", local, ok)
	}

	removed, ok := got.Remove(false, "42")
	if !ok || removed.FileName != "cool.zip" {
		t.Errorf("Remove = %+v, %v", removed, ok)
	}
	if _, ok := got.Get(false, "42"); ok {
		t.Error("record still present after Remove")
	}
}

func TestCacheEntries(t *testing.T) {
	dir := t.TempDir()
	mod := util.Mod{ModID: 5}
	a := util.File{FileID: 1, FileName: "a.zip", Version: "1.0"}

	if err := AddCacheEntry(dir, "palworld", mod, a); err != nil {
		t.Fatalf("AddCacheEntry: %v", err)
	}
	m := LoadCacheManifest(dir)
	if m["palworld"]["5"]["1"].Zip != "a.zip" {
		t.Fatalf("cache manifest = %+v", m)
	}

	if err := RemoveCacheEntry(dir, "palworld", mod, &a); err != nil {
		t.Fatalf("RemoveCacheEntry: %v", err)
	}
	m = LoadCacheManifest(dir)
	if _, ok := m["palworld"]["5"]; ok {
		t.Errorf("mod 5 still cached: %+v", m)
	}
}

func TestBackupRestore(t *testing.T) {
	dir := t.TempDir()
	movie := filepath.Join(dir, "intro.bk2")
	if err := ioutil.WriteFile(movie, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	backup, err := BackupFile(movie)
	if err != nil {
		t.Fatalf("BackupFile: %v", err)
	}
	if err := ioutil.WriteFile(movie, []byte("replaced"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := RestoreBackup(movie); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}

	data, _ := ioutil.ReadFile(movie)
	if string(data) != "original" {
		t.Errorf("restored content = %q", data)
	}
	if _, err := os.Stat(backup); !os.IsNotExist(err) {
		t.Error("backup still exists after restore")
	}
	if err := RestoreBackup(movie); err == nil {
		t.Error("restore without backup should fail")
	}
}

func TestWriteCounter_UnknownTotal(t *testing.T) {
	var got []float64
	wc := &WriteCounter{OnProgress: func(_, _ int64, p float64) { got = append(got, p) }}
	wc.Write(make([]byte, 10))
	if len(got) != 1 || got[0] != -1 {
		t.Errorf("percentages = %v", got)
	}

	wc = &WriteCounter{Total: 20}
	wc.Write(make([]byte, 5))
	if wc.Percentage() != 25 {
		t.Errorf("Percentage = %v", wc.Percentage())
	}
}
