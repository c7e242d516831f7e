package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mrnavastar/uemodman/api"
	"github.com/mrnavastar/uemodman/events"
	"github.com/mrnavastar/uemodman/util"
	"github.com/mrnavastar/uemodman/util/fileutils"
)

func newFileServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	srv := newFileServer(t, map[string][]byte{"/files/cool.zip": []byte("zipdata")})
	bus := events.NewBus()
	seen := record(bus, events.DownloadModFile)
	e := NewEngine(Options{Client: api.NewClient(api.Options{}), Bus: bus, RemoteGameID: "palworld"})

	cache := t.TempDir()
	mod := util.Mod{ModID: 42}
	file := util.File{FileID: 7, FileName: "cool.zip", Version: "1.0"}
	if e.IsDownloaded(cache, file) {
		t.Fatal("IsDownloaded before download")
	}
	if err := e.Download(ctx, cache, srv.URL+"/files/cool.zip", mod, file); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !e.IsDownloaded(cache, file) {
		t.Error("IsDownloaded = false after download")
	}
	if got := readFile(t, filepath.Join(cache, "cool.zip")); got != "zipdata" {
		t.Errorf("archive = %q", got)
	}
	if rec := fileutils.LoadCacheManifest(cache)["palworld"]["42"]["7"]; rec.Zip != "cool.zip" || rec.Ver != "1.0" {
		t.Errorf("cache record = %+v", rec)
	}

	progress := seen.get(events.DownloadModFile)
	if len(progress) == 0 {
		t.Fatal("no download-mod-file events")
	}
	last := progress[len(progress)-1].(events.Progress)
	if last.ModID != 42 || last.FileID != 7 || last.Percentage != 100 {
		t.Errorf("last progress = %+v", last)
	}

	err := e.Download(ctx, cache, srv.URL+"/files/cool.zip", mod, file)
	if !errors.Is(err, ErrAlreadyDownloaded) {
		t.Errorf("second Download: err = %v, want ErrAlreadyDownloaded", err)
	}

	if err := e.RemoveFromCache(cache, mod, file); err != nil {
		t.Fatalf("RemoveFromCache: %v", err)
	}
	if e.IsDownloaded(cache, file) {
		t.Error("archive still cached")
	}
	if _, ok := fileutils.LoadCacheManifest(cache)["palworld"]["42"]; ok {
		t.Error("cache manifest still lists mod 42")
	}
}

func TestDownload_Failures(t *testing.T) {
	ctx := context.Background()
	srv := newFileServer(t, nil)
	e := NewEngine(Options{})
	cache := t.TempDir()

	if err := e.Download(ctx, cache, "", util.Mod{ModID: 1}, util.File{FileName: "x.zip"}); !errors.Is(err, ErrMissingInput) {
		t.Errorf("no url: err = %v, want ErrMissingInput", err)
	}
	if err := e.Download(ctx, cache, srv.URL+"/missing.zip", util.Mod{ModID: 1}, util.File{FileName: "x.zip"}); err == nil {
		t.Error("404 download succeeded")
	}
	if e.IsDownloaded(cache, util.File{FileName: "x.zip"}) {
		t.Error("failed download left a file")
	}
	if len(fileutils.LoadCacheManifest(cache)) != 0 {
		t.Error("failed download was recorded")
	}
}

func TestDownloadFile(t *testing.T) {
	srv := newFileServer(t, map[string][]byte{"/patches/settings.ini": []byte("[General]")})
	bus := events.NewBus()
	seen := record(bus, events.DownloadFile)
	e := NewEngine(Options{Bus: bus})

	dir := t.TempDir()
	dest, err := e.DownloadFile(context.Background(), dir, srv.URL+"/patches/settings.ini?raw=1")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if dest != filepath.Join(dir, "settings.ini") {
		t.Errorf("dest = %q", dest)
	}
	if got := readFile(t, dest); got != "[General]" {
		t.Errorf("content = %q", got)
	}
	if len(seen.get(events.DownloadFile)) == 0 {
		t.Error("no download-file events")
	}

	if _, err := e.DownloadFile(context.Background(), dir, srv.URL+"/"); err == nil {
		t.Error("URL without a file name accepted")
	}
}
