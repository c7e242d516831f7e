package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		fmt.Fprint(w, "0123456789")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "mod.zip")
	var last float64
	c := NewClient(Options{})
	err := c.Download(context.Background(), srv.URL+"/mod.zip", dest, func(_, _ int64, p float64) { last = p })
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "0123456789" {
		t.Errorf("data = %q", data)
	}
	if last != 100 {
		t.Errorf("last percentage = %v, want 100", last)
	}
}

func TestDownload_UnknownLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "chunked")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "mod.zip")
	var last float64
	c := NewClient(Options{})
	if err := c.Download(context.Background(), srv.URL, dest, func(_, _ int64, p float64) { last = p }); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if last != -1 {
		t.Errorf("percentage = %v, want -1 for unknown length", last)
	}
}

func TestDownload_BadStatusLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "mod.zip")
	c := NewClient(Options{})
	if err := c.Download(context.Background(), srv.URL, dest, nil); err == nil {
		t.Fatal("expected error for 404")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("file created for failed download")
	}
}

func TestLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/UE4SS-RE/RE-UE4SS/releases/latest" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"tag_name":"v3.0.1","assets":[
			{"name":"zDEV-UE4SS_v3.0.1.zip","browser_download_url":"https://x/dev.zip","size":9},
			{"name":"UE4SS_v3.0.1.zip","browser_download_url":"https://x/UE4SS_v3.0.1.zip","size":5}]}`)
	}))
	defer srv.Close()

	c := NewClient(Options{GitHubAPI: srv.URL})
	rel, err := c.LatestRelease(context.Background(), "UE4SS-RE/RE-UE4SS")
	if err != nil {
		t.Fatalf("LatestRelease: %v", err)
	}
	if rel.TagName != "v3.0.1" || len(rel.Assets) != 2 {
		t.Fatalf("release = %+v", rel)
	}
	asset, ok := rel.FindAsset("UE4SS_v3.0.1.zip")
	if !ok || asset.Size != 5 {
		t.Errorf("FindAsset = %+v, %v", asset, ok)
	}
}

func TestParseRelease_Invalid(t *testing.T) {
	if _, err := parseRelease([]byte("not json")); err == nil {
		t.Error("expected error for invalid json")
	}
	if _, err := parseRelease([]byte(`{"assets":[]}`)); err == nil {
		t.Error("expected error without tag_name")
	}
}
