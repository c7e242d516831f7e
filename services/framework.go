package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrnavastar/uemodman/archive"
	"github.com/mrnavastar/uemodman/events"
	"github.com/mrnavastar/uemodman/games"
	"github.com/mrnavastar/uemodman/util"
	"github.com/mrnavastar/uemodman/util/fileutils"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
)

const (
	FrameworkRepo             = "UE4SS-RE/RE-UE4SS"
	DefaultFrameworkVersion   = "v3.0.1"
	DefaultFrameworkReleases  = "https://github.com/" + FrameworkRepo + "/releases"
	frameworkArchiveFmt       = "UE4SS_%s.zip"
	frameworkLatestAssetMatch = "UE4SS_v%s.zip"
)

type FrameworkOptions struct {
	// Version is a release tag such as v3.0.1.
	Version string
	Zip     string
	Patches []util.Patch
	// Latest asks the release listing for the newest build instead.
	Latest bool
}

// frameworkBuild is one resolved framework download.
type frameworkBuild struct {
	Version string
	Zip     string
	URL     string
}

func (e *Engine) resolveFramework(ctx context.Context, opts FrameworkOptions) (frameworkBuild, error) {
	if opts.Latest {
		release, err := e.client.LatestRelease(ctx, FrameworkRepo)
		if err != nil {
			return frameworkBuild{}, err
		}
		version := strings.TrimPrefix(release.TagName, "v")
		asset, ok := release.FindAsset(fmt.Sprintf(frameworkLatestAssetMatch, version))
		if !ok {
			return frameworkBuild{}, fmt.Errorf("no framework archive in release %s", release.TagName)
		}
		return frameworkBuild{Version: release.TagName, Zip: asset.Name, URL: asset.BrowserDownloadURL}, nil
	}

	version := opts.Version
	if version == "" {
		version = DefaultFrameworkVersion
	}
	zip := opts.Zip
	if zip == "" {
		zip = fmt.Sprintf(frameworkArchiveFmt, version)
	}
	return frameworkBuild{
		Version: version,
		Zip:     zip,
		URL:     e.frameworkReleases + "/download/" + version + "/" + zip,
	}, nil
}

func (e *Engine) frameworkEvent(phase string, data any) {
	e.publish(events.FrameworkProcess, events.Framework{Phase: phase, Data: data})
}

// InstallFramework downloads the UE4SS archive into cacheDir, extracts it into
// the game's binaries folder and applies the patches in order.
func (e *Engine) InstallFramework(ctx context.Context, cacheDir, gameDir string, opts FrameworkOptions) error {
	err := e.installFramework(ctx, cacheDir, gameDir, opts)
	if err != nil {
		e.frameworkEvent(events.PhaseError, err.Error())
	}
	return err
}

func (e *Engine) installFramework(ctx context.Context, cacheDir, gameDir string, opts FrameworkOptions) error {
	if cacheDir == "" || gameDir == "" {
		return ErrMissingInput
	}
	unlock := e.lockDir(gameDir)
	defer unlock()

	game := games.Validate(gameDir)
	if !game.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownGamePath, gameDir)
	}
	build, err := e.resolveFramework(ctx, opts)
	if err != nil {
		return err
	}

	manifest := fileutils.LoadManifest(gameDir)
	archivePath := filepath.Join(cacheDir, build.Zip)
	if manifest.Framework != nil && game.HasFramework && compareVersions(manifest.Framework.Version, build.Version) > 0 {
		e.log.Warn("downgrading framework",
			zap.String("installed", manifest.Framework.Version),
			zap.String("requested", build.Version))
	}
	// archives are immutable per release, so a cached one is reused
	if !fileutils.Exists(archivePath) {
		if _, err := e.downloadFile(ctx, cacheDir, build.URL, func(p events.Progress) {
			e.frameworkEvent(events.PhaseDownload, p)
		}); err != nil {
			return err
		}
	}

	r, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()
	err = archive.ExtractAll(r, game.FrameworkRoot, archive.ExtractOptions{
		Overwrite: true,
		Progress: func(p archive.Progress) {
			e.frameworkEvent(events.PhaseExtract, events.Extract{
				Entry:      p.Entry,
				OutputPath: p.OutputPath,
				Index:      p.Index,
				Total:      p.Total,
			})
		},
	})
	if err != nil {
		return err
	}

	for _, patch := range opts.Patches {
		src, err := e.downloadFile(ctx, cacheDir, patch.URL, func(p events.Progress) {
			e.frameworkEvent(events.PhaseDownload, p)
		})
		if err != nil {
			return err
		}
		if err := fileutils.CopyFile(src, filepath.Join(gameDir, filepath.FromSlash(patch.Dest))); err != nil {
			return fmt.Errorf("patch %s: %w", patch.Dest, err)
		}
	}

	manifest.Framework = &fileutils.FrameworkRecord{Version: build.Version, Zip: build.Zip, Patches: opts.Patches}
	if err := fileutils.SaveManifest(gameDir, manifest); err != nil {
		return err
	}
	e.frameworkEvent(events.PhaseComplete, build.Version)
	e.log.Info("installed framework", zap.String("version", build.Version), zap.String("root", game.FrameworkRoot))
	return nil
}

// UninstallFramework deletes every file of the framework archive from the
// binaries folder, then the patched files. Zip and Patches fall back to
// what the manifest recorded at install time.
func (e *Engine) UninstallFramework(ctx context.Context, cacheDir, gameDir string, opts FrameworkOptions) error {
	err := e.uninstallFramework(ctx, cacheDir, gameDir, opts)
	if err != nil {
		e.frameworkEvent(events.PhaseError, err.Error())
	}
	return err
}

func (e *Engine) uninstallFramework(ctx context.Context, cacheDir, gameDir string, opts FrameworkOptions) error {
	if cacheDir == "" || gameDir == "" {
		return ErrMissingInput
	}
	unlock := e.lockDir(gameDir)
	defer unlock()

	game := games.Validate(gameDir)
	if !game.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownGamePath, gameDir)
	}

	manifest := fileutils.LoadManifest(gameDir)
	zip, patches := opts.Zip, opts.Patches
	if rec := manifest.Framework; rec != nil {
		if zip == "" {
			zip = rec.Zip
		}
		if patches == nil {
			patches = rec.Patches
		}
	}
	if zip == "" {
		build, err := e.resolveFramework(ctx, opts)
		if err != nil {
			return err
		}
		zip = build.Zip
	}

	r, err := archive.Open(filepath.Join(cacheDir, zip))
	if err != nil {
		return err
	}
	defer r.Close()
	entries, err := r.Entries()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir {
			continue
		}
		target := filepath.Join(game.FrameworkRoot, filepath.FromSlash(entry.Name))
		if err := os.Remove(target); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			e.log.Warn("framework file already gone", zap.String("path", target))
			continue
		}
		e.frameworkEvent(events.PhaseDelete, target)
	}

	for _, patch := range patches {
		target := filepath.Join(gameDir, filepath.FromSlash(patch.Dest))
		if err := os.Remove(target); err != nil {
			e.log.Warn("could not remove patched file", zap.String("path", target), zap.Error(err))
			continue
		}
		e.frameworkEvent(events.PhaseDelete, target)
	}

	manifest.Framework = nil
	if err := fileutils.SaveManifest(gameDir, manifest); err != nil {
		return err
	}
	e.frameworkEvent(events.PhaseUninstalled, zip)
	e.log.Info("uninstalled framework", zap.String("zip", zip), zap.String("root", game.FrameworkRoot))
	return nil
}

// FrameworkStatus is the installed framework next to the newest release.
type FrameworkStatus struct {
	Installed string
	Latest    string
	// UpdateAvailable is set when Latest is a newer semantic version.
	UpdateAvailable bool
}

// CheckFramework compares the recorded framework version with the latest release.
func (e *Engine) CheckFramework(ctx context.Context, gameDir string) (FrameworkStatus, error) {
	var status FrameworkStatus
	manifest := fileutils.LoadManifest(gameDir)
	if manifest.Framework != nil {
		status.Installed = manifest.Framework.Version
	}
	build, err := e.resolveFramework(ctx, FrameworkOptions{Latest: true})
	if err != nil {
		return status, err
	}
	status.Latest = build.Version
	status.UpdateAvailable = status.Installed == "" || compareVersions(status.Installed, status.Latest) < 0
	return status, nil
}

// compareVersions compares release tags, accepting them with or without the v.
// Tags that are not semantic versions compare as lower than any valid one.
func compareVersions(a, b string) int {
	return semver.Compare(canonicalVersion(a), canonicalVersion(b))
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
