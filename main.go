package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/text"
	"github.com/mrnavastar/uemodman/api"
	"github.com/mrnavastar/uemodman/archive"
	"github.com/mrnavastar/uemodman/events"
	"github.com/mrnavastar/uemodman/games"
	"github.com/mrnavastar/uemodman/services"
	"github.com/mrnavastar/uemodman/util"
	"github.com/mrnavastar/uemodman/util/config"
	"github.com/mrnavastar/uemodman/util/fileutils"
	"github.com/mrnavastar/uemodman/util/logging"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	cfg    *config.Config
	logger *zap.Logger
	engine *services.Engine
)

func gameDir(c *cli.Context) (string, error) {
	dir := c.String("game")
	if dir == "" {
		dir = cfg.GameDir
	}
	if dir == "" {
		return "", errors.New("no game directory, pass --game or run init")
	}
	return dir, nil
}

func cacheDir(c *cli.Context) (string, error) {
	dir := c.String("cache")
	if dir == "" {
		dir = cfg.CacheDir
	}
	if dir == "" {
		return "", errors.New("no cache directory, pass --cache or run init")
	}
	return dir, nil
}

func intArg(c *cli.Context, i int, name string) (int, error) {
	n, err := strconv.Atoi(c.Args().Get(i))
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %q", name, c.Args().Get(i))
	}
	return n, nil
}

type modRow struct{ id, version, file string }

// modRows lists the installed mods of a manifest sorted by file name.
// Records nulled out by hand are skipped.
func modRows(manifest fileutils.Manifest) []modRow {
	var rows []modRow
	for id := range manifest.Mods {
		if rec, ok := manifest.Get(false, id); ok {
			rows = append(rows, modRow{id, rec.Version, rec.FileName})
		}
	}
	for name := range manifest.LocalMods {
		if rec, ok := manifest.Get(true, name); ok {
			rows = append(rows, modRow{"local", rec.Version, name})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].file < rows[j].file })
	return rows
}

func printGame(g games.ValidatedGame) {
	width := len("FRAMEWORK:") + 2
	row := func(k, v string) {
		fmt.Println(text.AlignDefault.Apply(k, width) + v)
	}
	fmt.Println()
	row("PATH:", text.Bold.Sprint(g.Path))
	row("GAME:", g.Kind.String())
	if g.Valid() {
		row("ID:", g.GameID)
		row("PLATFORM:", string(g.Platform)+" "+string(g.LaunchType))
		row("CONTENT:", g.ContentPath)
		row("FRAMEWORK:", fmt.Sprintf("%v (%s)", g.HasFramework, g.FrameworkRoot))
	}
	fmt.Println()
}

func main() {
	app := &cli.App{
		Name:  "uemodman",
		Usage: "Install and manage mods for Unreal Engine games",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Aliases: []string{"g"}, Usage: "game directory"},
			&cli.StringFlag{Name: "cache", Aliases: []string{"c"}, Usage: "download cache directory"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Before: func(c *cli.Context) error {
			cfg = config.Load()
			if lvl := c.String("log-level"); lvl != "" {
				cfg.LogLevel = lvl
			}
			var err error
			logger, err = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err != nil {
				return err
			}
			bus := events.NewBus()
			watchProgress(bus)
			engine = services.NewEngine(services.Options{
				Client: api.NewClient(api.Options{
					Timeout:     cfg.HTTPTimeout,
					Retries:     cfg.HTTPRetries,
					UserAgent:   cfg.UserAgent,
					GitHubToken: os.Getenv("GITHUB_TOKEN"),
					Logger:      logger,
				}),
				Bus:          bus,
				Logger:       logger,
				RemoteGameID: cfg.RemoteGameID,
			})
			return nil
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Remember the game and cache directories",
				ArgsUsage: "<game dir> <cache dir>",
				Action: func(c *cli.Context) error {
					game, cache := c.Args().Get(0), c.Args().Get(1)
					if game == "" || cache == "" {
						return cli.ShowCommandHelp(c, "init")
					}
					validated := games.Validate(game)
					if !validated.Valid() {
						pterm.Warning.Printfln("%s is not a recognised game (%s)", game, validated.Kind)
					}
					if err := config.Save(game, cache); err != nil {
						return err
					}
					pterm.Success.Println("Saved.")
					return nil
				},
			},
			{
				Name:      "validate",
				Usage:     "Show what game a directory holds",
				ArgsUsage: "[dir]",
				Action: func(c *cli.Context) error {
					dir := c.Args().Get(0)
					if dir == "" {
						d, err := gameDir(c)
						if err != nil {
							return err
						}
						dir = d
					}
					printGame(games.Validate(dir))
					return nil
				},
			},
			{
				Name:  "locate",
				Usage: "Find supported games in the Steam libraries",
				Action: func(c *cli.Context) error {
					found, err := games.LocateSteamGames(games.SteamRoots())
					if err != nil {
						return err
					}
					if len(found) == 0 {
						pterm.Info.Println("No supported games found.")
						return nil
					}
					lname := len("NAME:")
					for _, g := range found {
						if len(g.Descriptor.Name) > lname {
							lname = len(g.Descriptor.Name)
						}
					}
					fmt.Println()
					fmt.Println(text.AlignDefault.Apply("NAME:", lname+2) + text.AlignDefault.Apply("APP:", 10) + "PATH:")
					for _, g := range found {
						fmt.Println(text.AlignDefault.Apply(text.Bold.Sprint(g.Descriptor.Name), lname+2) +
							text.AlignDefault.Apply(strconv.Itoa(g.AppID), 10) + g.Path)
					}
					fmt.Println()
					return nil
				},
			},
			{
				Name:      "entries",
				Usage:     "Print the entries of an archive as JSON",
				ArgsUsage: "<archive>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "resolve", Usage: "also resolve output paths against the game directory"},
					&cli.StringFlag{Name: "root", Usage: "force the install root, eg LogicMods/"},
				},
				Action: func(c *cli.Context) error {
					r, err := archive.Open(c.Args().Get(0))
					if err != nil {
						return err
					}
					defer r.Close()
					list, err := r.Entries()
					if err != nil {
						return err
					}

					var out interface{} = list
					if c.Bool("resolve") {
						dir, err := gameDir(c)
						if err != nil {
							return err
						}
						res, err := engine.ResolveInstallPath(dir, list, c.String("root"), r)
						if err != nil {
							return err
						}
						out = map[string]interface{}{
							"install_path": res.InstallRoot,
							"ignored":      res.Ignored,
							"entries":      res.Entries,
						}
					}
					data, err := json.MarshalIndent(out, "", "    ")
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				},
			},
			{
				Name:      "download",
				Usage:     "Download a mod file into the cache",
				ArgsUsage: "<url> <mod id> <file id> <file name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "version", Usage: "file version to record"},
				},
				Action: func(c *cli.Context) error {
					cache, err := cacheDir(c)
					if err != nil {
						return err
					}
					modID, err := intArg(c, 1, "mod id")
					if err != nil {
						return err
					}
					fileID, err := intArg(c, 2, "file id")
					if err != nil {
						return err
					}
					file := util.File{FileID: fileID, FileName: c.Args().Get(3), Version: c.String("version")}
					err = engine.Download(c.Context, cache, c.Args().Get(0), util.Mod{ModID: modID}, file)
					if errors.Is(err, services.ErrAlreadyDownloaded) {
						pterm.Info.Println(file.FileName + " is already downloaded")
						return nil
					}
					return err
				},
			},
			{
				Name:      "install",
				Usage:     "Install a downloaded mod file into the game",
				ArgsUsage: "<file name>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "mod", Usage: "mod id"},
					&cli.IntFlag{Name: "file-id", Usage: "file id"},
					&cli.StringFlag{Name: "name", Usage: "mod name"},
					&cli.StringFlag{Name: "version", Usage: "file version"},
					&cli.StringFlag{Name: "root", Usage: "force the install root, eg LogicMods/"},
					&cli.BoolFlag{Name: "local", Usage: "install an archive that did not come from the mod site"},
				},
				Action: func(c *cli.Context) error {
					game, err := gameDir(c)
					if err != nil {
						return err
					}
					cache, err := cacheDir(c)
					if err != nil {
						return err
					}
					_, err = engine.Install(c.Context, services.InstallRequest{
						CacheDir:   cache,
						GameDir:    game,
						Mod:        util.Mod{ModID: c.Int("mod"), Name: c.String("name")},
						File:       util.File{FileID: c.Int("file-id"), FileName: c.Args().Get(0), Version: c.String("version")},
						IsLocal:    c.Bool("local"),
						ForcedRoot: c.String("root"),
					})
					if errors.Is(err, services.ErrAlreadyInstalled) {
						pterm.Info.Println(c.Args().Get(0) + " is already installed")
						return nil
					}
					return err
				},
			},
			{
				Name:      "uninstall",
				Usage:     "Remove an installed mod",
				ArgsUsage: "<mod id | file name with --local>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "local", Usage: "the argument is a local archive name"},
				},
				Action: func(c *cli.Context) error {
					game, err := gameDir(c)
					if err != nil {
						return err
					}
					req := services.UninstallRequest{GameDir: game, Local: c.Bool("local")}
					if req.Local {
						req.FileName = c.Args().Get(0)
					} else if req.Mod.ModID, err = intArg(c, 0, "mod id"); err != nil {
						return err
					}
					if err := engine.Uninstall(c.Context, req); err != nil {
						return err
					}
					pterm.Success.Println("Uninstalled " + c.Args().Get(0))
					return nil
				},
			},
			{
				Name:  "uninstall-all",
				Usage: "Remove every mod installed from the mod site",
				Action: func(c *cli.Context) error {
					game, err := gameDir(c)
					if err != nil {
						return err
					}
					report, err := engine.UninstallAll(c.Context, game)
					keys := make([]string, 0, len(report))
					for k := range report {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					for _, k := range keys {
						if report[k] != nil {
							pterm.Error.Printfln("%s: %v", k, report[k])
						} else {
							pterm.Success.Println("Uninstalled " + k)
						}
					}
					return err
				},
			},
			{
				Name:      "verify",
				Usage:     "Check that the files of an installed mod are still present",
				ArgsUsage: "<mod id> <file name>",
				Action: func(c *cli.Context) error {
					game, err := gameDir(c)
					if err != nil {
						return err
					}
					modID, err := intArg(c, 0, "mod id")
					if err != nil {
						return err
					}
					result, err := engine.ValidateModFiles(game, util.Mod{ModID: modID}, util.File{FileName: c.Args().Get(1)})
					if err != nil {
						return err
					}
					paths := make([]string, 0, len(result))
					for p := range result {
						paths = append(paths, p)
					}
					sort.Strings(paths)
					missing := 0
					for _, p := range paths {
						if result[p] {
							fmt.Println(text.FgGreen.Sprint("ok      ") + p)
						} else {
							missing++
							fmt.Println(text.FgRed.Sprint("missing ") + p)
						}
					}
					if missing > 0 {
						return fmt.Errorf("%d of %d files missing", missing, len(paths))
					}
					return nil
				},
			},
			{
				Name:  "lsmod",
				Usage: "List mods installed in the game",
				Action: func(c *cli.Context) error {
					game, err := gameDir(c)
					if err != nil {
						return err
					}
					manifest := fileutils.LoadManifest(game)

					rows := modRows(manifest)

					lid, lversion := len("ID:"), len("VERSION:")
					for _, r := range rows {
						if len(r.id) > lid {
							lid = len(r.id)
						}
						if len(r.version) > lversion {
							lversion = len(r.version)
						}
					}
					fmt.Println()
					fmt.Println(text.AlignDefault.Apply("ID:", lid+2) + text.AlignDefault.Apply("VERSION:", lversion+2) + "FILENAME:")
					for _, r := range rows {
						fmt.Println(text.AlignDefault.Apply(text.Bold.Sprint(r.id), lid+2) + text.AlignDefault.Apply(text.Underline.Sprint(r.version), lversion+2) + r.file)
					}
					if fw := manifest.Framework; fw != nil {
						fmt.Println()
						fmt.Println("UE4SS " + fw.Version + " (" + fw.Zip + ")")
					}
					fmt.Println()
					return nil
				},
			},
			{
				Name:  "cache",
				Usage: "Inspect the download cache",
				Subcommands: []*cli.Command{
					{
						Name:    "ls",
						Aliases: []string{"list"},
						Usage:   "List cached mod files",
						Action: func(c *cli.Context) error {
							cache, err := cacheDir(c)
							if err != nil {
								return err
							}
							fmt.Println()
							fmt.Println(text.AlignDefault.Apply("GAME:", 16) + text.AlignDefault.Apply("MOD:", 10) + text.AlignDefault.Apply("FILE:", 10) + "ZIP:")
							for gameID, mods := range fileutils.LoadCacheManifest(cache) {
								for modID, files := range mods {
									for fileID, rec := range files {
										fmt.Println(text.AlignDefault.Apply(gameID, 16) + text.AlignDefault.Apply(modID, 10) + text.AlignDefault.Apply(fileID, 10) + rec.Zip)
									}
								}
							}
							fmt.Println()
							return nil
						},
					},
					{
						Name:      "rm",
						Aliases:   []string{"remove"},
						Usage:     "Delete a cached mod file",
						ArgsUsage: "<mod id> <file id> <file name>",
						Action: func(c *cli.Context) error {
							cache, err := cacheDir(c)
							if err != nil {
								return err
							}
							modID, err := intArg(c, 0, "mod id")
							if err != nil {
								return err
							}
							fileID, err := intArg(c, 1, "file id")
							if err != nil {
								return err
							}
							file := util.File{FileID: fileID, FileName: c.Args().Get(2)}
							if err := engine.RemoveFromCache(cache, util.Mod{ModID: modID}, file); err != nil {
								return err
							}
							pterm.Success.Println("Removed " + file.FileName)
							return nil
						},
					},
				},
			},
			{
				Name:  "framework",
				Usage: "Manage the UE4SS scripting framework",
				Subcommands: []*cli.Command{
					{
						Name:  "install",
						Usage: "Install UE4SS into the game",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "version", Value: services.DefaultFrameworkVersion},
							&cli.StringFlag{Name: "zip", Usage: "archive name, defaults to UE4SS_<version>.zip"},
							&cli.BoolFlag{Name: "latest", Usage: "install the newest release"},
							&cli.StringSliceFlag{Name: "patch", Usage: "dest=url, applied in order"},
						},
						Action: func(c *cli.Context) error {
							game, err := gameDir(c)
							if err != nil {
								return err
							}
							cache, err := cacheDir(c)
							if err != nil {
								return err
							}
							opts := services.FrameworkOptions{
								Version: c.String("version"),
								Zip:     c.String("zip"),
								Latest:  c.Bool("latest"),
							}
							for _, p := range c.StringSlice("patch") {
								dest, url, ok := strings.Cut(p, "=")
								if !ok {
									return fmt.Errorf("patch %q is not dest=url", p)
								}
								opts.Patches = append(opts.Patches, util.Patch{Dest: dest, URL: url})
							}
							return engine.InstallFramework(c.Context, cache, game, opts)
						},
					},
					{
						Name:  "uninstall",
						Usage: "Remove UE4SS from the game",
						Action: func(c *cli.Context) error {
							game, err := gameDir(c)
							if err != nil {
								return err
							}
							cache, err := cacheDir(c)
							if err != nil {
								return err
							}
							return engine.UninstallFramework(c.Context, cache, game, services.FrameworkOptions{})
						},
					},
					{
						Name:  "status",
						Usage: "Compare the installed UE4SS with the latest release",
						Action: func(c *cli.Context) error {
							game, err := gameDir(c)
							if err != nil {
								return err
							}
							status, err := engine.CheckFramework(c.Context, game)
							if err != nil {
								return err
							}
							installed := status.Installed
							if installed == "" {
								installed = "none"
							}
							fmt.Println(text.AlignDefault.Apply("INSTALLED:", 12) + installed)
							fmt.Println(text.AlignDefault.Apply("LATEST:", 12) + status.Latest)
							if status.UpdateAvailable {
								pterm.Info.Println("An update is available.")
							}
							return nil
						},
					},
				},
			},
			{
				Name:      "app-mods",
				Usage:     "Copy the bundled app mods for the game",
				ArgsUsage: "<resources dir>",
				Action: func(c *cli.Context) error {
					game, err := gameDir(c)
					if err != nil {
						return err
					}
					validated := games.Validate(game)
					if !validated.Valid() {
						return fmt.Errorf("%w: %s", services.ErrUnknownGamePath, game)
					}
					return engine.InstallAppMods(c.Args().Get(0), game, validated.GameID)
				},
			},
		},
	}

	util.Fatal(app.Run(os.Args))
}
