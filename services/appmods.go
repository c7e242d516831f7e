package services

import (
	"fmt"
	"path/filepath"

	"github.com/mrnavastar/uemodman/games"
	"github.com/mrnavastar/uemodman/util/fileutils"
	"go.uber.org/zap"
)

// InstallAppMods copies the overlay bundled for a game, found under
// <resourcesDir>/app-mods/<gameID>, over the game directory.
func (e *Engine) InstallAppMods(resourcesDir, gameDir, gameID string) error {
	if _, err := games.Lookup(gameID); err != nil {
		return err
	}
	src := filepath.Join(resourcesDir, "app-mods", gameID)
	if !fileutils.IsDir(src) {
		return fmt.Errorf("no app mods for %s in %s", gameID, resourcesDir)
	}

	unlock := e.lockDir(gameDir)
	defer unlock()
	if err := fileutils.CopyTree(src, gameDir); err != nil {
		return err
	}
	e.log.Info("installed app mods", zap.String("game", gameID), zap.String("dest", gameDir))
	return nil
}
