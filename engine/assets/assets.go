// Package assets resolves virtual asset paths to files on disk, loads and
// cooks them for upload, and watches the asset root for changes so the
// engine can hot reload.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oxygen3d/oxygen/engine/assets/loaders"
	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// AssetType classifies files under the asset root by extension.
type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeImage
	AssetTypeShader
	AssetTypeBinary
)

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

type AssetManager struct {
	root string

	mutex  sync.RWMutex
	assets map[string]AssetInfo

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	watching bool
}

// NewAssetManager indexes the asset root. A missing root is not an error;
// loads will fail individually and watching stays off.
func NewAssetManager(root string) (*AssetManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("func NewAssetManager - cannot resolve root '%s': %w", root, err)
	}
	am := &AssetManager{
		root:   abs,
		assets: make(map[string]AssetInfo),
		done:   make(chan struct{}),
	}
	if err := am.index(); err != nil {
		core.LogWarn("asset root '%s' not indexed: %s", abs, err)
	}
	return am, nil
}

func (am *AssetManager) Root() string {
	return am.root
}

// ResolvePath turns a virtual path like "textures/brick.png" into the full
// on-disk path.
func (am *AssetManager) ResolvePath(virtual string) string {
	return filepath.Join(am.root, filepath.FromSlash(virtual))
}

// VirtualPath is the inverse of ResolvePath: the root-relative,
// slash-separated form of a full path. Paths outside the root come back
// unchanged.
func (am *AssetManager) VirtualPath(full string) string {
	rel, err := filepath.Rel(am.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return full
	}
	return filepath.ToSlash(rel)
}

// LoadTexture loads and cooks an image asset into an upload-ready payload.
func (am *AssetManager) LoadTexture(virtual string) (*metadata.CookedTexture, error) {
	path := am.ResolvePath(virtual)
	cooked, err := loaders.LoadTexture(path, true)
	if err != nil {
		return nil, err
	}
	cooked.Desc.Name = virtual
	am.touch(path, AssetTypeImage)
	return cooked, nil
}

// LoadBinary reads a raw asset file.
func (am *AssetManager) LoadBinary(virtual string) ([]byte, error) {
	path := am.ResolvePath(virtual)
	data, err := loaders.LoadBinary(path)
	if err != nil {
		return nil, err
	}
	am.touch(path, AssetTypeBinary)
	return data, nil
}

func (am *AssetManager) touch(path string, assetType AssetType) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
}

// AssetCount returns how many files the index currently tracks.
func (am *AssetManager) AssetCount() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) index() error {
	return filepath.Walk(am.root, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		if t := determineAssetType(walkPath); t != AssetTypeNone {
			am.touch(walkPath, t)
		}
		return nil
	})
}

// StartWatching begins firing EVENT_CODE_ASSET_CHANGED for create and write
// events under the asset root.
func (am *AssetManager) StartWatching() error {
	if am.watching {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = watcher
	if err := am.addRecursive(am.root); err != nil {
		watcher.Close()
		am.fsnotify = nil
		return err
	}
	am.watching = true
	go am.watch()
	core.LogInfo("watching asset root '%s'", am.root)
	return nil
}

func (am *AssetManager) addRecursive(root string) error {
	return filepath.Walk(root, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		return nil
	})
}

func (am *AssetManager) watch() {
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			// New directories join the watch set so assets created later
			// are still seen.
			if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.addRecursive(e.Name); err != nil {
						core.LogWarn("cannot watch new directory '%s': %s", e.Name, err)
					}
				}
				continue
			}
			if e.Op&fsnotify.Remove != 0 {
				am.mutex.Lock()
				delete(am.assets, e.Name)
				am.mutex.Unlock()
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if determineAssetType(e.Name) == AssetTypeNone {
				continue
			}
			am.touch(e.Name, determineAssetType(e.Name))
			context := core.EventContext{}
			context.Data.C[0] = e.Name
			core.EventFire(core.EVENT_CODE_ASSET_CHANGED, am, context)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) Shutdown() error {
	if am.watching {
		close(am.done)
		am.watching = false
	}
	return nil
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg":
		return AssetTypeImage
	case ".spv":
		return AssetTypeShader
	case ".bin", ".geo":
		return AssetTypeBinary
	default:
		return AssetTypeNone
	}
}
