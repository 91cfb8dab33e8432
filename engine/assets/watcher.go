package assets

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/diffuse/engine/core"
)

// ShaderWatcher watches a directory tree of compiled shaders and raises a
// flag when any of them changes. The renderer consumes the flag at the top
// of its frame loop and rebuilds the pipelines outside of any recording.
type ShaderWatcher struct {
	fsnotify *fsnotify.Watcher
	done     chan struct{}
	dirty    atomic.Bool
}

func NewShaderWatcher(dir string) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sw := &ShaderWatcher{
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	if err := sw.addRecursive(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}

	go sw.start()
	return sw, nil
}

// ConsumeDirty reports whether a shader changed since the last call and
// clears the flag.
func (sw *ShaderWatcher) ConsumeDirty() bool {
	return sw.dirty.Swap(false)
}

func (sw *ShaderWatcher) Shutdown() {
	close(sw.done)
}

func (sw *ShaderWatcher) start() {
	for {
		select {
		case e := <-sw.fsnotify.Events:
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					sw.addRecursive(e.Name)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				if filepath.Ext(e.Name) == ".spv" {
					core.LogInfo("shader changed: %s", e.Name)
					sw.dirty.Store(true)
				}
			}

		case e := <-sw.fsnotify.Errors:
			core.LogError(e.Error())

		case <-sw.done:
			sw.fsnotify.Close()
			return
		}
	}
}

func (sw *ShaderWatcher) addRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if err := sw.fsnotify.Add(walkPath); err != nil {
				return err
			}
		}
		return nil
	})
}
