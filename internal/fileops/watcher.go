package fileops

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ultronlabs/ultron/internal/state"
)

// Watcher records files that appear in the project directory while shell
// steps run, so programs that write their own output files still show up
// in the shared state's created-files list.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Watch starts watching dir and records created files into shared.
func Watch(dir string, shared *state.Shared) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher: fsw,
		done:    make(chan struct{}),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					shared.AddCreatedFile(event.Name)
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
				// Watch errors are not fatal to the run; the file list is
				// best-effort beyond what agents record themselves.
			case <-w.done:
				return
			}
		}
	}()

	return w, nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
