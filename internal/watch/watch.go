// Package watch implements the optional `-watch` rerun loop: watch a
// set of source paths and invoke rebuild whenever one changes, debounced
// so a burst of saves from one editor write triggers a single rebuild.
// Grounded on other_examples' papapumpkin-quasar fsnotify usage (not
// the teacher, which has no watch mode of its own) and on the teacher's
// own error-propagation idiom (diag.Bail-style single error channel).
package watch

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is the quiet period after the last filesystem event before
// rebuild is invoked.
const Debounce = 100 * time.Millisecond

// Run watches every path in paths (files or directories) and calls
// rebuild once per debounced burst of changes, until stop is closed or
// rebuild returns an error. The first rebuild error is returned; a nil
// stop channel means "run forever".
func Run(paths []string, stop <-chan struct{}, rebuild func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, p := range paths {
		if err := w.Add(p); err != nil {
			return err
		}
	}

	if err := rebuild(); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-stop:
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case _, ok := <-w.Events:
			if !ok {
				return nil
			}
			if timer == nil {
				timer = time.NewTimer(Debounce)
				timerC = timer.C
			} else {
				timer.Reset(Debounce)
			}
		case <-timerC:
			if err := rebuild(); err != nil {
				return err
			}
		}
	}
}
