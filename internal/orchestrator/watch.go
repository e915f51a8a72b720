package orchestrator

import (
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/cosmix/skein/internal/stageio"
)

// watchStages is spawned once per Run when watch_mode is set (spec 4.5
// bullet 6, "will pick up externally-added stages"). It watches the
// stages directory for new files and submits them onto the command
// queue so the single scheduler goroutine is the only thing that ever
// touches the graph.
func (o *Orchestrator) watchStages() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		o.Logger.Warnf("watch stages: new watcher: %v", err)
		return
	}
	defer watcher.Close()

	dir := o.ws.StagesDir()
	if err := watcher.Add(dir); err != nil {
		o.Logger.Warnf("watch stages: add %s: %v", dir, err)
		return
	}

	for {
		select {
		case <-o.stop:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			path := ev.Name
			_ = o.submit(func() error { return o.adoptExternalStage(path) })
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			o.Logger.Warnf("watch stages: %v", err)
		}
	}
}

// adoptExternalStage loads a stage file dropped into the stages
// directory by something other than the daemon itself (a human editor,
// a plan-authoring tool) and adds it to the graph if it isn't already
// known. Runs on the scheduler goroutine via the command queue.
func (o *Orchestrator) adoptExternalStage(path string) error {
	st, err := stageio.ReadStage(path)
	if err != nil {
		return nil
	}
	if o.graph.Get(st.ID) != nil {
		return nil
	}
	if err := o.graph.Add(st); err != nil {
		o.Logger.Warnf("adopt stage %s: %v", st.ID, err)
		return nil
	}
	o.Logger.Infof("adopted externally-added stage %s", st.ID)
	return nil
}
