// Package prompt owns the stage prompts. Compiled-in templates are the
// default; an optional override directory can replace any of them at
// runtime and is watched for edits.
package prompt

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

var (
	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/critic.txt
	criticRaw string

	//go:embed template/final_answer.txt
	finalAnswerRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Planner     string
	Critic      string
	FinalAnswer string
}

// LoadPromptSet returns the compiled-in prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Planner:     strings.TrimSpace(plannerRaw),
		Critic:      strings.TrimSpace(criticRaw),
		FinalAnswer: strings.TrimSpace(finalAnswerRaw),
	}
}

var overrideFiles = map[string]string{
	"planner.txt":      "planner",
	"critic.txt":       "critic",
	"final_answer.txt": "final_answer",
}

// Loader serves the current prompt set. With an override directory it
// hot-reloads edited files; without one it is a thin wrapper around the
// embedded set.
type Loader struct {
	mu  sync.RWMutex
	set PromptSet

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewLoader builds a loader. dir may be empty to use only the embedded
// prompts.
func NewLoader(dir string) (*Loader, error) {
	l := &Loader{set: LoadPromptSet(), done: make(chan struct{})}
	if dir == "" {
		return l, nil
	}

	l.applyOverrides(dir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	l.watcher = watcher
	go l.watch(dir)
	return l, nil
}

func (l *Loader) applyOverrides(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for file, stage := range overrideFiles {
		raw, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(raw))
		if content == "" {
			continue
		}
		switch stage {
		case "planner":
			l.set.Planner = content
		case "critic":
			l.set.Critic = content
		case "final_answer":
			l.set.FinalAnswer = content
		}
		log.Info().Str("stage", stage).Msg("prompt override loaded")
	}
}

func (l *Loader) watch(dir string) {
	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if _, tracked := overrideFiles[filepath.Base(ev.Name)]; !tracked {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				l.applyOverrides(dir)
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("prompt watcher error")
		}
	}
}

func (l *Loader) Planner() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Planner
}

func (l *Loader) Critic() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Critic
}

func (l *Loader) FinalAnswer() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.FinalAnswer
}

// Close stops the watcher if one is running.
func (l *Loader) Close() error {
	close(l.done)
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}
