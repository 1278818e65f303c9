package normalize

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// defaultExpansions maps hardware and measurement shorthand to full words.
// Keys must be lowercase; values must already be in normalized form so that
// normalization stays idempotent.
var defaultExpansions = map[string]string{
	"hx":    "hex",
	"hd":    "head",
	"scr":   "screw",
	"gr":    "grade",
	"cap":   "cap",
	"skt":   "socket",
	"btn":   "button",
	"flg":   "flange",
	"csk":   "countersunk",
	"phl":   "phillips",
	"slt":   "slotted",
	"mach":  "machine",
	"thrd":  "thread",
	"crs":   "coarse",
	"fn":    "fine",
	"ss":    "stainless steel",
	"sst":   "stainless steel",
	"stl":   "steel",
	"znc":   "zinc",
	"zn":    "zinc",
	"pltd":  "plated",
	"galv":  "galvanized",
	"blk":   "black",
	"ox":    "oxide",
	"wshr":  "washer",
	"lk":    "lock",
	"spr":   "spring",
	"hvy":   "heavy",
	"std":   "standard",
	"asst":  "assorted",
	"pk":    "pack",
	"pkg":   "package",
	"ea":    "each",
	"pc":    "piece",
	"pcs":   "pieces",
	"doz":   "dozen",
	"lg":    "long",
	"sh":    "short",
	"dia":   "diameter",
	"lgth":  "length",
	"wd":    "width",
	"ga":    "gauge",
	"in":    "inch",
	"mm":    "mm",
	"nut":   "nut",
	"blt":   "bolt",
	"rvt":   "rivet",
	"anch":  "anchor",
	"cplg":  "coupling",
	"adpt":  "adapter",
	"fit":   "fitting",
	"nip":   "nipple",
	"redcr": "reducer",
}

// SynonymTable holds the abbreviation expansion map. It supports atomic
// snapshot reads under concurrent hot reloads from a YAML file.
type SynonymTable struct {
	mu     sync.RWMutex
	expand map[string]string
	logger *zap.Logger
}

// NewSynonymTable returns a table seeded with the built-in expansions merged
// with extra (extra wins on conflict). Pass nil for built-ins only.
func NewSynonymTable(extra map[string]string) *SynonymTable {
	t := &SynonymTable{logger: zap.NewNop()}
	t.replace(extra)
	return t
}

// WithLogger sets the logger used for reload events.
func (t *SynonymTable) WithLogger(logger *zap.Logger) *SynonymTable {
	if logger != nil {
		t.logger = logger
	}
	return t
}

func (t *SynonymTable) replace(extra map[string]string) {
	merged := make(map[string]string, len(defaultExpansions)+len(extra))
	for k, v := range defaultExpansions {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	t.mu.Lock()
	t.expand = merged
	t.mu.Unlock()
}

// Snapshot returns the current expansion map. The returned map must not be
// mutated by callers.
func (t *SynonymTable) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.expand
}

// LoadFile replaces the extra expansions from a YAML file of the form
// `abbrev: expansion` pairs, merged over the built-ins.
func (t *SynonymTable) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read synonyms file: %w", err)
	}
	var extra map[string]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return fmt.Errorf("failed to parse synonyms file: %w", err)
	}
	t.replace(extra)
	return nil
}

// Watch reloads the table whenever path changes, until stop is closed.
// A failed reload keeps the previous table and logs a warning.
func (t *SynonymTable) Watch(path string, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := t.LoadFile(path); err != nil {
					t.logger.Warn("synonym reload failed", zap.String("path", path), zap.Error(err))
					continue
				}
				t.logger.Info("synonym table reloaded", zap.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				t.logger.Warn("synonym watcher error", zap.Error(err))
			case <-stop:
				return
			}
		}
	}()
	return nil
}
