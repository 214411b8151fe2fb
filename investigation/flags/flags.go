// Package flags implements the Feature Flags and Graph Selector (C8, spec
// §4.8): percentage/hash/A-B rollout evaluation, environment overrides, and
// rollback-aware graph selection, with fsnotify-driven hot reload of the
// config file's feature_flags section (SPEC_FULL §8).
package flags

import (
	"hash/fnv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/olorin-ai/hybrid-investigator/internal/config"
)

// DeploymentMode is how a flag's rollout is shaped.
type DeploymentMode string

const (
	DeploymentDisabled    DeploymentMode = "DISABLED"
	DeploymentCanary      DeploymentMode = "CANARY"
	DeploymentABTest      DeploymentMode = "AB_TEST"
	DeploymentFullRollout DeploymentMode = "FULL_ROLLOUT"
)

// Flag is one entry of the feature_flags mapping (§4.8).
type Flag struct {
	Enabled           bool
	RolloutPercentage int
	DeploymentMode    DeploymentMode
	TestSplit         int // percentage assigned to variant B, for AB_TEST
	Extras            map[string]string
}

// FeatureFlags holds the process's flag table, safe for concurrent
// evaluation and hot reload.
type FeatureFlags struct {
	mu     sync.RWMutex
	flags  map[string]Flag
	logger logrus.FieldLogger
	watcher *fsnotify.Watcher
}

// New builds a FeatureFlags table from a loaded mapping.
func New(initial map[string]Flag, logger logrus.FieldLogger) *FeatureFlags {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	copied := make(map[string]Flag, len(initial))
	for k, v := range initial {
		copied[k] = v
	}
	return &FeatureFlags{flags: copied, logger: logger}
}

// Set replaces one flag's definition, used both by config reload and tests.
func (f *FeatureFlags) Set(name string, flag Flag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[name] = flag
}

// Replace swaps the entire flag table atomically (a config-file hot reload).
func (f *FeatureFlags) Replace(next map[string]Flag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags = make(map[string]Flag, len(next))
	for k, v := range next {
		f.flags[k] = v
	}
}

// Evaluate implements §4.8's per-investigation evaluation: environment
// overrides win outright; otherwise disabled or zero rollout is off, else
// hash(investigation_id) mod 100 is compared against rollout_percentage.
func (f *FeatureFlags) Evaluate(name, investigationID string) bool {
	if enabled, present := config.FlagEnvOverride(name); present {
		return enabled
	}

	f.mu.RLock()
	flag, ok := f.flags[name]
	f.mu.RUnlock()
	if !ok || !flag.Enabled || flag.RolloutPercentage == 0 {
		return false
	}

	bucket := hashMod100(investigationID)
	return bucket < flag.RolloutPercentage
}

// Variant implements the optional A/B split within an AB_TEST flag: bucket
// values below test_split get variant "b", the rest "a". Only meaningful
// when Evaluate has already returned true.
func (f *FeatureFlags) Variant(name, investigationID string) string {
	f.mu.RLock()
	flag, ok := f.flags[name]
	f.mu.RUnlock()
	if !ok || flag.DeploymentMode != DeploymentABTest {
		return "a"
	}
	if hashMod100(investigationID) < flag.TestSplit {
		return "b"
	}
	return "a"
}

func hashMod100(investigationID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(investigationID))
	return int(h.Sum32() % 100)
}

// WatchFile hot-reloads the config file for feature-flag edits, per
// SPEC_FULL §8. reload is called with the file path on any write event; the
// caller is responsible for re-parsing and calling Replace.
func (f *FeatureFlags) WatchFile(path string, reload func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	f.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					f.logger.WithField("path", event.Name).Info("feature flag config changed, reloading")
					reload(path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.WithError(err).Warn("feature flag watcher error")
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if one was started.
func (f *FeatureFlags) Close() error {
	if f.watcher == nil {
		return nil
	}
	return f.watcher.Close()
}
