package config

// This file loads the court registry. Courts are described in a YAML file
// read through viper; every successful (re)load publishes a new immutable
// Snapshot that request handlers pick up atomically. A broken edit is
// logged and the previous snapshot keeps serving.

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/iliyamo/court-booking/internal/model"
)

// Snapshot is one published version of the registry.
type Snapshot struct {
	Version  uint64
	Location *time.Location
	Courts   []model.Court
	LoadedAt time.Time
}

// Court looks a court up by calendar id.
func (s *Snapshot) Court(id string) (model.Court, error) {
	for _, c := range s.Courts {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Court{}, fmt.Errorf("%w: %s", model.ErrCourtNotFound, id)
}

type courtFile struct {
	TimeZone string      `mapstructure:"timezone"`
	Courts   []courtSpec `mapstructure:"courts"`
}

type courtSpec struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	SlotMinutes int      `mapstructure:"slot_minutes"`
	Weekday     []string `mapstructure:"weekday"`
	Weekend     []string `mapstructure:"weekend"`
}

// Registry owns the viper instance behind the courts file.
type Registry struct {
	v       *viper.Viper
	log     logrus.FieldLogger
	fallTZ  string
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	mu      sync.Mutex // serializes reloads
}

// LoadRegistry reads path and publishes the first snapshot. defaultTZ is
// used when the file does not name a time zone.
func LoadRegistry(path, defaultTZ string, log logrus.FieldLogger) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	r := &Registry{v: v, log: log, fallTZ: defaultTZ}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the active snapshot.
func (r *Registry) Current() *Snapshot { return r.current.Load() }

// Reload re-reads the file. On error the active snapshot is untouched.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read courts file: %w", err)
	}
	var f courtFile
	if err := r.v.Unmarshal(&f); err != nil {
		return fmt.Errorf("decode courts file: %w", err)
	}
	snap, err := buildSnapshot(f, r.fallTZ)
	if err != nil {
		return err
	}
	snap.Version = r.version.Add(1)
	snap.LoadedAt = time.Now()
	r.current.Store(snap)
	r.log.WithFields(logrus.Fields{"version": snap.Version, "courts": len(snap.Courts)}).Info("court registry loaded")
	return nil
}

// Watch reloads the registry whenever the file changes on disk.
func (r *Registry) Watch() {
	r.v.OnConfigChange(func(e fsnotify.Event) {
		if err := r.Reload(); err != nil {
			r.log.WithError(err).WithField("file", e.Name).Error("court registry reload rejected")
		}
	})
	r.v.WatchConfig()
}

func buildSnapshot(f courtFile, defaultTZ string) (*Snapshot, error) {
	tz := f.TimeZone
	if tz == "" {
		tz = defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("courts file: time zone %q: %w", tz, err)
	}
	if len(f.Courts) == 0 {
		return nil, fmt.Errorf("courts file: no courts defined")
	}

	seen := map[string]bool{}
	courts := make([]model.Court, 0, len(f.Courts))
	for i, cs := range f.Courts {
		if cs.ID == "" {
			return nil, fmt.Errorf("courts file: court #%d has no id", i+1)
		}
		if seen[cs.ID] {
			return nil, fmt.Errorf("courts file: duplicate court id %s", cs.ID)
		}
		seen[cs.ID] = true
		if cs.SlotMinutes <= 0 {
			return nil, fmt.Errorf("courts file: court %s: slot_minutes must be positive", cs.ID)
		}
		weekday, err := parseIntervals(cs.Weekday)
		if err != nil {
			return nil, fmt.Errorf("courts file: court %s weekday: %w", cs.ID, err)
		}
		weekend, err := parseIntervals(cs.Weekend)
		if err != nil {
			return nil, fmt.Errorf("courts file: court %s weekend: %w", cs.ID, err)
		}
		name := cs.Name
		if name == "" {
			name = fmt.Sprintf("Pista %d", i+1)
		}
		courts = append(courts, model.Court{
			ID:          cs.ID,
			Name:        name,
			Index:       i,
			SlotMinutes: cs.SlotMinutes,
			Weekday:     weekday,
			Weekend:     weekend,
		})
	}
	return &Snapshot{Location: loc, Courts: courts}, nil
}

// parseIntervals reads "HH:MM-HH:MM" windows. An end of 00:00 runs to the
// next midnight.
func parseIntervals(in []string) ([]model.Interval, error) {
	out := make([]model.Interval, 0, len(in))
	for _, s := range in {
		from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
		if !ok {
			return nil, fmt.Errorf("interval %q: want HH:MM-HH:MM", s)
		}
		start, err := model.ParseClock(strings.TrimSpace(from))
		if err != nil {
			return nil, err
		}
		end, err := model.ParseClock(strings.TrimSpace(to))
		if err != nil {
			return nil, err
		}
		if end != 0 && end <= start {
			return nil, fmt.Errorf("interval %q ends before it starts", s)
		}
		out = append(out, model.Interval{Start: start, End: end})
	}
	return out, nil
}
