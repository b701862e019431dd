package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"jobscout_bot/internal/model"
)

const (
	defaultLockTimeout = 5 * time.Second
	lockRetryInterval  = 100 * time.Millisecond
)

// snapshot is the full on-disk store: one JSON object keyed by
// stringified user ID.
type snapshot map[string]*model.UserRecord

// loadSource reports where a snapshot was read from.
type loadSource int

const (
	loadPrimary loadSource = iota
	loadBackup
	loadEmpty
)

// FileStore implements Store backed by a single JSON file. Writers
// coordinate through an exclusive advisory lock on a .lock sidecar, so
// a second OS process (e.g. a concurrently running digest task) cannot
// interleave updates. Every write replaces the file atomically and
// refreshes a .bak sidecar used for corruption recovery.
type FileStore struct {
	path        string
	bakPath     string
	lockPath    string
	lockTimeout time.Duration
	log         *slog.Logger
}

// NewFileStore creates a FileStore at path, creating the parent
// directory if needed.
func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &FileStore{
		path:        path,
		bakPath:     path + ".bak",
		lockPath:    path + ".lock",
		lockTimeout: defaultLockTimeout,
		log:         log,
	}, nil
}

// SetLockTimeout overrides the default 5s lock acquisition bound.
func (s *FileStore) SetLockTimeout(d time.Duration) {
	s.lockTimeout = d
}

func defaultUser() *model.UserRecord {
	return &model.UserRecord{
		Lang:           "en",
		Role:           "jobseeker",
		Sources:        append([]string(nil), model.DefaultSources...),
		Country:        "usa",
		Notifications:  true,
		BaseCurrency:   "USD",
		FXRates:        map[string]float64{},
		MutedCompanies: []string{},
		Favorites:      []model.JobRecord{},
		SavedSearches:  []model.SavedSearch{},
		LastResults:    []model.JobRecord{},
	}
}

// normalizeUser fills in type-correct defaults for fields missing from
// records written by older schema versions.
func normalizeUser(u *model.UserRecord) {
	def := defaultUser()
	if u.Lang == "" {
		u.Lang = def.Lang
	}
	if u.Role == "" {
		u.Role = def.Role
	}
	if u.Sources == nil {
		u.Sources = def.Sources
	}
	if u.Country == "" {
		u.Country = def.Country
	}
	if u.BaseCurrency == "" {
		u.BaseCurrency = def.BaseCurrency
	}
	if u.FXRates == nil {
		u.FXRates = map[string]float64{}
	}
	if u.MutedCompanies == nil {
		u.MutedCompanies = []string{}
	}
	if u.Favorites == nil {
		u.Favorites = []model.JobRecord{}
	}
	if u.SavedSearches == nil {
		u.SavedSearches = []model.SavedSearch{}
	}
	if u.LastResults == nil {
		u.LastResults = []model.JobRecord{}
	}
}

func (s *FileStore) acquireLock(ctx context.Context) (*flock.Flock, error) {
	fl := flock.New(s.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (waited %s)", ErrLockTimeout, s.lockTimeout)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (waited %s)", ErrLockTimeout, s.lockTimeout)
	}
	return fl, nil
}

// loadSnapshot reads the store without taking the lock. A missing
// primary file is initialized to an empty object; an unparseable
// primary falls back to the .bak sidecar, then to an empty store.
func (s *FileStore) loadSnapshot() (snapshot, loadSource, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if werr := os.WriteFile(s.path, []byte("{}"), 0o600); werr != nil {
			return nil, loadEmpty, fmt.Errorf("initialize store file: %w", werr)
		}
		return snapshot{}, loadEmpty, nil
	}
	if err != nil {
		return nil, loadEmpty, fmt.Errorf("read store file: %w", err)
	}

	var db snapshot
	if jerr := json.Unmarshal(data, &db); jerr == nil {
		if db == nil {
			db = snapshot{}
		}
		return db, loadPrimary, nil
	}

	bak, err := os.ReadFile(s.bakPath)
	if err == nil {
		var bdb snapshot
		if jerr := json.Unmarshal(bak, &bdb); jerr == nil {
			if bdb == nil {
				bdb = snapshot{}
			}
			return bdb, loadBackup, nil
		}
	}
	return snapshot{}, loadEmpty, nil
}

// writeSnapshot serializes db to a temp file in the store directory,
// fsyncs it, refreshes the .bak sidecar from the current primary, and
// renames the temp file over the primary path.
func (s *FileStore) writeSnapshot(db snapshot) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	// The backup mirrors the snapshot being written, so recovery after
	// a corrupted primary restores the latest state. Best-effort: its
	// failure must not abort the write.
	if err := os.WriteFile(s.bakPath, data, 0o600); err != nil {
		s.log.Warn("store: could not refresh backup", "path", s.bakPath, "error", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// withLock runs fn on the loaded snapshot under the exclusive file
// lock and persists the result. fn must not perform network I/O.
func (s *FileStore) withLock(ctx context.Context, fn func(db snapshot)) error {
	fl, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = fl.Unlock() }()

	db, src, err := s.loadSnapshot()
	if err != nil {
		return err
	}
	if src == loadBackup {
		s.log.Warn("store: primary file unreadable, recovered from backup", "path", s.path)
	}
	fn(db)
	return s.writeSnapshot(db)
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// GetUser returns the record for id, materializing and persisting full
// defaults if the user is not yet known.
func (s *FileStore) GetUser(ctx context.Context, id int64) (*model.UserRecord, error) {
	var out *model.UserRecord
	err := s.withLock(ctx, func(db snapshot) {
		u, ok := db[userKey(id)]
		if !ok || u == nil {
			u = defaultUser()
			db[userKey(id)] = u
		}
		normalizeUser(u)
		out = u
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MutateUser loads the record for id (or defaults), applies fn, and
// persists the result, all under one critical section.
func (s *FileStore) MutateUser(ctx context.Context, id int64, fn func(*model.UserRecord)) (*model.UserRecord, error) {
	var out *model.UserRecord
	err := s.withLock(ctx, func(db snapshot) {
		u, ok := db[userKey(id)]
		if !ok || u == nil {
			u = defaultUser()
		}
		normalizeUser(u)
		fn(u)
		db[userKey(id)] = u
		out = u
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser removes the record for id. Deleting an unknown user is a
// no-op.
func (s *FileStore) DeleteUser(ctx context.Context, id int64) error {
	return s.withLock(ctx, func(db snapshot) {
		delete(db, userKey(id))
	})
}

// ListUserIDs returns all known user IDs without taking the write
// lock. The result may be slightly stale; digest targets are
// re-validated by their own GetUser calls.
func (s *FileStore) ListUserIDs() ([]int64, error) {
	db, _, err := s.loadSnapshot()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(db))
	for k := range db {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveFavorite appends job to the user's favorites unless a favorite
// with the same canonical URL already exists. Returns whether the job
// was added.
func (s *FileStore) SaveFavorite(ctx context.Context, id int64, job model.JobRecord) (bool, error) {
	added := false
	_, err := s.MutateUser(ctx, id, func(u *model.UserRecord) {
		for _, j := range u.Favorites {
			if j.URL == job.URL {
				return
			}
		}
		u.Favorites = append(u.Favorites, job)
		added = true
	})
	return added, err
}

// ClearFavorites removes all favorites for the user.
func (s *FileStore) ClearFavorites(ctx context.Context, id int64) error {
	_, err := s.MutateUser(ctx, id, func(u *model.UserRecord) {
		u.Favorites = []model.JobRecord{}
	})
	return err
}

// SaveSearch stores a named search, overwriting any search with the
// same name in place while preserving its existing subscription.
func (s *FileStore) SaveSearch(ctx context.Context, id int64, name string, filters model.FilterSet) error {
	_, err := s.MutateUser(ctx, id, func(u *model.UserRecord) {
		var sub model.Subscription
		kept := u.SavedSearches[:0:0]
		for _, ss := range u.SavedSearches {
			if ss.Name == name {
				sub = ss.Subscription
				continue
			}
			kept = append(kept, ss)
		}
		u.SavedSearches = append(kept, model.SavedSearch{Name: name, Filters: filters, Subscription: sub})
	})
	return err
}

// UpdateSavedSearch applies fn to the saved search at idx. Out-of-range
// indexes are ignored.
func (s *FileStore) UpdateSavedSearch(ctx context.Context, id int64, idx int, fn func(*model.SavedSearch)) error {
	_, err := s.MutateUser(ctx, id, func(u *model.UserRecord) {
		if idx < 0 || idx >= len(u.SavedSearches) {
			return
		}
		fn(&u.SavedSearches[idx])
	})
	return err
}

// SaveLastResults replaces the user's most recent feed snapshot.
func (s *FileStore) SaveLastResults(ctx context.Context, id int64, jobs []model.JobRecord) error {
	_, err := s.MutateUser(ctx, id, func(u *model.UserRecord) {
		u.LastResults = jobs
	})
	return err
}
