// Package seed bulk-loads translation records from go-i18n TOML message
// files. It is the administrative path that satisfies the base value
// invariant for global keys at deployment time.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"

	"github.com/shredbx/localize/store"
	"github.com/shredbx/localize/translation"
	"github.com/shredbx/localize/workerpool"
)

// SeededBy is stamped into the audit trail of seeded records.
const SeededBy = "seeder"

// Seeder writes message-file contents through the unconditional
// last-write-wins store path.
type Seeder struct {
	store     store.Store
	workMan   workerpool.Manager
	namespace string
}

// NewSeeder creates a seeder targeting the given namespace. workMan may be
// nil to seed sequentially.
func NewSeeder(translationStore store.Store, workMan workerpool.Manager, namespace string) *Seeder {
	return &Seeder{
		store:     translationStore,
		workMan:   workMan,
		namespace: namespace,
	}
}

// SeedDir loads every messages.<locale>.toml file under dir and returns the
// number of records written.
func (s *Seeder) SeedDir(ctx context.Context, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "messages.*.toml"))
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no message files found under %s", dir)
	}

	total := 0
	for _, path := range paths {
		count, seedErr := s.SeedFile(ctx, path)
		total += count
		if seedErr != nil {
			return total, seedErr
		}
	}

	util.Log(ctx).WithField("records", total).WithField("dir", dir).Info("seeded translation records")
	return total, nil
}

// SeedFile loads a single message file. The locale is taken from the file
// name, message ids become fields and every value is written last-write-wins.
func (s *Seeder) SeedFile(ctx context.Context, path string) (int, error) {
	buf, err := os.ReadFile(path) // #nosec G304 - path is operator supplied
	if err != nil {
		return 0, err
	}

	messageFile, err := i18n.ParseMessageFileBytes(buf, path, map[string]i18n.UnmarshalFunc{
		"toml": toml.Unmarshal,
	})
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	locale := messageFile.Tag.String()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		count    int
	)

	record := func(putErr error) {
		mu.Lock()
		defer mu.Unlock()
		if putErr != nil {
			if firstErr == nil {
				firstErr = putErr
			}
			return
		}
		count++
	}

	for _, message := range messageFile.Messages {
		key := translation.NewKey(s.namespace, message.ID, locale)
		value := message.Other

		put := func() {
			_, putErr := s.store.Put(ctx, key, value, SeededBy, nil)
			record(putErr)
		}

		if pool := s.pool(); pool != nil {
			wg.Add(1)
			if submitErr := pool.Submit(ctx, func() {
				defer wg.Done()
				put()
			}); submitErr != nil {
				wg.Done()
				put()
			}
		} else {
			put()
		}
	}

	wg.Wait()

	return count, firstErr
}

func (s *Seeder) pool() workerpool.WorkerPool {
	if s.workMan == nil {
		return nil
	}
	pool, err := s.workMan.GetPool()
	if err != nil {
		return nil
	}
	return pool
}
