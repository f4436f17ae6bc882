package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/partimages/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// fakeObjectStore keeps uploaded objects in memory.
type fakeObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	buckets   map[string]bool
	uploadErr error
	deleteErr error
	onUpload  func(key string)
	deleted   []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects: map[string][]byte{},
		types:   map[string]string{},
		buckets: map[string]bool{},
	}
}

func (f *fakeObjectStore) EnsureBucket(_ context.Context, bucket string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = true
	return nil
}

func (f *fakeObjectStore) Upload(_ context.Context, bucket, key, localPath, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	if f.onUpload != nil {
		f.onUpload(key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = data
	f.types[bucket+"/"+key] = contentType
	return nil
}

func (f *fakeObjectStore) PublicURL(bucket, key string) string {
	return "http://store.test/" + bucket + "/" + key
}

func (f *fakeObjectStore) Open(_ context.Context, bucket, key string) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return &Object{
		Body:          io.NopCloser(strings.NewReader(string(data))),
		ContentType:   f.types[bucket+"/"+key],
		ContentLength: int64(len(data)),
	}, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, bucket, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	f.deleted = append(f.deleted, bucket+"/"+key)
	return nil
}

func (f *fakeObjectStore) has(bucket, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[bucket+"/"+key]
	return ok
}

func (f *fakeObjectStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}
