package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/models"
)

type fakeObject struct {
	contentType string
	data        []byte
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]fakeObject

	headErr    error
	getErr     error
	presignErr error
	presigned  []models.Location
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]fakeObject)}
}

func (s *fakeStore) put(bucket, key, contentType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = fakeObject{contentType: contentType, data: data}
}

func (s *fakeStore) Head(_ context.Context, loc models.Location) (*ObjectInfo, error) {
	if s.headErr != nil {
		return nil, s.headErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[loc.Bucket+"/"+loc.Key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{Location: loc, ContentType: obj.contentType, Size: int64(len(obj.data))}, nil
}

func (s *fakeStore) Get(_ context.Context, loc models.Location) (io.ReadCloser, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[loc.Bucket+"/"+loc.Key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *fakeStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		b, key, _ := strings.Cut(k, "/")
		if b == bucket && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fakeStore) PresignPut(_ context.Context, loc models.Location, _ string, expiry time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presigned = append(s.presigned, loc)
	return "https://storage.example.com/" + loc.Bucket + "/" + loc.Key + "?expires=" + expiry.String(), nil
}

// fakeStarter fails the first failFirst calls, then hands out job ids derived from the
// idempotency token.
type fakeStarter struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	requests  []ExtractionRequest
	states    map[string]*JobStatus
	stateErr  error
}

func (f *fakeStarter) StartExtraction(_ context.Context, req ExtractionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if f.calls <= f.failFirst {
		return "", errors.New("ocr service unavailable")
	}
	return "job-" + req.IdempotencyToken, nil
}

func (f *fakeStarter) ExtractionState(_ context.Context, jobID string) (*JobStatus, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	if st, ok := f.states[jobID]; ok {
		return st, nil
	}
	return &JobStatus{State: models.JobStateUnknown}, nil
}

type fakePageCounter struct {
	pages int
	err   error
}

func (f fakePageCounter) CountPages(context.Context, io.ReadSeeker) (int, error) {
	return f.pages, f.err
}

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failAt int // 1-based call number that fails; 0 never fails
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return nil, errors.New("embedding service throttled")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	chunks  map[string]models.IndexedChunk
	upserts int
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{chunks: make(map[string]models.IndexedChunk)}
}

func (f *fakeIndex) Upsert(_ context.Context, c *models.IndexedChunk) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.chunks[c.ChunkID] = *c
	return nil
}

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (f *fakeLimiter) Allow(context.Context, string) (bool, error) {
	f.calls++
	return f.allow, f.err
}
