package service

import (
	"context"
	"sync"

	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/events"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

type backendUpdate struct {
	path   string
	id     string
	fields models.Fields
}

type stubBackend struct {
	mu         sync.Mutex
	records    map[string][]models.Record
	fetchCalls int
	updates    []backendUpdate
	updateErr  error
	created    []models.Fields
	deleted    []string

	// When set, Update signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func newStubBackend() *stubBackend {
	return &stubBackend{records: make(map[string][]models.Record)}
}

func (b *stubBackend) FetchAll(ctx context.Context, path string) ([]models.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	return append([]models.Record(nil), b.records[path]...), nil
}

func (b *stubBackend) Get(ctx context.Context, path, id string) (models.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range b.records[path] {
		if rec.ID == id {
			return models.Record{ID: rec.ID, Values: rec.Values.Clone()}, nil
		}
	}
	return models.Record{}, appErrors.Clone(appErrors.ErrNotFound, "record not found")
}

func (b *stubBackend) Create(ctx context.Context, path string, fields models.Fields) (models.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, fields.Clone())
	rec := models.Record{ID: "new-1", Values: fields.Clone()}
	b.records[path] = append(b.records[path], rec)
	return rec, nil
}

func (b *stubBackend) Update(ctx context.Context, path, id string, fields models.Fields) error {
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return b.updateErr
	}
	b.updates = append(b.updates, backendUpdate{path: path, id: id, fields: fields.Clone()})
	for i, rec := range b.records[path] {
		if rec.ID == id {
			b.records[path][i] = models.Record{ID: id, Values: fields.Clone()}
		}
	}
	return nil
}

func (b *stubBackend) Delete(ctx context.Context, path, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, path+"/"+id)
	return nil
}

func (b *stubBackend) setUpdateErr(err error) {
	b.mu.Lock()
	b.updateErr = err
	b.mu.Unlock()
}

type stubPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *stubPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type stubResolver struct {
	files map[string]models.FileRef
}

func (r stubResolver) Resolve(ctx context.Context, fileID string) (models.FileRef, error) {
	if ref, ok := r.files[fileID]; ok {
		return ref, nil
	}
	return models.FileRef{}, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
}
