package store

import (
	"context"
	"sync"

	"github.com/mbolis/quick-apply/model"
)

type Memory struct {
	mu   sync.RWMutex
	apps []model.Application
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, a *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp(a, int64(len(m.apps))+1)
	m.apps = append(m.apps, clone(*a))
	return nil
}

func (m *Memory) List(context.Context) ([]model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Application, len(m.apps))
	for i, a := range m.apps {
		out[i] = clone(a)
	}
	return out, nil
}

func (*Memory) Close() error { return nil }

func clone(a model.Application) model.Application {
	a.Answers = append([]string{}, a.Answers...)
	return a
}
