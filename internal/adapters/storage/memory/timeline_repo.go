package memory

import (
	"context"
	"errors"
	"sync"

	"petsy-backend/internal/domain/timeline"
)

type timelineRepo struct {
	mu sync.RWMutex

	// byInstance preserva el orden de inserción, que es el orden de creación:
	// la reconstrucción de status depende de él.
	byInstance map[instanceKey][]timeline.Event
}

type instanceKey struct {
	t  timeline.InstanceType
	id string
}

func NewTimelineRepo() timeline.Repository {
	return &timelineRepo{
		byInstance: make(map[instanceKey][]timeline.Event),
	}
}

func (r *timelineRepo) Append(ctx context.Context, e timeline.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" || e.InstanceID == "" {
		return errors.New("event id and instance id required")
	}
	k := instanceKey{t: e.InstanceType, id: e.InstanceID}
	r.byInstance[k] = append(r.byInstance[k], e)
	return nil
}

func (r *timelineRepo) ListByInstance(ctx context.Context, t timeline.InstanceType, instanceID string) ([]timeline.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.byInstance[instanceKey{t: t, id: instanceID}]
	out := make([]timeline.Event, len(events))
	copy(out, events)
	return out, nil
}
