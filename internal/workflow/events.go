package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/internal/projects/domain"
)

type EventKind string

const (
	EventCreated      EventKind = "created"
	EventAdvanced     EventKind = "advanced"
	EventDraftUpdated EventKind = "draft_updated"
	EventVariation    EventKind = "variation"
	EventScheduled    EventKind = "scheduled"
	EventPublished    EventKind = "published"
	EventFailed       EventKind = "generation_failed"
)

// ProjectEvent describes one committed change to a project, or a failed
// generation attempt that committed nothing.
type ProjectEvent struct {
	Kind      EventKind     `json:"kind"`
	ProjectID string        `json:"project_id"`
	OwnerID   string        `json:"owner_id"`
	Status    domain.Status `json:"status"`
	Version   int64         `json:"version"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev ProjectEvent) error
}

// Subscriber delivers events for one project until ctx is done, then closes
// the channel.
type Subscriber interface {
	Subscribe(ctx context.Context, projectID string) (<-chan ProjectEvent, error)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ProjectEvent) error { return nil }

func eventChannel(projectID string) string {
	return "clytar:events:project:" + projectID
}

// RedisPublisher fans events out over Redis Pub/Sub so every API replica
// can stream them.
type RedisPublisher struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, log *zap.Logger) *RedisPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPublisher{rdb: rdb, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev ProjectEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, eventChannel(ev.ProjectID), data).Err()
}

func (p *RedisPublisher) Subscribe(ctx context.Context, projectID string) (<-chan ProjectEvent, error) {
	sub := p.rdb.Subscribe(ctx, eventChannel(projectID))
	// wait for the subscription to be confirmed so no event published after
	// this call returns is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan ProjectEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev ProjectEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					p.log.Warn("dropping malformed project event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// MemoryPublisher is an in-process hub used when Redis is not configured.
// Slow subscribers drop events rather than block publishers.
type MemoryPublisher struct {
	mu   sync.Mutex
	subs map[string]map[chan ProjectEvent]struct{}
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{subs: make(map[string]map[chan ProjectEvent]struct{})}
}

func (p *MemoryPublisher) Publish(_ context.Context, ev ProjectEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs[ev.ProjectID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (p *MemoryPublisher) Subscribe(ctx context.Context, projectID string) (<-chan ProjectEvent, error) {
	ch := make(chan ProjectEvent, 16)

	p.mu.Lock()
	if p.subs[projectID] == nil {
		p.subs[projectID] = make(map[chan ProjectEvent]struct{})
	}
	p.subs[projectID][ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs[projectID], ch)
		if len(p.subs[projectID]) == 0 {
			delete(p.subs, projectID)
		}
		p.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
