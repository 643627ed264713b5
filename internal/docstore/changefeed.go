package docstore

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Changefeed carries "something changed" signals per topic. Signals carry no
// payload; listeners re-read whatever they watch.
type Changefeed interface {
	Publish(ctx context.Context, topic string) error
	// Listen returns a channel that receives at least one signal after every
	// Publish on topic that happens after Listen returned. stop releases it.
	Listen(ctx context.Context, topic string) (signals <-chan struct{}, stop func(), err error)
}

// LocalChangefeed fans signals out inside one process.
type LocalChangefeed struct {
	mutex     sync.RWMutex
	listeners map[string]map[int]chan struct{}
	nextID    int
}

func NewLocalChangefeed() *LocalChangefeed {
	return &LocalChangefeed{listeners: make(map[string]map[int]chan struct{})}
}

func (l *LocalChangefeed) Publish(_ context.Context, topic string) error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for _, ch := range l.listeners[topic] {
		// a pending signal already covers this change
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (l *LocalChangefeed) Listen(_ context.Context, topic string) (<-chan struct{}, func(), error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	id := l.nextID
	l.nextID++

	ch := make(chan struct{}, 1)
	if l.listeners[topic] == nil {
		l.listeners[topic] = make(map[int]chan struct{})
	}
	l.listeners[topic][id] = ch

	var once sync.Once
	stop := func() {
		once.Do(func() {
			l.mutex.Lock()
			defer l.mutex.Unlock()

			delete(l.listeners[topic], id)
			// delete topic from map if nobody listens to it
			if len(l.listeners[topic]) == 0 {
				delete(l.listeners, topic)
			}
		})
	}
	return ch, stop, nil
}

// RedisChangefeed fans signals out to every instance sharing the redis server.
type RedisChangefeed struct {
	client *redis.Client
	sugar  *zap.SugaredLogger
	prefix string
}

func NewRedisChangefeed(client *redis.Client, sugar *zap.SugaredLogger) *RedisChangefeed {
	return &RedisChangefeed{client: client, sugar: sugar, prefix: "skillfolio:"}
}

func (r *RedisChangefeed) Publish(ctx context.Context, topic string) error {
	return r.client.Publish(ctx, r.prefix+topic, "1").Err()
}

func (r *RedisChangefeed) Listen(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	pubsub := r.client.Subscribe(ctx, r.prefix+topic)

	// wait for the subscription confirmation so no publish after Listen is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	signals := make(chan struct{}, 1)
	msgCh := pubsub.Channel()
	done := make(chan struct{})

	go func() {
		defer close(signals)
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				r.sugar.Error(err)
			}
		})
	}
	return signals, stop, nil
}
