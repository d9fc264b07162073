package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const DefaultChannel = "application_events"

// 事件类型
const (
	EventStatus = "application_status"
	EventLog    = "application_log"
	EventWorker = "worker_status"
)

// Event 申请处理事件，尽力投递，轮询接口才是权威数据
type Event struct {
	Type          string    `json:"type"`
	ApplicationID int64     `json:"application_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	State         string    `json:"state,omitempty"`
	Level         string    `json:"level,omitempty"`
	Message       string    `json:"message,omitempty"`
	Worker        string    `json:"worker,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher Redis 发布者
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Publish 发布事件
func (p *Publisher) Publish(ctx context.Context, ev *Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "pubsub: marshal event")
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return eris.Wrap(err, "pubsub: publish")
	}
	return nil
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe 阻塞订阅直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*Event)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// 确认订阅已建立
	if _, err := sub.Receive(ctx); err != nil {
		return eris.Wrap(err, "pubsub: subscribe")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				zap.L().Debug("skip malformed event", zap.Error(err))
				continue
			}

			handler(&ev)
		}
	}
}
