package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"
)

// Queue 唤醒提示队列。数据库中的 queued 记录才是权威队列，
// 这里的消息只用于让空闲 worker 尽快去领取
type Queue struct {
	client    *redis.Client
	queueName string
}

type Message struct {
	ApplicationID int64  `json:"application_id"`
	URL           string `json:"url,omitempty"`
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:    client,
		queueName: queueName,
	}
}

// Push 加入一条唤醒提示
func (q *Queue) Push(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "queue: marshal message")
	}

	if err := q.client.LPush(ctx, q.queueName, data).Err(); err != nil {
		return eris.Wrap(err, "queue: push")
	}
	return nil
}

// Pop 阻塞等待唤醒提示，超时返回 nil
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Message, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "queue: pop")
	}

	if len(result) < 2 {
		return nil, nil
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, eris.Wrap(err, "queue: unmarshal message")
	}

	return &msg, nil
}

// Length 当前未消费的提示数
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
