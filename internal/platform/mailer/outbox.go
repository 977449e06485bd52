package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"social_auth/internal/common"
	"social_auth/internal/domain/model"
)

// ErrOutboxEmpty is returned by Pop when no message arrived before the timeout.
var ErrOutboxEmpty = errors.New("mail outbox is empty")

// Outbox is a Redis list of pending MailMessages. Producers RPush, the mail
// worker BLPops, so delivery is FIFO.
type Outbox struct {
	rdb   redis.Cmdable
	queue string
	clock common.Clock
	newID func() string
}

func NewOutbox(rdb redis.Cmdable, queue string, clock common.Clock) *Outbox {
	return &Outbox{rdb: rdb, queue: queue, clock: clock, newID: uuid.NewString}
}

// Queue returns the Redis key backing the outbox.
func (o *Outbox) Queue() string { return o.queue }

// Send enqueues a message for the mail worker.
func (o *Outbox) Send(ctx context.Context, to, subject, body string) error {
	msg := &model.MailMessage{
		ID:         o.newID(),
		To:         to,
		Subject:    subject,
		Body:       body,
		EnqueuedAt: o.clock.Now().UTC(),
	}
	return o.push(ctx, msg)
}

// Requeue pushes msg back to the tail after a failed delivery attempt.
func (o *Outbox) Requeue(ctx context.Context, msg *model.MailMessage) error {
	return o.push(ctx, msg)
}

func (o *Outbox) push(ctx context.Context, msg *model.MailMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return oops.In("mailer").Code("mail_encode_failed").With("message_id", msg.ID).Wrap(err)
	}
	if err := o.rdb.RPush(ctx, o.queue, string(payload)).Err(); err != nil {
		return oops.In("mailer").
			Code("mail_enqueue_failed").
			With("queue", o.queue).
			With("message_id", msg.ID).
			Wrapf(err, "enqueue mail")
	}
	return nil
}

// Pop blocks up to timeout for the next message. It returns ErrOutboxEmpty on
// timeout. A payload that cannot be decoded is returned as an error and is
// not requeued.
func (o *Outbox) Pop(ctx context.Context, timeout time.Duration) (*model.MailMessage, error) {
	res, err := o.rdb.BLPop(ctx, timeout, o.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOutboxEmpty
		}
		return nil, err
	}
	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		return nil, ErrOutboxEmpty
	}

	var msg model.MailMessage
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, oops.In("mailer").Code("mail_decode_failed").With("queue", o.queue).Wrap(err)
	}
	return &msg, nil
}
