package intake

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lightningnetwork/lnd/queue"

	"github.com/channelwatch/msd/mslog"
)

var log = mslog.Logger("INTK")

// Topic is the watermill topic MonitorRequest messages arrive on.
const Topic = "monitor_requests"

// Intake buffers incoming, wire-decoded MonitorRequest messages between
// the transport's delivery goroutine and the single-threaded main loop,
// the way lnd buffers inbound wire messages per-peer with a
// queue.ConcurrentQueue rather than letting an unbounded number of
// reader goroutines write directly into shared state.
type Intake struct {
	sub   message.Subscriber
	queue *queue.ConcurrentQueue
}

// NewIntake subscribes to Topic on sub and starts draining deliveries
// into an internal queue. Call Requests to consume them.
func NewIntake(sub message.Subscriber) (*Intake, error) {
	messages, err := sub.Subscribe(context.Background(), Topic)
	if err != nil {
		return nil, err
	}

	q := queue.NewConcurrentQueue(64)
	q.Start()

	in := &Intake{sub: sub, queue: q}

	go in.pump(messages)

	return in, nil
}

func (in *Intake) pump(messages <-chan *message.Message) {
	for m := range messages {
		var req Request
		if err := json.Unmarshal(m.Payload, &req); err != nil {
			log.Warnf("Dropping malformed monitor request message %s: %v", m.UUID, err)
			m.Ack()
			continue
		}
		in.queue.ChanIn() <- req
		m.Ack()
	}
}

// Requests returns the channel the main loop drains queued, decoded
// requests from.
func (in *Intake) Requests() <-chan interface{} {
	return in.queue.ChanOut()
}

// Close stops the internal queue and the underlying subscriber.
func (in *Intake) Close() error {
	in.queue.Stop()
	return in.sub.Close()
}
