package bot

import (
	"context"
	"log"
	"time"

	"dutyline/internal/telegram"
)

// Updates is the inbound side of the chat transport.
type Updates interface {
	FetchUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Message, int64, error)
}

// Poller pulls updates from the transport and feeds them to the dispatcher
// until the context is cancelled.
type Poller struct {
	Client     Updates
	Dispatcher *Dispatcher
	Interval   time.Duration
}

const pollTimeout = 25 * time.Second

func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	var offset int64
	for {
		msgs, next, err := p.Client.FetchUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("poll error: %v", err)
		} else {
			offset = next
			for _, msg := range msgs {
				p.Dispatcher.Handle(ctx, msg)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
