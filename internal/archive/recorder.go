// Package archive persists and announces collections after they are served.
// Archive failures are logged and counted but never fail the request.
package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/metrics"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

const defaultTimeout = 5 * time.Second

// Store writes a collection row.
type Store interface {
	StoreCollection(ctx context.Context, id string, c trends.Collection) error
}

// Publisher emits a notification message.
type Publisher interface {
	Publish(ctx context.Context, payload any, attrs map[string]string) (string, error)
}

// IDGenerator yields unique archive identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Event is the notification payload for an archived collection.
type Event struct {
	ID          string    `json:"id"`
	Location    string    `json:"location"`
	Language    string    `json:"language"`
	Source      string    `json:"source"`
	SourceURL   string    `json:"source_url"`
	Timestamp   time.Time `json:"timestamp"`
	TotalTrends int       `json:"total_trends"`
	Titles      []string  `json:"titles"`
}

// Options wires the optional sinks. A nil Store or Publisher skips that sink.
type Options struct {
	Store     Store
	Publisher Publisher
	IDs       IDGenerator
	Timeout   time.Duration
}

// Recorder decorates a trends.Service with archiving.
type Recorder struct {
	next   trends.Service
	opts   Options
	logger *zap.Logger
}

// NewRecorder wraps next.
func NewRecorder(next trends.Service, opts Options, logger *zap.Logger) *Recorder {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{next: next, opts: opts, logger: logger}
}

// Fetch delegates to the wrapped service and archives successful results.
func (r *Recorder) Fetch(ctx context.Context, q trends.Query) (trends.Collection, error) {
	c, err := r.next.Fetch(ctx, q)
	if err != nil {
		return c, err
	}
	r.record(ctx, c)
	return c, nil
}

func (r *Recorder) record(ctx context.Context, c trends.Collection) {
	if r.opts.Store == nil && r.opts.Publisher == nil {
		return
	}
	if r.opts.IDs == nil {
		r.logger.Warn("archive skipped: no id generator configured")
		return
	}
	id, err := r.opts.IDs.NewID()
	if err != nil {
		r.logger.Error("archive skipped: id generation failed", zap.Error(err))
		return
	}
	log := r.logger.With(zap.String("archive_id", id), zap.String("source", string(c.Source)))

	// Detached so a client disconnect after the response does not abort the write.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.Timeout)
	defer cancel()

	if r.opts.Store != nil {
		if err := r.opts.Store.StoreCollection(actx, id, c); err != nil {
			metrics.ObserveArchive("postgres", "error")
			log.Error("failed to archive collection", zap.Error(err))
		} else {
			metrics.ObserveArchive("postgres", "success")
			log.Debug("collection archived")
		}
	}

	if r.opts.Publisher != nil {
		attrs := map[string]string{"location": c.Location, "source": string(c.Source)}
		msgID, err := r.opts.Publisher.Publish(actx, eventFor(id, c), attrs)
		if err != nil {
			metrics.ObserveArchive("pubsub", "error")
			log.Error("failed to publish collection event", zap.Error(err))
			return
		}
		metrics.ObserveArchive("pubsub", "success")
		log.Debug("collection event published", zap.String("message_id", msgID))
	}
}

func eventFor(id string, c trends.Collection) Event {
	titles := make([]string, 0, len(c.Topics))
	for _, t := range c.Topics {
		titles = append(titles, t.Title)
	}
	return Event{
		ID:          id,
		Location:    c.Location,
		Language:    c.Language,
		Source:      string(c.Source),
		SourceURL:   c.SourceURL,
		Timestamp:   c.Timestamp,
		TotalTrends: c.TotalTrends,
		Titles:      titles,
	}
}
