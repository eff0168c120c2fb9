package archive

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/publisher/memory"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

type stubService struct {
	collection trends.Collection
	err        error
}

func (s stubService) Fetch(context.Context, trends.Query) (trends.Collection, error) {
	return s.collection, s.err
}

type recordingStore struct {
	mu     sync.Mutex
	ids    []string
	rows   []trends.Collection
	err    error
	ctxErr error
}

func (s *recordingStore) StoreCollection(ctx context.Context, id string, c trends.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	s.rows = append(s.rows, c)
	s.ctxErr = ctx.Err()
	return s.err
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, any, map[string]string) (string, error) {
	return "", errors.New("topic not found")
}

type sequentialIDs struct{ n int }

func (g *sequentialIDs) NewID() (string, error) {
	g.n++
	return "id-" + strconv.Itoa(g.n), nil
}

type brokenIDs struct{}

func (brokenIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func sampleCollection() trends.Collection {
	return trends.NewCollection(
		trends.Query{Geo: "HK", Language: "en"},
		"https://trends.google.com/trending?geo=HK&hl=en",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		trends.SourceRaw,
		[]trends.Topic{{Title: "Typhoon Signal"}, {Title: "Harbour Festival"}},
	)
}

func TestRecorderArchivesAndPublishes(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	pub := memory.New()
	rec := NewRecorder(stubService{collection: sampleCollection()}, Options{
		Store:     store,
		Publisher: pub,
		IDs:       &sequentialIDs{},
	}, zap.NewNop())

	got, err := rec.Fetch(context.Background(), trends.Query{})
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalTrends)

	require.Equal(t, []string{"id-1"}, store.ids)
	require.Equal(t, got, store.rows[0])

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	event, ok := msgs[0].Payload.(Event)
	require.True(t, ok)
	require.Equal(t, "id-1", event.ID)
	require.Equal(t, []string{"Typhoon Signal", "Harbour Festival"}, event.Titles)
	require.Equal(t, "raw", event.Source)
	require.Equal(t, map[string]string{"location": "HK", "source": "raw"}, msgs[0].Attributes)
}

func TestRecorderFailuresDoNotFailRequest(t *testing.T) {
	t.Parallel()

	store := &recordingStore{err: errors.New("db down")}
	rec := NewRecorder(stubService{collection: sampleCollection()}, Options{
		Store:     store,
		Publisher: failingPublisher{},
		IDs:       &sequentialIDs{},
	}, nil)

	got, err := rec.Fetch(context.Background(), trends.Query{})
	require.NoError(t, err)
	require.Equal(t, sampleCollection(), got)
	require.Len(t, store.ids, 1)
}

func TestRecorderSkipsOnIDFailure(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	rec := NewRecorder(stubService{collection: sampleCollection()}, Options{Store: store, IDs: brokenIDs{}}, nil)

	_, err := rec.Fetch(context.Background(), trends.Query{})
	require.NoError(t, err)
	require.Empty(t, store.ids)
}

func TestRecorderPropagatesServiceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream exploded")
	store := &recordingStore{}
	rec := NewRecorder(stubService{err: boom}, Options{Store: store, IDs: &sequentialIDs{}}, nil)

	_, err := rec.Fetch(context.Background(), trends.Query{})
	require.ErrorIs(t, err, boom)
	require.Empty(t, store.ids)
}

func TestRecorderSurvivesCanceledRequestContext(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	rec := NewRecorder(stubService{collection: sampleCollection()}, Options{Store: store, IDs: &sequentialIDs{}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Fetch(ctx, trends.Query{})
	require.NoError(t, err)
	require.NoError(t, store.ctxErr)
}
