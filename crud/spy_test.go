package crud

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/GoCodeAlone/mongo-mcp/store"
)

// spyDialer wraps a dialer and counts every store interaction made through
// the clients it hands out.
type spyDialer struct {
	inner store.Dialer

	mu      sync.Mutex
	calls   map[string]int
	clients []*spyClient
}

func newSpyDialer(inner store.Dialer) *spyDialer {
	return &spyDialer{inner: inner, calls: make(map[string]int)}
}

func (d *spyDialer) count(name string) {
	d.mu.Lock()
	d.calls[name]++
	d.mu.Unlock()
}

// total returns the number of store calls of the given kinds, or of every
// kind when none is given.
func (d *spyDialer) total(names ...string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(names) == 0 {
		n := 0
		for _, c := range d.calls {
			n += c
		}
		return n
	}
	n := 0
	for _, name := range names {
		n += d.calls[name]
	}
	return n
}

func (d *spyDialer) Dial(ctx context.Context, uri string) (store.Client, error) {
	d.count("dial")
	c, err := d.inner.Dial(ctx, uri)
	if err != nil {
		return nil, err
	}
	sc := &spyClient{Client: c, spy: d}
	d.mu.Lock()
	d.clients = append(d.clients, sc)
	d.mu.Unlock()
	return sc, nil
}

type spyClient struct {
	store.Client
	spy    *spyDialer
	closed int
}

func (c *spyClient) Ping(ctx context.Context) error {
	c.spy.count("ping")
	return c.Client.Ping(ctx)
}

func (c *spyClient) Close(ctx context.Context) error {
	c.spy.count("close")
	c.spy.mu.Lock()
	c.closed++
	c.spy.mu.Unlock()
	return c.Client.Close(ctx)
}

func (c *spyClient) Database(name string) store.Database {
	return &spyDatabase{Database: c.Client.Database(name), spy: c.spy}
}

type spyDatabase struct {
	store.Database
	spy *spyDialer
}

func (d *spyDatabase) Collection(name string) store.Collection {
	return &spyCollection{Collection: d.Database.Collection(name), spy: d.spy}
}

type spyCollection struct {
	store.Collection
	spy *spyDialer
}

func (c *spyCollection) InsertOne(ctx context.Context, doc bson.D) (any, error) {
	c.spy.count("insert")
	return c.Collection.InsertOne(ctx, doc)
}

func (c *spyCollection) Find(ctx context.Context, filter bson.D, opts store.FindOptions) ([]bson.D, error) {
	c.spy.count("find")
	return c.Collection.Find(ctx, filter, opts)
}

func (c *spyCollection) UpdateMany(ctx context.Context, filter, update bson.D, upsert bool) (store.UpdateResult, error) {
	c.spy.count("update")
	return c.Collection.UpdateMany(ctx, filter, update, upsert)
}

func (c *spyCollection) DeleteMany(ctx context.Context, filter bson.D) (int64, error) {
	c.spy.count("delete")
	return c.Collection.DeleteMany(ctx, filter)
}

// dataCalls are the store primitives issued by data operations.
var dataCalls = []string{"insert", "find", "update", "delete"}

type observation struct {
	op, outcome string
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (o *recordingObserver) ObserveOperation(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	o.seen = append(o.seen, observation{op: op, outcome: outcome})
	o.mu.Unlock()
}
