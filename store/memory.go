package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryScheme is the descriptor prefix served by MemoryDialer.
const MemoryScheme = "memory://"

// MemoryDialer serves memory://<name> descriptors from process-local
// servers. Dialing the same name twice reaches the same data, so a
// disconnect followed by a reconnect sees earlier writes.
type MemoryDialer struct {
	mu      sync.Mutex
	servers map[string]*memoryServer
}

// NewMemoryDialer creates a MemoryDialer with no servers.
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{servers: make(map[string]*memoryServer)}
}

// Dial implements Dialer.
func (d *MemoryDialer) Dial(ctx context.Context, uri string) (Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, ok := strings.CutPrefix(uri, MemoryScheme)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a memory descriptor", ErrMalformedDescriptor, RedactURI(uri))
	}
	name, _, _ = strings.Cut(name, "/")
	if strings.ContainsAny(name, "@?") {
		return nil, fmt.Errorf("%w: invalid memory server name %q", ErrMalformedDescriptor, name)
	}
	return &memoryClient{srv: d.server(name)}, nil
}

// SetDown makes the named server unreachable, or reachable again. Clients
// of a down server fail every call with ErrConnectionLost.
func (d *MemoryDialer) SetDown(name string, down bool) {
	srv := d.server(name)
	srv.mu.Lock()
	srv.down = down
	srv.mu.Unlock()
}

func (d *MemoryDialer) server(name string) *memoryServer {
	d.mu.Lock()
	defer d.mu.Unlock()
	srv, ok := d.servers[name]
	if !ok {
		srv = &memoryServer{dbs: make(map[string]map[string][]bson.D)}
		d.servers[name] = srv
	}
	return srv
}

// memoryServer holds documents per database and collection in insertion
// order, which is the natural iteration order of Find.
type memoryServer struct {
	mu   sync.RWMutex
	down bool
	dbs  map[string]map[string][]bson.D
}

type memoryClient struct {
	srv    *memoryServer
	closed atomic.Bool
}

func (c *memoryClient) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closed.Load() {
		return fmt.Errorf("%w: client is closed", ErrConnectionLost)
	}
	c.srv.mu.RLock()
	down := c.srv.down
	c.srv.mu.RUnlock()
	if down {
		return fmt.Errorf("%w: memory server unreachable", ErrConnectionLost)
	}
	return nil
}

func (c *memoryClient) Ping(ctx context.Context) error {
	return c.check(ctx)
}

func (c *memoryClient) Database(name string) Database {
	return &memoryDatabase{client: c, name: name}
}

func (c *memoryClient) Close(_ context.Context) error {
	c.closed.Store(true)
	return nil
}

type memoryDatabase struct {
	client *memoryClient
	name   string
}

func (d *memoryDatabase) Name() string { return d.name }

func (d *memoryDatabase) Collection(name string) Collection {
	return &memoryCollection{client: d.client, db: d.name, name: name}
}

type memoryCollection struct {
	client *memoryClient
	db     string
	name   string
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc bson.D) (any, error) {
	if err := c.client.check(ctx); err != nil {
		return nil, err
	}
	stored := cloneDoc(doc)
	id, ok := lookupKey(stored, "_id")
	if !ok {
		id = bson.NewObjectID()
		stored = append(bson.D{{Key: "_id", Value: id}}, stored...)
	}

	srv := c.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := c.checkDuplicate(id); err != nil {
		return nil, err
	}
	c.put(append(c.docs(), stored))
	return id, nil
}

func (c *memoryCollection) Find(ctx context.Context, filter bson.D, opts FindOptions) ([]bson.D, error) {
	if err := c.client.check(ctx); err != nil {
		return nil, err
	}
	srv := c.client.srv
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	var skip, limit int64
	if opts.Skip != nil {
		skip = *opts.Skip
	}
	if opts.Limit != nil {
		limit = *opts.Limit
	}

	out := []bson.D{}
	for _, doc := range c.docs() {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, cloneDoc(doc))
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (c *memoryCollection) UpdateMany(ctx context.Context, filter, update bson.D, upsert bool) (UpdateResult, error) {
	if err := c.client.check(ctx); err != nil {
		return UpdateResult{}, err
	}
	if err := validateUpdate(update); err != nil {
		return UpdateResult{}, err
	}

	srv := c.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()

	// Changes are computed first and committed together so a failing
	// document leaves the collection untouched.
	docs := c.docs()
	next := make([]bson.D, len(docs))
	var res UpdateResult
	for i, doc := range docs {
		next[i] = doc
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return UpdateResult{}, err
		}
		if !ok {
			continue
		}
		res.Matched++
		updated, err := applyUpdate(doc, update, false)
		if err != nil {
			return UpdateResult{}, err
		}
		oldID, _ := lookupKey(doc, "_id")
		newID, _ := lookupKey(updated, "_id")
		if !valuesEqual(oldID, newID) {
			return UpdateResult{}, fmt.Errorf("performing an update on the path '_id' would modify the immutable field '_id'")
		}
		if !valuesEqual(doc, updated) {
			res.Modified++
			next[i] = updated
		}
	}

	if res.Matched == 0 && upsert {
		inserted, err := applyUpdate(upsertSeed(filter), update, true)
		if err != nil {
			return UpdateResult{}, err
		}
		id, ok := lookupKey(inserted, "_id")
		if !ok {
			id = bson.NewObjectID()
			inserted = append(bson.D{{Key: "_id", Value: id}}, inserted...)
		}
		if err := c.checkDuplicate(id); err != nil {
			return UpdateResult{}, err
		}
		next = append(next, inserted)
		res.UpsertedID = id
	}

	c.put(next)
	return res, nil
}

func (c *memoryCollection) DeleteMany(ctx context.Context, filter bson.D) (int64, error) {
	if err := c.client.check(ctx); err != nil {
		return 0, err
	}
	srv := c.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()

	docs := c.docs()
	kept := make([]bson.D, 0, len(docs))
	for _, doc := range docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return 0, err
		}
		if !ok {
			kept = append(kept, doc)
		}
	}
	c.put(kept)
	return int64(len(docs) - len(kept)), nil
}

// docs and put require srv.mu to be held.
func (c *memoryCollection) docs() []bson.D {
	return c.client.srv.dbs[c.db][c.name]
}

func (c *memoryCollection) put(docs []bson.D) {
	srv := c.client.srv
	colls, ok := srv.dbs[c.db]
	if !ok {
		colls = make(map[string][]bson.D)
		srv.dbs[c.db] = colls
	}
	colls[c.name] = docs
}

func (c *memoryCollection) checkDuplicate(id any) error {
	for _, existing := range c.docs() {
		if eid, ok := lookupKey(existing, "_id"); ok && valuesEqual(eid, id) {
			return fmt.Errorf("%w: E11000 duplicate key error collection: %s.%s index: _id_ dup key: { _id: %v }",
				ErrDuplicateKey, c.db, c.name, id)
		}
	}
	return nil
}
