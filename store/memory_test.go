package store

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func newTestCollection(t *testing.T) (*MemoryDialer, Collection) {
	t.Helper()
	d := NewMemoryDialer()
	client, err := d.Dial(context.Background(), "memory://test")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return d, client.Database("app").Collection("items")
}

func int64p(v int64) *int64 { return &v }

func mustInsert(t *testing.T, coll Collection, doc bson.D) any {
	t.Helper()
	id, err := coll.InsertOne(context.Background(), doc)
	if err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}
	return id
}

func TestMemory_InsertFind(t *testing.T) {
	ctx := context.Background()
	_, coll := newTestCollection(t)

	id := mustInsert(t, coll, bson.D{{Key: "name", Value: "Widget"}, {Key: "price", Value: 9.99}})
	if _, ok := id.(bson.ObjectID); !ok {
		t.Fatalf("expected generated ObjectID, got %T", id)
	}

	docs, err := coll.Find(ctx, bson.D{}, FindOptions{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0][0].Key != "_id" || docs[0][0].Value != id {
		t.Errorf("expected _id first and equal to %v, got %v", id, docs[0][0])
	}

	// Mutating a returned document must not touch the stored copy.
	docs[0][1].Value = "Gadget"
	again, _ := coll.Find(ctx, bson.D{}, FindOptions{})
	if again[0][1].Value != "Widget" {
		t.Errorf("stored document was mutated through Find result: %v", again[0])
	}
}

func TestMemory_DuplicateID(t *testing.T) {
	_, coll := newTestCollection(t)
	mustInsert(t, coll, bson.D{{Key: "_id", Value: "a"}})

	_, err := coll.InsertOne(context.Background(), bson.D{{Key: "_id", Value: "a"}})
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
	if !IsDuplicateKey(err) {
		t.Errorf("expected IsDuplicateKey, got %v", err)
	}
}

func TestMemory_FindSkipLimit(t *testing.T) {
	ctx := context.Background()
	_, coll := newTestCollection(t)
	for i := int64(1); i <= 5; i++ {
		mustInsert(t, coll, bson.D{{Key: "n", Value: i}})
	}

	docs, err := coll.Find(ctx, bson.D{}, FindOptions{Skip: int64p(2), Limit: int64p(2)})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	for i, want := range []int64{3, 4} {
		if got, _ := lookupKey(docs[i], "n"); got != want {
			t.Errorf("docs[%d].n = %v, want %d", i, got, want)
		}
	}

	all, _ := coll.Find(ctx, bson.D{}, FindOptions{Limit: int64p(0)})
	if len(all) != 5 {
		t.Errorf("limit 0 should not bound results, got %d", len(all))
	}
}

func TestMemory_FindOperators(t *testing.T) {
	ctx := context.Background()
	_, coll := newTestCollection(t)
	mustInsert(t, coll, bson.D{{Key: "name", Value: "alice"}, {Key: "age", Value: int64(30)}, {Key: "tags", Value: bson.A{"admin", "dev"}},
		{Key: "address", Value: bson.D{{Key: "city", Value: "Paris"}}}})
	mustInsert(t, coll, bson.D{{Key: "name", Value: "bob"}, {Key: "age", Value: 25.0}, {Key: "tags", Value: bson.A{"dev"}}})
	mustInsert(t, coll, bson.D{{Key: "name", Value: "carol"}, {Key: "age", Value: int32(41)}, {Key: "nickname", Value: nil}})

	tests := []struct {
		name   string
		filter bson.D
		want   int
	}{
		{"empty", bson.D{}, 3},
		{"equality", bson.D{{Key: "name", Value: "bob"}}, 1},
		{"numeric cross type", bson.D{{Key: "age", Value: int64(25)}}, 1},
		{"array membership", bson.D{{Key: "tags", Value: "dev"}}, 2},
		{"dotted path", bson.D{{Key: "address.city", Value: "Paris"}}, 1},
		{"gt", bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(26)}}}}, 2},
		{"range", bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: 25}, {Key: "$lt", Value: 31}}}}, 2},
		{"in", bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{"alice", "carol", "zed"}}}}}, 2},
		{"nin", bson.D{{Key: "name", Value: bson.D{{Key: "$nin", Value: bson.A{"alice"}}}}}, 2},
		{"ne", bson.D{{Key: "name", Value: bson.D{{Key: "$ne", Value: "alice"}}}}, 2},
		{"exists", bson.D{{Key: "tags", Value: bson.D{{Key: "$exists", Value: false}}}}, 1},
		{"null matches missing and null", bson.D{{Key: "nickname", Value: nil}}, 3},
		{"regex", bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^A"}, {Key: "$options", Value: "i"}}}}, 1},
		{"size", bson.D{{Key: "tags", Value: bson.D{{Key: "$size", Value: 2}}}}, 1},
		{"not", bson.D{{Key: "age", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$gt", Value: 26}}}}}}, 1},
		{"or", bson.D{{Key: "$or", Value: bson.A{bson.D{{Key: "name", Value: "bob"}}, bson.D{{Key: "age", Value: 41}}}}}, 2},
		{"and", bson.D{{Key: "$and", Value: bson.A{bson.D{{Key: "tags", Value: "dev"}}, bson.D{{Key: "age", Value: 30}}}}}, 1},
		{"nor", bson.D{{Key: "$nor", Value: bson.A{bson.D{{Key: "name", Value: "bob"}}}}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := coll.Find(ctx, tt.filter, FindOptions{})
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if len(docs) != tt.want {
				t.Errorf("got %d documents, want %d", len(docs), tt.want)
			}
		})
	}
}

func TestMemory_FindUnsupportedOperator(t *testing.T) {
	_, coll := newTestCollection(t)
	mustInsert(t, coll, bson.D{{Key: "a", Value: 1}})

	_, err := coll.Find(context.Background(), bson.D{{Key: "a", Value: bson.D{{Key: "$near", Value: 1}}}}, FindOptions{})
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("expected ErrUnsupportedOperator, got %v", err)
	}
}

func TestMemory_UpdateManyMultiDocument(t *testing.T) {
	ctx := context.Background()
	_, coll := newTestCollection(t)
	for _, name := range []string{"a", "b", "c"} {
		mustInsert(t, coll, bson.D{{Key: "name", Value: name}, {Key: "group", Value: "g1"}, {Key: "n", Value: int64(1)}})
	}

	res, err := coll.UpdateMany(ctx,
		bson.D{{Key: "group", Value: "g1"}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "n", Value: int64(2)}}}, {Key: "$set", Value: bson.D{{Key: "meta.seen", Value: true}}}},
		false)
	if err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if res.Matched != 3 || res.Modified != 3 {
		t.Errorf("expected 3 matched/3 modified, got %+v", res)
	}
	if res.UpsertedID != nil {
		t.Errorf("expected no upsert, got %v", res.UpsertedID)
	}

	docs, _ := coll.Find(ctx, bson.D{{Key: "n", Value: int64(3)}, {Key: "meta.seen", Value: true}}, FindOptions{})
	if len(docs) != 3 {
		t.Errorf("expected all 3 documents updated, got %d", len(docs))
	}

	// Setting the same values again matches but modifies nothing.
	res, err = coll.UpdateMany(ctx, bson.D{}, bson.D{{Key: "$set", Value: bson.D{{Key: "group", Value: "g1"}}}}, false)
	if err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if res.Matched != 3 || res.Modified != 0 {
		t.Errorf("expected 3 matched/0 modified, got %+v", res)
	}
}

func TestMemory_UpdateManyUpsert(t *testing.T) {
	ctx := context.Background()
	_, coll := newTestCollection(t)

	res, err := coll.UpdateMany(ctx, bson.D{{Key: "sku", Value: "x-1"}}, bson.D{{Key: "$set", Value: bson.D{{Key: "qty", Value: int64(5)}}}}, false)
	if err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if res.Matched != 0 || res.Modified != 0 || res.UpsertedID != nil {
		t.Errorf("expected no-op, got %+v", res)
	}
	if docs, _ := coll.Find(ctx, bson.D{}, FindOptions{}); len(docs) != 0 {
		t.Fatalf("expected no insert without upsert, got %d documents", len(docs))
	}

	res, err = coll.UpdateMany(ctx,
		bson.D{{Key: "sku", Value: "x-1"}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "qty", Value: int64(5)}}}, {Key: "$setOnInsert", Value: bson.D{{Key: "created", Value: true}}}},
		true)
	if err != nil {
		t.Fatalf("UpdateMany upsert failed: %v", err)
	}
	if res.UpsertedID == nil {
		t.Fatal("expected upserted id")
	}

	docs, _ := coll.Find(ctx, bson.D{{Key: "sku", Value: "x-1"}}, FindOptions{})
	if len(docs) != 1 {
		t.Fatalf("expected upserted document to be readable, got %d", len(docs))
	}
	if qty, _ := lookupKey(docs[0], "qty"); qty != int64(5) {
		t.Errorf("qty = %v, want 5", qty)
	}
	if created, _ := lookupKey(docs[0], "created"); created != true {
		t.Errorf("$setOnInsert not applied: %v", docs[0])
	}
	if id, _ := lookupKey(docs[0], "_id"); id != res.UpsertedID {
		t.Errorf("_id %v does not match upserted id %v", id, res.UpsertedID)
	}
}

func TestMemory_UpdateOperators(t *testing.T) {
	ctx := context.Background()
	_, coll := newTestCollection(t)
	mustInsert(t, coll, bson.D{
		{Key: "_id", Value: "doc"},
		{Key: "score", Value: int64(10)},
		{Key: "price", Value: 2.5},
		{Key: "tags", Value: bson.A{"a", "b"}},
		{Key: "old", Value: "value"},
		{Key: "drop", Value: 1},
	})

	update := bson.D{
		{Key: "$max", Value: bson.D{{Key: "score", Value: int64(20)}}},
		{Key: "$mul", Value: bson.D{{Key: "price", Value: int64(2)}}},
		{Key: "$addToSet", Value: bson.D{{Key: "tags", Value: bson.D{{Key: "$each", Value: bson.A{"b", "c"}}}}}},
		{Key: "$rename", Value: bson.D{{Key: "old", Value: "renamed"}}},
		{Key: "$unset", Value: bson.D{{Key: "drop", Value: ""}}},
	}
	if _, err := coll.UpdateMany(ctx, bson.D{{Key: "_id", Value: "doc"}}, update, false); err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if _, err := coll.UpdateMany(ctx, bson.D{{Key: "_id", Value: "doc"}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "tags", Value: "a"}}}, {Key: "$min", Value: bson.D{{Key: "score", Value: int64(15)}}}}, false); err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}

	docs, _ := coll.Find(ctx, bson.D{}, FindOptions{})
	doc := docs[0]
	checks := map[string]any{
		"score":   int64(15),
		"price":   5.0,
		"renamed": "value",
	}
	for k, want := range checks {
		if got, _ := lookupKey(doc, k); !valuesEqual(got, want) {
			t.Errorf("%s = %v, want %v", k, got, want)
		}
	}
	if tags, _ := lookupKey(doc, "tags"); !valuesEqual(tags, bson.A{"b", "c"}) {
		t.Errorf("tags = %v, want [b c]", tags)
	}
	if _, ok := lookupKey(doc, "drop"); ok {
		t.Error("expected drop to be unset")
	}
	if _, ok := lookupKey(doc, "old"); ok {
		t.Error("expected old to be renamed")
	}
}

func TestMemory_UpdateRejections(t *testing.T) {
	ctx := context.Background()
	_, coll := newTestCollection(t)
	mustInsert(t, coll, bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: "x"}})

	tests := []struct {
		name   string
		update bson.D
	}{
		{"replacement document", bson.D{{Key: "name", Value: "y"}}},
		{"empty", bson.D{}},
		{"immutable id", bson.D{{Key: "$set", Value: bson.D{{Key: "_id", Value: 2}}}}},
		{"inc non-numeric", bson.D{{Key: "$inc", Value: bson.D{{Key: "name", Value: 1}}}}},
		{"unknown operator", bson.D{{Key: "$frobnicate", Value: bson.D{{Key: "a", Value: 1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := coll.UpdateMany(ctx, bson.D{}, tt.update, false); err == nil {
				t.Error("expected an error")
			}
		})
	}

	docs, _ := coll.Find(ctx, bson.D{}, FindOptions{})
	if got, _ := lookupKey(docs[0], "name"); got != "x" {
		t.Errorf("failed updates must not change the document, name = %v", got)
	}
}

func TestMemory_DeleteMany(t *testing.T) {
	ctx := context.Background()
	_, coll := newTestCollection(t)
	for i := 0; i < 4; i++ {
		mustInsert(t, coll, bson.D{{Key: "even", Value: i%2 == 0}})
	}

	n, err := coll.DeleteMany(ctx, bson.D{{Key: "even", Value: true}})
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	n, err = coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	if docs, _ := coll.Find(ctx, bson.D{}, FindOptions{}); len(docs) != 0 {
		t.Errorf("expected empty collection, got %d", len(docs))
	}
}

func TestMemory_ReconnectSeesData(t *testing.T) {
	ctx := context.Background()
	d, coll := newTestCollection(t)
	mustInsert(t, coll, bson.D{{Key: "k", Value: "v"}})

	other, err := d.Dial(ctx, "memory://test")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	docs, err := other.Database("app").Collection("items").Find(ctx, bson.D{}, FindOptions{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("expected data shared by server name, got %d documents", len(docs))
	}

	isolated, _ := d.Dial(ctx, "memory://elsewhere")
	docs, _ = isolated.Database("app").Collection("items").Find(ctx, bson.D{}, FindOptions{})
	if len(docs) != 0 {
		t.Errorf("expected a separate server to be empty, got %d", len(docs))
	}
}

func TestMemory_ConnectionLoss(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDialer()
	client, _ := d.Dial(ctx, "memory://flaky")
	coll := client.Database("app").Collection("items")

	d.SetDown("flaky", true)
	if err := client.Ping(ctx); !IsConnectionLost(err) {
		t.Errorf("Ping on down server: expected connection lost, got %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.D{}); !IsConnectionLost(err) {
		t.Errorf("InsertOne on down server: expected connection lost, got %v", err)
	}

	d.SetDown("flaky", false)
	if err := client.Ping(ctx); err != nil {
		t.Errorf("Ping after recovery failed: %v", err)
	}

	if err := client.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := coll.Find(ctx, bson.D{}, FindOptions{}); !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Find on closed client: expected ErrConnectionLost, got %v", err)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	_, coll := newTestCollection(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := coll.InsertOne(ctx, bson.D{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
