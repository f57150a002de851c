// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package store binds schemas to document store collections.
//
// Collections are [gocloud.dev/docstore] collections. The in-memory driver
// serves tests and development while MongoDB serves production. Index
// management and aggregation pipelines are only available on MongoDB.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/z5labs/crud/concurrent"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gocloud.dev/docstore"
	"gocloud.dev/docstore/memdocstore"
	"gocloud.dev/docstore/mongodocstore"
)

// KeyField is the document field holding the document id.
const KeyField = "_id"

// RevisionField is the document field the store uses for optimistic
// locking. It never leaves this package's callers.
const RevisionField = docstore.DefaultRevisionField

// Opener opens named collections.
type Opener interface {
	OpenCollection(ctx context.Context, name string) (*docstore.Collection, error)
}

// OpenerFunc is a func type of the [Opener] interface.
type OpenerFunc func(context.Context, string) (*docstore.Collection, error)

// OpenCollection implements the [Opener] interface.
func (f OpenerFunc) OpenCollection(ctx context.Context, name string) (*docstore.Collection, error) {
	return f(ctx, name)
}

// MemOpener opens in-memory collections. Opening the same name twice
// returns the same collection.
type MemOpener struct {
	colls *concurrent.Cache[string, *docstore.Collection]
}

// NewMemOpener
func NewMemOpener() *MemOpener {
	return &MemOpener{
		colls: concurrent.NewCache[string, *docstore.Collection](),
	}
}

// OpenCollection implements the [Opener] interface.
func (o *MemOpener) OpenCollection(ctx context.Context, name string) (*docstore.Collection, error) {
	return o.colls.GetOr(name, func() (*docstore.Collection, error) {
		return memdocstore.OpenCollection(KeyField, nil)
	})
}

// Close closes every collection opened so far.
func (o *MemOpener) Close() error {
	var errs []error
	o.colls.Range(func(name string, coll *docstore.Collection) bool {
		err := coll.Close()
		if err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// MongoOpener opens collections of a MongoDB database.
type MongoOpener struct {
	db *mongo.Database
}

// NewMongoOpener
func NewMongoOpener(db *mongo.Database) *MongoOpener {
	return &MongoOpener{db: db}
}

// OpenCollection implements the [Opener] interface.
func (o *MongoOpener) OpenCollection(ctx context.Context, name string) (*docstore.Collection, error) {
	return mongodocstore.OpenCollection(o.db.Collection(name), KeyField, nil)
}

// Store is an [Opener] backed by a connection which must be closed.
type Store struct {
	Opener

	driver string
	ping   func(context.Context) error
	close  func(context.Context) error
}

// Driver returns the name of the store driver, "mem" or "mongo".
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks that the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the store connection.
func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}

// Mem returns an in-memory [Store].
func Mem() *Store {
	o := NewMemOpener()
	return &Store{
		Opener: o,
		driver: "mem",
		ping:   func(context.Context) error { return nil },
		close:  func(context.Context) error { return o.Close() },
	}
}

// Open connects to the store identified by url. Supported schemes are
// mem:// and mongodb:// (or mongodb+srv://). database selects the MongoDB
// database and is ignored by the in-memory store.
func Open(ctx context.Context, url, database string) (*Store, error) {
	switch {
	case strings.HasPrefix(url, "mem://"):
		return Mem(), nil
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		return openMongo(ctx, url, database)
	default:
		return nil, UnsupportedStoreError{URL: url}
	}
}

func openMongo(ctx context.Context, url, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, err
	}

	return &Store{
		Opener: NewMongoOpener(client.Database(database)),
		driver: "mongo",
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		close: client.Disconnect,
	}, nil
}
