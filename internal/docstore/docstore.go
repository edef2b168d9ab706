// Package docstore is a schemaless document store on top of PostgreSQL
// JSONB. Documents are grouped in collections and any field may be absent.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vitrina/vitrina/internal/database"
)

const (
	CollectionVideos = "videos"
	CollectionPosts  = "posts"
	CollectionUsers  = "users"
)

var ErrNotFound = errors.New("document not found")

type Document struct {
	ID        string
	Fields    Fields
	CreatedAt time.Time
}

type Store struct {
	db database.DBTX
}

func New(db database.DBTX) *Store {
	return &Store{db: db}
}

// List returns every document in collection, newest first.
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, data, created_at FROM documents WHERE collection = $1 ORDER BY created_at DESC, id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", collection, err)
		}
		doc.Fields = decodeFields(data)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	doc := Document{ID: id}
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data, created_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc.Fields = decodeFields(data)
	return doc, nil
}

// Put creates or replaces a document wholesale.
func (s *Store) Put(ctx context.Context, collection, id string, fields Fields) error {
	if collection == "" || id == "" {
		return fmt.Errorf("put document: collection and id are required")
	}
	if fields == nil {
		fields = Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, id, data,
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// decodeFields never fails: undecodable data yields an empty document.
func decodeFields(data []byte) Fields {
	fields := Fields{}
	if len(data) == 0 {
		return fields
	}
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Fields{}
	}
	return fields
}
