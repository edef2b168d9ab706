// Package seed imports gallery documents from a YAML file, uploading any
// local media they reference.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/vitrina/vitrina/internal/docstore"
	"github.com/vitrina/vitrina/internal/validate"
)

// File is the import format. Each entry is stored as-is apart from the
// keys handled here: id, file and thumbnail_file.
type File struct {
	Videos []docstore.Fields `yaml:"videos"`
	Posts  []docstore.Fields `yaml:"posts"`
	Users  []docstore.Fields `yaml:"users"`
}

type Writer interface {
	Put(ctx context.Context, collection, id string, fields docstore.Fields) error
}

type Uploader interface {
	Exists(ctx context.Context, key string) (bool, error)
	UploadFile(ctx context.Context, key, filePath, contentType string) error
}

type Result struct {
	Videos, Posts, Users, Uploads int
}

func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}
	return f, nil
}

func ParseFile(name string) (File, error) {
	fh, err := os.Open(name)
	if err != nil {
		return File{}, err
	}
	defer func() { _ = fh.Close() }()
	return Parse(fh)
}

type Importer struct {
	docs    Writer
	media   Uploader
	baseDir string
	now     func() time.Time
}

// NewImporter resolves relative media paths against baseDir. media may be
// nil when the file references no local media.
func NewImporter(docs Writer, media Uploader, baseDir string) *Importer {
	return &Importer{docs: docs, media: media, baseDir: baseDir, now: time.Now}
}

type entry struct {
	collection string
	id         string
	fields     docstore.Fields
}

func (im *Importer) Run(ctx context.Context, f File) (Result, error) {
	var res Result
	entries, err := im.prepare(f)
	if err != nil {
		return res, err
	}

	uploads, err := im.uploadMedia(ctx, entries)
	if err != nil {
		return res, err
	}
	res.Uploads = uploads

	for _, e := range entries {
		if err := im.docs.Put(ctx, e.collection, e.id, e.fields); err != nil {
			return res, err
		}
		switch e.collection {
		case docstore.CollectionVideos:
			res.Videos++
		case docstore.CollectionPosts:
			res.Posts++
		case docstore.CollectionUsers:
			res.Users++
		}
	}
	slog.Info("seed imported", "videos", res.Videos, "posts", res.Posts, "users", res.Users, "uploads", res.Uploads)
	return res, nil
}

func (im *Importer) prepare(f File) ([]entry, error) {
	now := docstore.NewTimestamp(im.now())
	var entries []entry

	add := func(collection string, docs []docstore.Fields, stamped bool) error {
		for i, fields := range docs {
			fields, err := normalize(fields)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", collection, i, err)
			}
			id, _ := fields.Text("id")
			delete(fields, "id")
			if id == "" {
				if collection == docstore.CollectionUsers {
					return fmt.Errorf("%s[%d]: id is required", collection, i)
				}
				id = uuid.NewString()
			}
			if collection == docstore.CollectionUsers {
				if role, ok := fields.Text("role"); ok {
					if msg := validate.Role(role); msg != "" {
						return fmt.Errorf("%s[%d]: %s", collection, i, msg)
					}
				}
			}
			if stamped {
				if _, ok := fields.Time("create_time"); !ok {
					if _, ok := fields.Time("createTime"); !ok {
						fields["create_time"] = now
					}
				}
			}
			entries = append(entries, entry{collection: collection, id: id, fields: fields})
		}
		return nil
	}

	if err := add(docstore.CollectionVideos, f.Videos, true); err != nil {
		return nil, err
	}
	if err := add(docstore.CollectionPosts, f.Posts, true); err != nil {
		return nil, err
	}
	if err := add(docstore.CollectionUsers, f.Users, false); err != nil {
		return nil, err
	}
	return entries, nil
}

var mediaKeys = map[string]string{
	"file":           "file_key",
	"thumbnail_file": "thumbnail_key",
}

// uploadMedia uploads local video and thumbnail files, replacing the
// local path with the object key. Objects already in the bucket are kept.
func (im *Importer) uploadMedia(ctx context.Context, entries []entry) (int, error) {
	type job struct {
		fields   docstore.Fields
		field    string
		key      string
		filePath string
	}
	var jobs []job
	for _, e := range entries {
		if e.collection != docstore.CollectionVideos {
			continue
		}
		for field, keyField := range mediaKeys {
			local, ok := e.fields.Text(field)
			if !ok {
				continue
			}
			if !filepath.IsAbs(local) {
				local = filepath.Join(im.baseDir, local)
			}
			jobs = append(jobs, job{
				fields:   e.fields,
				field:    keyField,
				key:      path.Join(e.collection, e.id, filepath.Base(local)),
				filePath: local,
			})
			delete(e.fields, field)
		}
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	if im.media == nil {
		return 0, fmt.Errorf("seed file references local media but object storage is not configured")
	}

	uploaded := make([]bool, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, j := range jobs {
		g.Go(func() error {
			if _, err := os.Stat(j.filePath); err != nil {
				return fmt.Errorf("media %s: %w", j.filePath, err)
			}
			exists, err := im.media.Exists(gctx, j.key)
			if err != nil {
				return err
			}
			if exists {
				slog.Debug("media already uploaded", "key", j.key)
				return nil
			}
			if err := im.media.UploadFile(gctx, j.key, j.filePath, contentType(j.filePath)); err != nil {
				return err
			}
			uploaded[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for i, j := range jobs {
		j.fields[j.field] = j.key
		if uploaded[i] {
			count++
		}
	}
	return count, nil
}

// normalize gives YAML values the shapes the gallery reads back from JSON:
// numbers become float64 and timestamps RFC 3339 strings.
func normalize(fields docstore.Fields) (docstore.Fields, error) {
	out := docstore.Fields{}
	if fields == nil {
		return out, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// videoTypes covers extensions missing from mime's builtin table on hosts
// without a system mime database.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
