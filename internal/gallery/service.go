package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitrina/vitrina/internal/docstore"
)

const mediaURLExpiry = 2 * time.Hour

type DocumentReader interface {
	List(ctx context.Context, collection string) ([]docstore.Document, error)
	Get(ctx context.Context, collection, id string) (docstore.Document, error)
}

// MediaSigner turns object storage keys into playable URLs.
type MediaSigner interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Service struct {
	docs   DocumentReader
	signer MediaSigner
	now    func() time.Time
}

func NewService(docs DocumentReader, signer MediaSigner) *Service {
	return &Service{docs: docs, signer: signer, now: time.Now}
}

func (s *Service) Videos(ctx context.Context) ([]Video, error) {
	docs, err := s.docs.List(ctx, docstore.CollectionVideos)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	now := s.now()
	videos := make([]Video, 0, len(docs))
	for _, doc := range docs {
		v := MapVideo(doc, now)
		s.resolveMedia(ctx, &v)
		videos = append(videos, v)
	}
	return videos, nil
}

func (s *Service) Posts(ctx context.Context) ([]Post, error) {
	docs, err := s.docs.List(ctx, docstore.CollectionPosts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	now := s.now()
	posts := make([]Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, MapPost(doc, now))
	}
	return posts, nil
}

// Profile loads the users/{uid} document. An account without a profile
// document still gets a defaulted User.
func (s *Service) Profile(ctx context.Context, uid, email string) (User, error) {
	doc, err := s.docs.Get(ctx, docstore.CollectionUsers, uid)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return User{}, fmt.Errorf("load profile: %w", err)
	}
	if errors.Is(err, docstore.ErrNotFound) {
		doc = docstore.Document{ID: uid}
	}
	u := MapUser(doc)
	if u.Email == "" {
		u.Email = email
	}
	return u, nil
}

func (s *Service) resolveMedia(ctx context.Context, v *Video) {
	if s.signer == nil {
		return
	}
	if v.VideoURL == "" && v.videoKey != "" {
		if url, err := s.signer.GenerateDownloadURL(ctx, v.videoKey, mediaURLExpiry); err == nil {
			v.VideoURL = url
		} else {
			slog.Warn("failed to presign video", "video_id", v.ID, "error", err)
		}
	}
	if v.ThumbnailURL == "" && v.thumbnailKey != "" {
		if url, err := s.signer.GenerateDownloadURL(ctx, v.thumbnailKey, mediaURLExpiry); err == nil {
			v.ThumbnailURL = url
		} else {
			slog.Warn("failed to presign thumbnail", "video_id", v.ID, "error", err)
		}
	}
}
