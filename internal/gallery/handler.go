package gallery

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vitrina/vitrina/internal/httputil"
)

// Messages shown in place of a feed that failed to load.
const (
	VideosFailedMessage = "There was a problem loading the videos. Check your connection or permissions."
	PostsFailedMessage  = "There was a problem loading the posts. Check your connection or permissions."
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// VideoFeed loads the videos view for the request, applying the optional
// "q" filter.
func (h *Handler) VideoFeed(r *http.Request) (Feed[Video], error) {
	feed, err := Load(r.Context(), h.service.Videos, VideosFailedMessage)
	if err != nil {
		return feed, err
	}
	return feed.Filter(MatchVideo(r.URL.Query().Get("q"))), nil
}

func (h *Handler) PostFeed(r *http.Request) (Feed[Post], error) {
	feed, err := Load(r.Context(), h.service.Posts, PostsFailedMessage)
	if err != nil {
		return feed, err
	}
	return feed.Filter(MatchPost(r.URL.Query().Get("q"))), nil
}

func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	feed, err := h.VideoFeed(r)
	if errors.Is(err, ErrViewClosed) {
		slog.Debug("client went away before videos loaded", "path", r.URL.Path)
		return
	}
	writeFeed(w, feed)
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	feed, err := h.PostFeed(r)
	if errors.Is(err, ErrViewClosed) {
		slog.Debug("client went away before posts loaded", "path", r.URL.Path)
		return
	}
	writeFeed(w, feed)
}

func writeFeed[T any](w http.ResponseWriter, feed Feed[T]) {
	if feed.Status == StatusFailed {
		httputil.WriteError(w, http.StatusBadGateway, feed.Error)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}
