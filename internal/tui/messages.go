package tui

import (
	"github.com/vitrina/vitrina/internal/gallery"
	"github.com/vitrina/vitrina/internal/player"
)

type profileMsg struct {
	user gallery.User
	err  error
}

// Feed results carry the load sequence they answer; stale ones are dropped.
type videosMsg struct {
	seq  int
	feed gallery.Feed[gallery.Video]
	err  error
}

type postsMsg struct {
	seq  int
	feed gallery.Feed[gallery.Post]
	err  error
}

type playerStartedMsg struct {
	title string
	src   player.MediaSource
	el    Element
	err   error
}

type timeUpdateMsg struct {
	el     Element
	update player.TimeUpdate
}

type elementChangeMsg struct {
	el     Element
	change player.ElementChange
}

type playerEndedMsg struct {
	el Element
}
