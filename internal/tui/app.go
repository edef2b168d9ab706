// Package tui is the terminal client: it lists the gallery and drives
// playback through an external media element.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vitrina/vitrina/internal/client"
	"github.com/vitrina/vitrina/internal/gallery"
	"github.com/vitrina/vitrina/internal/player"
	"github.com/vitrina/vitrina/internal/session"
)

type Gallery interface {
	Me(ctx context.Context) (gallery.User, error)
	Videos(ctx context.Context, query string) (gallery.Feed[gallery.Video], error)
	Posts(ctx context.Context, query string) (gallery.Feed[gallery.Post], error)
}

// Element is a playable surface that also publishes its timing and the
// changes made from its own window.
type Element interface {
	player.Element
	Updates() <-chan player.TimeUpdate
	Changes() <-chan player.ElementChange
	Close() error
}

type Launcher func(ctx context.Context, src player.MediaSource) (Element, error)

type tab int

const (
	tabVideos tab = iota
	tabPosts
)

type Model struct {
	ctx     context.Context
	stop    context.CancelFunc
	gallery Gallery
	launch  Launcher
	logger  *slog.Logger
	keys    KeyMap

	help    help.Model
	spinner spinner.Model
	list    list.Model

	user    *gallery.User
	tab     tab
	status  gallery.Status
	message string
	notice  string
	videos  []gallery.Video
	posts   []gallery.Post

	// loadSeq identifies the live fetch; cancelLoad tears it down when the
	// view changes.
	loadSeq    int
	cancelLoad context.CancelFunc

	player    *playerView
	launching bool
	quitting  bool
	err       error

	width, height int
}

func New(ctx context.Context, g Gallery, launch Launcher, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = subtleStyle

	ctx, stop := context.WithCancel(ctx)

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.SetShowHelp(false)
	l.SetShowTitle(false)

	return Model{
		ctx:     ctx,
		stop:    stop,
		gallery: g,
		launch:  launch,
		logger:  logger,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		list:    l,
		status:  gallery.StatusLoading,
	}
}

// Err is the error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadProfile())
}

func (m Model) loadProfile() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		u, err := m.gallery.Me(ctx)
		return profileMsg{user: u, err: err}
	}
}

// load starts the fetch for the active tab, dropping any fetch in flight.
func (m *Model) load() tea.Cmd {
	if m.cancelLoad != nil {
		m.cancelLoad()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelLoad = cancel
	m.loadSeq++
	m.status = gallery.StatusLoading
	m.message = ""
	m.list.SetItems(nil)

	seq := m.loadSeq
	g := m.gallery
	if m.tab == tabPosts {
		return func() tea.Msg {
			var denied error
			feed, err := gallery.Load(ctx, func(ctx context.Context) ([]gallery.Post, error) {
				f, err := g.Posts(ctx, "")
				denied = err
				return f.Items, err
			}, gallery.PostsFailedMessage)
			if err == nil && client.IsStatus(denied, http.StatusForbidden) {
				err = denied
			}
			return postsMsg{seq: seq, feed: feed, err: err}
		}
	}
	return func() tea.Msg {
		var denied error
		feed, err := gallery.Load(ctx, func(ctx context.Context) ([]gallery.Video, error) {
			f, err := g.Videos(ctx, "")
			denied = err
			return f.Items, err
		}, gallery.VideosFailedMessage)
		if err == nil && client.IsStatus(denied, http.StatusForbidden) {
			err = denied
		}
		return videosMsg{seq: seq, feed: feed, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, max(msg.Height-6, 3))
		m.help.Width = msg.Width
		if m.player != nil {
			m.player.resize(msg.Width)
		}
		return m, nil

	case spinner.TickMsg:
		if m.status != gallery.StatusLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case profileMsg:
		return m.handleProfile(msg)

	case videosMsg:
		if msg.seq != m.loadSeq || errors.Is(msg.err, gallery.ErrViewClosed) {
			return m, nil
		}
		if m.denied(msg.err) {
			return m, nil
		}
		m.status, m.message = msg.feed.Status, msg.feed.Error
		m.videos = msg.feed.Items
		items := make([]list.Item, len(m.videos))
		for i, v := range m.videos {
			items[i] = videoItem{video: v}
		}
		return m, m.list.SetItems(items)

	case postsMsg:
		if msg.seq != m.loadSeq || errors.Is(msg.err, gallery.ErrViewClosed) {
			return m, nil
		}
		if m.denied(msg.err) {
			return m, nil
		}
		m.status, m.message = msg.feed.Status, msg.feed.Error
		m.posts = msg.feed.Items
		items := make([]list.Item, len(m.posts))
		for i, p := range m.posts {
			items[i] = postItem{post: p}
		}
		return m, m.list.SetItems(items)

	case playerStartedMsg:
		m.launching = false
		if msg.el != nil && (m.quitting || m.player != nil) {
			if err := msg.el.Close(); err != nil {
				m.logger.Warn("failed to close media element", "error", err)
			}
			return m, nil
		}
		if msg.err != nil {
			if m.quitting {
				return m, nil
			}
			m.logger.Warn("failed to start player", "url", msg.src.VideoURL, "error", msg.err)
			m.message = "Could not start the player: " + msg.err.Error()
			return m, nil
		}
		pv, err := newPlayerView(msg.title, msg.src, msg.el, m.logger)
		if err != nil {
			_ = msg.el.Close()
			m.message = err.Error()
			return m, nil
		}
		pv.resize(m.width)
		m.player = pv
		return m, waitForElement(msg.el)

	case timeUpdateMsg:
		if m.player == nil || m.player.el != msg.el {
			return m, nil
		}
		m.player.controller.OnTimeUpdate(msg.update.CurrentTime, msg.update.Duration)
		return m, waitForElement(msg.el)

	case elementChangeMsg:
		if m.player == nil || m.player.el != msg.el {
			return m, nil
		}
		m.player.controller.OnElementChange(msg.change)
		return m, waitForElement(msg.el)

	case playerEndedMsg:
		if m.player != nil && m.player.el == msg.el {
			m.player.close()
			m.player = nil
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleProfile(msg profileMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		return m, tea.Quit
	}
	m.user = &msg.user
	if !msg.user.IsPremium() {
		m.status = gallery.StatusEmpty
		m.notice = session.NoticeText(session.NoticeNoAccess)
		return m, nil
	}
	cmd := m.load()
	return m, cmd
}

// denied turns a role rejection from the server into the home notice.
func (m *Model) denied(err error) bool {
	if !client.IsStatus(err, http.StatusForbidden) {
		return false
	}
	m.status = gallery.StatusEmpty
	m.notice = session.NoticeText(session.NoticeNoAccess)
	m.list.SetItems(nil)
	return true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.teardown()
		return m, tea.Quit
	}

	if m.player != nil {
		if !m.player.handleKey(msg, m.keys) {
			m.player.close()
			m.player = nil
		}
		return m, nil
	}

	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.teardown()
		return m, tea.Quit
	case m.user == nil || !m.user.IsPremium():
		return m, nil
	case key.Matches(msg, m.keys.NextTab):
		if m.tab == tabVideos {
			m.tab = tabPosts
		} else {
			m.tab = tabVideos
		}
		cmd := m.load()
		return m, tea.Batch(cmd, m.spinner.Tick)
	case key.Matches(msg, m.keys.Reload):
		cmd := m.load()
		return m, tea.Batch(cmd, m.spinner.Tick)
	case key.Matches(msg, m.keys.Play):
		cmd := m.play()
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// play launches the selected video. One launch runs at a time.
func (m *Model) play() tea.Cmd {
	if m.tab != tabVideos || m.launch == nil || m.launching || m.player != nil {
		return nil
	}
	item, ok := m.list.SelectedItem().(videoItem)
	if !ok {
		return nil
	}
	src := player.MediaSource{VideoURL: item.video.VideoURL, ThumbnailURL: item.video.ThumbnailURL}
	if src.VideoURL == "" {
		return func() tea.Msg {
			return playerStartedMsg{title: item.video.Title, src: src, err: player.ErrNoSource}
		}
	}
	m.launching = true
	ctx, launch := m.ctx, m.launch
	return func() tea.Msg {
		el, err := launch(ctx, src)
		if err == nil && ctx.Err() != nil {
			_ = el.Close()
			el, err = nil, ctx.Err()
		}
		return playerStartedMsg{title: item.video.Title, src: src, el: el, err: err}
	}
}

// teardown stops fetches and launches in flight and releases the player.
func (m *Model) teardown() {
	m.quitting = true
	m.stop()
	if m.cancelLoad != nil {
		m.cancelLoad()
	}
	if m.player != nil {
		m.player.close()
		m.player = nil
	}
}

func (m Model) View() string {
	if m.player != nil {
		return m.player.view() + "\n\n" + m.help.View(playerKeys(m.keys))
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch {
	case m.notice != "":
		b.WriteString(noticeStyle.Render(m.notice))
	case m.user == nil || m.status == gallery.StatusLoading:
		b.WriteString(m.spinner.View() + " Loading...")
	case m.status == gallery.StatusFailed:
		b.WriteString(errorStyle.Render(m.message))
	case m.status == gallery.StatusEmpty:
		if m.tab == tabPosts {
			b.WriteString(subtleStyle.Render("No posts available."))
		} else {
			b.WriteString(subtleStyle.Render("No videos available."))
		}
	default:
		if m.message != "" {
			b.WriteString(errorStyle.Render(m.message) + "\n")
		}
		b.WriteString(m.list.View())
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(browserKeys(m.keys)))
	return b.String()
}

func (m Model) header() string {
	name := "vitrina"
	if m.user != nil && m.user.DisplayName != "" {
		name = "Welcome, " + m.user.DisplayName
	}
	videos, posts := tabStyle, tabStyle
	if m.tab == tabVideos {
		videos = activeTabStyle
	} else {
		posts = activeTabStyle
	}
	return headerStyle.Render(name) + " " + videos.Render("Videos") + posts.Render("Images")
}
