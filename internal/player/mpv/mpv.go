// Package mpv drives an external mpv process as a playback element over
// mpv's JSON IPC socket.
package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/vitrina/vitrina/internal/player"
)

const (
	propTimePos  = 1
	propDuration = 2
	propVolume   = 3
	propPause    = 4
)

type Config struct {
	Path       string
	Args       []string
	SocketPath string
}

// Element is a player.Element backed by a running mpv process.
type Element struct {
	ipc    *client
	cmd    *exec.Cmd
	socket string
	logger *slog.Logger

	mu       sync.Mutex
	current  float64
	duration float64

	updates chan player.TimeUpdate
	changes chan player.ElementChange
}

// Launch starts mpv paused on src and connects to its IPC socket.
func Launch(ctx context.Context, cfg Config, src player.MediaSource, logger *slog.Logger) (*Element, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if src.VideoURL == "" {
		return nil, player.ErrNoSource
	}
	path := cfg.Path
	if path == "" {
		path = "mpv"
	}
	socket := cfg.SocketPath
	if socket == "" {
		socket = SocketPath()
	}
	_ = os.Remove(socket)

	args := []string{
		"--no-terminal",
		"--pause",
		"--keep-open=yes",
		"--force-window=yes",
		"--input-ipc-server=" + socket,
	}
	args = append(args, cfg.Args...)
	args = append(args, src.VideoURL)

	cmd := exec.Command(path, args...)
	setupProcess(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}
	logger.Info("started mpv", "pid", cmd.Process.Pid, "url", src.VideoURL)

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := dial(connCtx, socket, 40, 250*time.Millisecond, logger)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	e := newElement(newClient(conn, logger), logger)
	e.cmd = cmd
	e.socket = socket
	if err := e.observe(); err != nil {
		_ = e.Close()
		return nil, err
	}
	go func() {
		_ = cmd.Wait()
		logger.Debug("mpv exited", "pid", cmd.Process.Pid)
	}()
	return e, nil
}

func newElement(ipc *client, logger *slog.Logger) *Element {
	e := &Element{
		ipc:     ipc,
		logger:  logger,
		updates: make(chan player.TimeUpdate, 16),
		changes: make(chan player.ElementChange, 16),
	}
	go e.pump()
	return e
}

func (e *Element) observe() error {
	for id, name := range map[int]string{
		propTimePos:  "time-pos",
		propDuration: "duration",
		propVolume:   "volume",
		propPause:    "pause",
	} {
		if err := e.ipc.observe(id, name); err != nil {
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}
	return nil
}

func (e *Element) pump() {
	defer close(e.changes)
	defer close(e.updates)

	for event := range e.ipc.events {
		switch event.Event {
		case "property-change":
			e.applyProperty(event)
		case "end-file", "shutdown":
			e.logger.Debug("mpv playback finished", "event", event.Event)
		}
	}
}

func (e *Element) applyProperty(event Event) {
	if len(event.Data) == 0 {
		return
	}
	switch event.ID {
	case propPause:
		var paused bool
		if json.Unmarshal(event.Data, &paused) == nil {
			e.publish(player.ElementChange{Kind: player.ChangePlaying, Playing: !paused})
		}
		return
	case propVolume:
		var percent float64
		if json.Unmarshal(event.Data, &percent) == nil {
			e.publish(player.ElementChange{Kind: player.ChangeVolume, Volume: percent / 100})
		}
		return
	}

	var value float64
	if json.Unmarshal(event.Data, &value) != nil {
		return
	}
	e.mu.Lock()
	switch event.ID {
	case propTimePos:
		e.current = value
	case propDuration:
		e.duration = value
	default:
		e.mu.Unlock()
		return
	}
	update := player.TimeUpdate{CurrentTime: e.current, Duration: e.duration}
	e.mu.Unlock()

	select {
	case e.updates <- update:
	default:
		// consumer is behind; the next update carries fresher timing anyway
	}
}

func (e *Element) publish(change player.ElementChange) {
	select {
	case e.changes <- change:
	default:
		e.logger.Debug("dropped mpv state change", "kind", change.Kind)
	}
}

// Updates delivers time updates until mpv exits or the element is closed.
func (e *Element) Updates() <-chan player.TimeUpdate {
	return e.updates
}

// Changes delivers pause and volume changes made in the mpv window. It is
// closed together with Updates.
func (e *Element) Changes() <-chan player.ElementChange {
	return e.changes
}

func (e *Element) Play() error {
	return e.ipc.send("set_property", "pause", false)
}

func (e *Element) Pause() error {
	return e.ipc.send("set_property", "pause", true)
}

func (e *Element) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Element) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *Element) Seek(seconds float64) error {
	return e.ipc.send("seek", seconds, "absolute")
}

// SetVolume takes a level in [0,1]; mpv's volume property is a percentage.
func (e *Element) SetVolume(level float64) error {
	return e.ipc.send("set_property", "volume", level*100)
}

func (e *Element) FullscreenEntryPoints() []player.FullscreenEntryPoint {
	return []player.FullscreenEntryPoint{
		{Name: "fullscreen-property", Request: func() error {
			return e.ipc.send("set_property", "fullscreen", true)
		}},
		{Name: "cycle-fullscreen", Request: func() error {
			return e.ipc.send("cycle", "fullscreen")
		}},
	}
}

// Close asks mpv to quit, then tears down the connection and process.
func (e *Element) Close() error {
	var errs []error
	if err := e.ipc.send("quit"); err != nil {
		e.logger.Debug("mpv quit command failed", "error", err)
	}
	if err := e.ipc.close(); err != nil {
		errs = append(errs, err)
	}
	if e.cmd != nil && e.cmd.Process != nil {
		if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, err)
		}
	}
	if e.socket != "" {
		if err := os.Remove(e.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("failed to remove mpv socket", "path", e.socket, "error", err)
		}
	}
	return errors.Join(errs...)
}
