package player

import "errors"

var ErrFullscreenUnsupported = errors.New("fullscreen not supported")

// FullscreenEntryPoint is one way of asking an element for exclusive
// fullscreen presentation. Elements usually expose several variants.
type FullscreenEntryPoint struct {
	Name    string
	Request func() error
}

// FullscreenProvider is implemented by elements that can present fullscreen.
type FullscreenProvider interface {
	FullscreenEntryPoints() []FullscreenEntryPoint
}

// RequestFullscreen tries each entry point the element offers, in order,
// and stops at the first one that succeeds. Failures are logged only.
func (c *Controller) RequestFullscreen() {
	if !c.bound() {
		return
	}
	provider, ok := c.element.(FullscreenProvider)
	if !ok {
		c.logger.Warn("fullscreen unavailable", "url", c.source.VideoURL, "error", ErrFullscreenUnsupported)
		return
	}

	var tried int
	for _, ep := range provider.FullscreenEntryPoints() {
		if ep.Request == nil {
			continue
		}
		tried++
		if err := ep.Request(); err != nil {
			c.logger.Debug("fullscreen entry point failed", "entry_point", ep.Name, "error", err)
			continue
		}
		return
	}

	if tried == 0 {
		c.logger.Warn("fullscreen unavailable", "url", c.source.VideoURL, "error", ErrFullscreenUnsupported)
		return
	}
	c.logger.Warn("fullscreen request failed", "url", c.source.VideoURL, "entry_points", tried)
}
