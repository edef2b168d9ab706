package tui

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vitrina/vitrina/internal/gallery"
)

var printer = message.NewPrinter(language.English)

type videoItem struct {
	video gallery.Video
}

func (i videoItem) Title() string { return i.video.Title }

func (i videoItem) Description() string {
	return fmt.Sprintf("%s  %s views  %s", renderStars(i.video.Rating), printer.Sprintf("%d", i.video.Views), i.video.CreatedAt.Format("Jan 2, 2006"))
}

func (i videoItem) FilterValue() string { return i.video.Title + " " + i.video.Description }

type postItem struct {
	post gallery.Post
}

func (i postItem) Title() string { return i.post.Title }

func (i postItem) Description() string {
	return fmt.Sprintf("%d images  Views: %s  Rating: %.1f/5", len(i.post.Images), printer.Sprintf("%d", i.post.Views), i.post.Rating)
}

func (i postItem) FilterValue() string { return i.post.Title + " " + i.post.Description }

// renderStars fills star n when n <= rating, out of five.
func renderStars(rating float64) string {
	var b strings.Builder
	for n := 1; n <= gallery.MaxRating; n++ {
		if float64(n) <= rating {
			b.WriteString("★")
		} else {
			b.WriteString("☆")
		}
	}
	return starStyle.Render(b.String())
}
