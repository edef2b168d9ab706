package gallery

import (
	"math"
	"time"

	"github.com/vitrina/vitrina/internal/docstore"
)

const (
	DefaultTitle       = "Untitled"
	DefaultDescription = "No description"

	RolePremium = "premium"

	MaxRating = 5
)

type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Views        int       `json:"views"`
	Rating       float64   `json:"rating"`
	CreatedAt    time.Time `json:"createdAt"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`

	videoKey     string
	thumbnailKey string
}

type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	Views       int       `json:"views"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"createdAt"`
}

// User is the profile of the signed-in account.
type User struct {
	UID         string     `json:"uid"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	Status      string     `json:"status"`
	Role        string     `json:"role"`
	PhoneNumber string     `json:"phoneNumber"`
	PlanName    string     `json:"planName"`
	PayTime     *time.Time `json:"payTime"`
	CreatedTime *time.Time `json:"createdTime"`
}

func (u User) IsPremium() bool {
	return u.Role == RolePremium
}

// Remote field names. The first key of each list is the canonical one.
var (
	keysTitle       = []string{"titulo", "title"}
	keysDescription = []string{"descripcion", "description"}
	keysViews       = []string{"visualizaciones", "views"}
	keysRating      = []string{"valoracion", "rating"}
	keysCreated     = []string{"createTime", "create_time", "created_at"}
	keysVideoURL    = []string{"url", "video_url"}
	keysThumbnail   = []string{"urlString", "thumbnail_url"}
)

// MapVideo never fails; absent or mistyped fields fall back to defaults and
// a missing creation time becomes now.
func MapVideo(doc docstore.Document, now time.Time) Video {
	f := doc.Fields
	v := Video{
		ID:           doc.ID,
		Title:        text(f, DefaultTitle, keysTitle...),
		Description:  text(f, DefaultDescription, keysDescription...),
		Views:        count(f, keysViews...),
		Rating:       rating(f, keysRating...),
		CreatedAt:    timestamp(f, now, keysCreated...),
		VideoURL:     text(f, "", keysVideoURL...),
		ThumbnailURL: text(f, "", keysThumbnail...),
	}
	v.videoKey, _ = f.Text("file_key")
	v.thumbnailKey, _ = f.Text("thumbnail_key")
	return v
}

func MapPost(doc docstore.Document, now time.Time) Post {
	f := doc.Fields
	images, _ := f.Strings("images")
	if images == nil {
		images = []string{}
	}
	return Post{
		ID:          doc.ID,
		Title:       text(f, DefaultTitle, keysTitle...),
		Description: text(f, DefaultDescription, keysDescription...),
		Images:      images,
		Views:       count(f, keysViews...),
		Rating:      rating(f, keysRating...),
		CreatedAt:   timestamp(f, now, keysCreated...),
	}
}

func MapUser(doc docstore.Document) User {
	f := doc.Fields
	u := User{
		UID:         doc.ID,
		Email:       text(f, "", "email"),
		DisplayName: text(f, "", "display_name", "displayName"),
		Status:      text(f, "", "status"),
		Role:        text(f, "", "role"),
		PhoneNumber: text(f, "", "phone_number", "phoneNumber"),
		PlanName:    text(f, "", "plan_name", "planName"),
	}
	if t, ok := f.Time("pay_time"); ok {
		u.PayTime = &t
	}
	if t, ok := f.Time("created_time"); ok {
		u.CreatedTime = &t
	}
	return u
}

func text(f docstore.Fields, fallback string, keys ...string) string {
	for _, k := range keys {
		if s, ok := f.Text(k); ok {
			return s
		}
	}
	return fallback
}

func count(f docstore.Fields, keys ...string) int {
	for _, k := range keys {
		if n, ok := f.Number(k); ok {
			if n < 0 {
				return 0
			}
			if n > math.MaxInt32 {
				return math.MaxInt32
			}
			return int(n)
		}
	}
	return 0
}

func rating(f docstore.Fields, keys ...string) float64 {
	for _, k := range keys {
		if n, ok := f.Number(k); ok {
			return math.Min(math.Max(n, 0), MaxRating)
		}
	}
	return 0
}

func timestamp(f docstore.Fields, fallback time.Time, keys ...string) time.Time {
	for _, k := range keys {
		if t, ok := f.Time(k); ok {
			return t
		}
	}
	return fallback.UTC()
}
