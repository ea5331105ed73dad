package area

import "time"

// Kind distinguishes where material is picked up from where it is dropped.
const (
	KindLoading   = "loading"
	KindUnloading = "unloading"
)

// Area is a registered loading or unloading zone. RadiusM is the zone's own
// extent; arrival detection adds its buffer on top.
type Area struct {
	ID        string    `json:"id"`
	SiteID    string    `json:"site_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Address   string    `json:"address"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	RadiusM   float64   `json:"radius_m"`
	CreatedAt time.Time `json:"created_at"`
}

func validKind(kind string) bool {
	return kind == KindLoading || kind == KindUnloading
}
