package patchwork

// Project is one patchwork project, as returned by projects/.
type Project struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	LinkName string `json:"link_name"`
}

// Submitter identifies who wrote a comment.
type Submitter struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Comment is one review comment on a patch or cover letter.
type Comment struct {
	Content   string     `json:"content"`
	Submitter *Submitter `json:"submitter"`
}

// Patch is the remote state of one patch, including any comments fetched
// for tag gathering. The per-tag counts come from the list summary and let
// callers skip comment fetches when nothing new arrived.
type Patch struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	State       string `json:"state"`
	NumComments int    `json:"num_comments"`
	Acked       int    `json:"acked"`
	Reviewed    int    `json:"reviewed"`
	Tested      int    `json:"tested"`
	Fixes       int    `json:"fixes"`
	Comments    []Comment
}

// Cover is the remote cover letter of a series.
type Cover struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	NumComments int    `json:"num_comments"`
	Comments    []Comment
}

// Candidate is one possible remote series match reported by FindSeries.
type Candidate struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// SeriesState is the remote state of one series: its cover letter (nil when
// the series has none) and its patches in order.
type SeriesState struct {
	Cover   *Cover
	Patches []Patch
}

// seriesDetail mirrors the fields consumed from series/<link>/.
type seriesDetail struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Version     int     `json:"version"`
	CoverLetter *Cover  `json:"cover_letter"`
	Patches     []Patch `json:"patches"`
}
