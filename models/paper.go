package models

import "time"

// Paper is one arXiv entry as stored in the papers collection.
// The arXiv identifier (e.g. "2406.01234v1") is the document _id.
type Paper struct {
	ID         string    `bson:"_id" json:"id"`
	Title      string    `bson:"title" json:"title"`
	Authors    string    `bson:"authors" json:"authors"`
	Summary    string    `bson:"summary" json:"summary"`
	Categories string    `bson:"categories" json:"categories"`
	PDFURL     string    `bson:"pdf_url" json:"pdf_url"`
	Published  time.Time `bson:"published" json:"published"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	Indexed    bool      `bson:"indexed" json:"indexed"`
	Favorite   bool      `bson:"favorite" json:"favorite"`
}

// Topic is a saved arXiv query that the daily fetch job runs.
type Topic struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Query       string    `bson:"query" json:"query"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	LastFetched time.Time `bson:"last_fetched,omitempty" json:"last_fetched,omitempty"`
}

// PaperChunk is a denormalized entry in the vector index: the embedded
// title+summary text plus the metadata needed to cite it. At most one
// chunk exists per paper id.
type PaperChunk struct {
	PaperID    string    `bson:"paper_id" json:"paper_id"`
	Vector     []float32 `bson:"vector" json:"-"`
	Text       string    `bson:"text" json:"text"`
	Title      string    `bson:"title" json:"title"`
	Categories string    `bson:"categories" json:"categories"`
}

// RetrievedPaper is a ranked vector search hit.
type RetrievedPaper struct {
	PaperID string  `json:"paper_id"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Citation references a paper that backed part of an answer.
type Citation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
