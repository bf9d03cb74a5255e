package capsule

import (
	"strings"
	"time"
)

// Schema is the compatibility tag written around every stored and exported capsule.
// Records carrying any other tag are treated as absent.
const Schema = "pocket-classroom/v1"

// Untitled is the index title used when a capsule is saved without one.
const Untitled = "Untitled"

// Levels lists the suggested difficulty levels. Free-form levels are accepted.
var Levels = []string{"Beginner", "Intermediate", "Advanced"}

// Capsule is a titled bundle of study material.
type Capsule struct {
	Meta       Meta           `json:"meta"`
	Notes      []string       `json:"notes"`
	Flashcards []Flashcard    `json:"flashcards"`
	Quiz       []QuizQuestion `json:"quiz"`

	// CreatedAt is an ISO-8601 timestamp, set once at first save
	CreatedAt string `json:"createdAt,omitempty"`

	// UpdatedAt is an ISO-8601 timestamp, rewritten on every save
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Meta holds the descriptive fields shown in the library.
type Meta struct {
	Title       string `json:"title"`
	Subject     string `json:"subject"`
	Level       string `json:"level"`
	Description string `json:"description"`
}

// Flashcard is a two-sided study card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// QuizQuestion is a four-choice question. Answer indexes Choices.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation"`
}

// Envelope is the stored and exchanged wrapper around a capsule.
type Envelope struct {
	Schema  string   `json:"schema"`
	Capsule *Capsule `json:"capsule"`
}

// IndexEntry is the denormalized summary of one capsule kept in the library index.
type IndexEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subject   string `json:"subject"`
	Level     string `json:"level"`
	UpdatedAt string `json:"updatedAt"`
}

// Progress is per-capsule learner state.
type Progress struct {
	BestScore       int   `json:"bestScore"`
	KnownFlashcards []int `json:"knownFlashcards"`
}

// Wrap returns the envelope for c under the current schema.
func Wrap(c *Capsule) Envelope {
	return Envelope{Schema: Schema, Capsule: c}
}

// Clone returns a deep copy of c.
func (c *Capsule) Clone() *Capsule {
	if c == nil {
		return nil
	}
	out := *c
	if c.Notes != nil {
		out.Notes = append([]string{}, c.Notes...)
	}
	if c.Flashcards != nil {
		out.Flashcards = append([]Flashcard{}, c.Flashcards...)
	}
	if c.Quiz != nil {
		out.Quiz = make([]QuizQuestion, len(c.Quiz))
		for i, q := range c.Quiz {
			q.Choices = append([]string(nil), q.Choices...)
			out.Quiz[i] = q
		}
	}
	return &out
}

// HasContent reports whether at least one of notes, flashcards, or quiz is non-empty.
func (c *Capsule) HasContent() bool {
	return len(c.Notes) > 0 || len(c.Flashcards) > 0 || len(c.Quiz) > 0
}

// ToIndexEntry builds the index summary for the capsule stored under id.
func (c *Capsule) ToIndexEntry(id string) IndexEntry {
	title := c.Meta.Title
	if title == "" {
		title = Untitled
	}
	return IndexEntry{
		ID:        id,
		Title:     title,
		Subject:   c.Meta.Subject,
		Level:     c.Meta.Level,
		UpdatedAt: c.UpdatedAt,
	}
}

// Timestamp formats t as an ISO-8601 UTC string with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// SplitNotes turns an editor body into note lines, dropping blank lines.
func SplitNotes(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	notes := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			notes = append(notes, line)
		}
	}
	return notes
}
