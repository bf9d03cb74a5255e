package capsule

import (
	"bytes"
	"encoding/json"
)

// ExportJSON returns the canonical pretty-printed exchange text for c.
// Missing sections are written as empty arrays so other readers never see null.
func ExportJSON(c *Capsule) (string, error) {
	out := c.Clone()
	if out == nil {
		out = &Capsule{}
	}
	fillSections(out)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Wrap(out)); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// ParseEnvelope decodes exchange text. It does not validate the result;
// callers decide whether a schema mismatch means absence or rejection.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ValidateImported reports whether env is acceptable for import: the schema tag
// matches exactly, the title is non-empty, and at least one section has content.
func ValidateImported(env *Envelope) bool {
	if env == nil || env.Schema != Schema {
		return false
	}
	c := env.Capsule
	if c == nil || c.Meta.Title == "" {
		return false
	}
	return c.HasContent()
}

func fillSections(c *Capsule) {
	if c.Notes == nil {
		c.Notes = []string{}
	}
	if c.Flashcards == nil {
		c.Flashcards = []Flashcard{}
	}
	if c.Quiz == nil {
		c.Quiz = []QuizQuestion{}
	}
	for i := range c.Quiz {
		if c.Quiz[i].Choices == nil {
			c.Quiz[i].Choices = []string{}
		}
	}
}
