package capsule

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleCapsule() *Capsule {
	return &Capsule{
		Meta:       Meta{Title: "Algebra", Subject: "Math", Level: "Beginner", Description: "Basics"},
		Notes:      []string{"x+1=2"},
		Flashcards: []Flashcard{{Front: "x", Back: "1"}},
		Quiz: []QuizQuestion{{
			Question:    "x+1=2, x=?",
			Choices:     []string{"0", "1", "2", "3"},
			Answer:      1,
			Explanation: "subtract 1",
		}},
		CreatedAt: "2024-01-01T00:00:00.000Z",
		UpdatedAt: "2024-01-02T00:00:00.000Z",
	}
}

func TestExportJSON_RoundTrip(t *testing.T) {
	c := sampleCapsule()

	text, err := ExportJSON(c)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text, "{\n  \"schema\": \"pocket-classroom/v1\""))

	env, err := ParseEnvelope([]byte(text))
	require.NoError(t, err)
	require.True(t, ValidateImported(env))
	require.Equal(t, c, env.Capsule)
}

func TestExportJSON_EmptySectionsAreArrays(t *testing.T) {
	text, err := ExportJSON(&Capsule{Meta: Meta{Title: "Bare"}})
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &raw))
	for _, key := range []string{"notes", "flashcards", "quiz"} {
		require.NotNil(t, raw["capsule"][key], "section %s should be an empty array", key)
	}
}

func TestExportJSON_DoesNotMutateInput(t *testing.T) {
	c := &Capsule{Meta: Meta{Title: "Bare"}}
	_, err := ExportJSON(c)
	require.NoError(t, err)
	require.Nil(t, c.Notes)
}

func TestValidateImported(t *testing.T) {
	tests := []struct {
		name string
		env  *Envelope
		want bool
	}{
		{"valid", &Envelope{Schema: Schema, Capsule: sampleCapsule()}, true},
		{"nil envelope", nil, false},
		{"wrong schema", &Envelope{Schema: "pocket-classroom/v2", Capsule: sampleCapsule()}, false},
		{"missing schema", &Envelope{Capsule: sampleCapsule()}, false},
		{"missing capsule", &Envelope{Schema: Schema}, false},
		{"missing title", &Envelope{Schema: Schema, Capsule: &Capsule{Notes: []string{"n"}}}, false},
		{"no content", &Envelope{Schema: Schema, Capsule: &Capsule{Meta: Meta{Title: "T"}}}, false},
		{"only flashcards", &Envelope{Schema: Schema, Capsule: &Capsule{
			Meta: Meta{Title: "T"}, Flashcards: []Flashcard{{Front: "a", Back: "b"}},
		}}, true},
		{"only quiz", &Envelope{Schema: Schema, Capsule: &Capsule{
			Meta: Meta{Title: "T"}, Quiz: []QuizQuestion{{Question: "q"}},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ValidateImported(tt.env))
		})
	}
}

func TestParseEnvelope_Invalid(t *testing.T) {
	_, err := ParseEnvelope([]byte("not json"))
	require.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"schema":"pocket-classroom/v1","capsule":{"notes":"oops"}}`))
	require.Error(t, err)
}

func TestToIndexEntry(t *testing.T) {
	c := sampleCapsule()
	entry := c.ToIndexEntry("01ABC")
	require.Equal(t, IndexEntry{
		ID:        "01ABC",
		Title:     "Algebra",
		Subject:   "Math",
		Level:     "Beginner",
		UpdatedAt: c.UpdatedAt,
	}, entry)

	untitled := (&Capsule{}).ToIndexEntry("x")
	require.Equal(t, Untitled, untitled.Title)
}

func TestClone(t *testing.T) {
	c := sampleCapsule()
	cp := c.Clone()
	require.Equal(t, c, cp)

	cp.Notes[0] = "changed"
	cp.Quiz[0].Choices[0] = "changed"
	require.Equal(t, "x+1=2", c.Notes[0])
	require.Equal(t, "0", c.Quiz[0].Choices[0])

	var nilCapsule *Capsule
	require.Nil(t, nilCapsule.Clone())
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 5, 7, 8, 9, 123456789, time.FixedZone("X", 3600))
	require.Equal(t, "2024-03-05T06:08:09.123Z", Timestamp(ts))
}

func TestSplitNotes(t *testing.T) {
	got := SplitNotes("first\r\n\n   \n  second line\nthird")
	require.Equal(t, []string{"first", "  second line", "third"}, got)
	require.Empty(t, SplitNotes(""))
}
