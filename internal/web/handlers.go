package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/config"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/logging"
	"github.com/hpungsan/pocket/internal/ops"
	"github.com/hpungsan/pocket/internal/store"
)

// Blank rows appended to the author form so new items can be typed in.
const (
	blankCards     = 2
	blankQuestions = 1
)

// maxUploadBytes bounds an import upload, including multipart overhead.
const maxUploadBytes = ops.MaxImportBytes + 64<<10

// Studio is the store surface the web UI needs: capsules, progress, and the
// author draft.
type Studio interface {
	ops.Learner
	SaveDraft(ctx context.Context, d *store.Draft) error
	LoadDraft(ctx context.Context) (*store.Draft, error)
	ClearDraft(ctx context.Context) error
	EditDraft(ctx context.Context, id string) (*store.Draft, error)
	CommitDraft(ctx context.Context) (string, error)
}

var _ Studio = (*store.Store)(nil)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    Studio
	cfg      *config.Config
	log      *logging.Logger
	renderer *Renderer
}

// HandleLibrary handles GET / (the capsule library).
func (h *Handlers) HandleLibrary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListInput{
		Subject: q.Get("subject"),
		Level:   q.Get("level"),
		Limit:   parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(r.Context(), h.store, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	page := h.renderer.page("Library", "library")
	page.Flash = libraryFlash(q)
	h.renderer.renderPage(w, "library", LibraryPageData{
		PageData:   page,
		Items:      result.Items,
		Pagination: result.Pagination,
		Subject:    input.Subject,
		Level:      input.Level,
	})
}

func libraryFlash(q url.Values) string {
	switch {
	case q.Get("imported") != "":
		return fmt.Sprintf("Imported capsule %q.", q.Get("imported"))
	case q.Get("deleted") != "":
		return "Capsule deleted."
	}
	return ""
}

// HandleAuthor handles GET /author. With ?edit=<id> the stored capsule is
// copied into the draft first.
func (h *Handlers) HandleAuthor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if editID := r.URL.Query().Get("edit"); editID != "" {
		id, err := ops.ValidateID(editID)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		if _, err := h.store.EditDraft(ctx, id); err != nil {
			h.renderer.renderError(w, r, errors.Wrap(err))
			return
		}
		http.Redirect(w, r, "/author", http.StatusSeeOther)
		return
	}

	draft, err := h.store.LoadDraft(ctx)
	if err != nil {
		h.renderer.renderError(w, r, errors.Wrap(err))
		return
	}
	if draft == nil {
		draft = &store.Draft{Capsule: capsule.Capsule{Meta: capsule.Meta{Level: capsule.Levels[0]}}}
	}

	page := h.renderer.page("Author", "author")
	if r.URL.Query().Get("saved") != "" {
		page.Flash = "Draft saved."
	}
	h.renderer.renderPage(w, "author", h.authorData(page, draft, nil))
}

// HandleAuthorSubmit handles POST /author. The "action" field selects
// save (draft), commit (save capsule), or clear.
func (h *Handlers) HandleAuthorSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	action := r.PostForm.Get("action")
	if action == "clear" {
		if err := h.store.ClearDraft(ctx); err != nil {
			h.renderer.renderError(w, r, errors.Wrap(err))
			return
		}
		http.Redirect(w, r, "/author", http.StatusSeeOther)
		return
	}

	draft := &store.Draft{
		ID:      strings.TrimSpace(r.PostForm.Get("id")),
		Capsule: capsuleFromForm(r.PostForm),
	}
	if draft.ID != "" {
		if _, err := ops.ValidateID(draft.ID); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}
	// The form has no createdAt; keep the one the stored draft carries.
	prev, err := h.store.LoadDraft(ctx)
	if err != nil {
		h.renderer.renderError(w, r, errors.Wrap(err))
		return
	}
	if prev != nil && prev.ID == draft.ID {
		draft.Capsule.CreatedAt = prev.Capsule.CreatedAt
	}
	if err := h.store.SaveDraft(ctx, draft); err != nil {
		h.renderer.renderError(w, r, errors.Wrap(err))
		return
	}

	switch action {
	case "save":
		http.Redirect(w, r, "/author?saved=1", http.StatusSeeOther)
	case "commit":
		id, err := h.store.CommitDraft(ctx)
		if err != nil {
			if errors.Is(err, errors.ErrCapsuleInvalid) {
				var problems []string
				if res := capsule.Lint(&draft.Capsule); !res.Valid {
					problems = res.Problems
				}
				data := h.authorData(h.renderer.page("Author", "author"), draft, problems)
				h.renderer.renderPageStatus(w, http.StatusUnprocessableEntity, "author", data)
				return
			}
			h.renderer.renderError(w, r, errors.Wrap(err))
			return
		}
		h.log.Info("capsule saved", "id", id, "title", draft.Capsule.Meta.Title)
		http.Redirect(w, r, "/capsules/"+url.PathEscape(id)+"/learn", http.StatusSeeOther)
	default:
		h.renderer.renderError(w, r, errors.NewInvalidRequest(fmt.Sprintf("unknown action %q", action)))
	}
}

func (h *Handlers) authorData(page PageData, d *store.Draft, problems []string) AuthorPageData {
	c := d.Capsule
	cards := append(slices.Clone(c.Flashcards), make([]capsule.Flashcard, blankCards)...)
	questions := slices.Clone(c.Quiz)
	for range blankQuestions {
		questions = append(questions, capsule.QuizQuestion{Choices: make([]string, capsule.ChoicesPerQuestion)})
	}
	for i := range questions {
		// Short choice lists still render four inputs.
		for len(questions[i].Choices) < capsule.ChoicesPerQuestion {
			questions[i].Choices = append(questions[i].Choices, "")
		}
	}
	if d.ID != "" {
		page.Title = "Edit " + orDefault(c.Meta.Title, capsule.Untitled)
	}
	return AuthorPageData{
		PageData:  page,
		EditingID: d.ID,
		Capsule:   c,
		NotesText: strings.Join(c.Notes, "\n"),
		Cards:     cards,
		Questions: questions,
		Levels:    levelOptions(c.Meta.Level),
		SavedAt:   d.SavedAt,
		Problems:  problems,
	}
}

// levelOptions returns the suggested levels plus current when it is free-form.
func levelOptions(current string) []string {
	levels := slices.Clone(capsule.Levels)
	if strings.TrimSpace(current) != "" && !capsule.IsKnownLevel(current) {
		levels = append(levels, current)
	}
	return levels
}

// capsuleFromForm builds a capsule from the author form. Rows left entirely
// blank are dropped.
func capsuleFromForm(form url.Values) capsule.Capsule {
	c := capsule.Capsule{
		Meta: capsule.Meta{
			Title:       strings.TrimSpace(form.Get("title")),
			Subject:     strings.TrimSpace(form.Get("subject")),
			Level:       strings.TrimSpace(form.Get("level")),
			Description: strings.TrimSpace(form.Get("description")),
		},
		Notes:      capsule.SplitNotes(form.Get("notes")),
		Flashcards: []capsule.Flashcard{},
		Quiz:       []capsule.QuizQuestion{},
	}

	backs := form["card_back"]
	for i, front := range form["card_front"] {
		card := capsule.Flashcard{
			Front: strings.TrimSpace(front),
			Back:  strings.TrimSpace(at(backs, i)),
		}
		if card.Front == "" && card.Back == "" {
			continue
		}
		c.Flashcards = append(c.Flashcards, card)
	}

	for i, text := range form["q_text"] {
		q := capsule.QuizQuestion{
			Question:    strings.TrimSpace(text),
			Choices:     make([]string, capsule.ChoicesPerQuestion),
			Explanation: strings.TrimSpace(at(form["q_explanation"], i)),
		}
		blank := q.Question == "" && q.Explanation == ""
		for j := range q.Choices {
			q.Choices[j] = strings.TrimSpace(at(form["q_choice_"+strconv.Itoa(j)], i))
			blank = blank && q.Choices[j] == ""
		}
		if blank {
			continue
		}
		answer, err := strconv.Atoi(at(form["q_answer"], i))
		if err != nil {
			answer = 0
		}
		q.Answer = answer
		c.Quiz = append(c.Quiz, q)
	}
	return c
}

// HandleLearn handles GET /capsules/{id}/learn.
func (h *Handlers) HandleLearn(w http.ResponseWriter, r *http.Request) {
	fetched, err := ops.Fetch(r.Context(), h.store, chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, "learn", h.learnData(fetched, nil))
}

// HandleQuiz handles POST /capsules/{id}/quiz: grades the attempt, records
// the best score, and re-renders the learn page with the result.
func (h *Handlers) HandleQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	fetched, err := ops.Fetch(ctx, h.store, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	answers := make([]int, len(fetched.Capsule.Quiz))
	for i := range answers {
		answers[i] = ops.Unanswered
		if v, err := strconv.Atoi(r.PostForm.Get("q" + strconv.Itoa(i))); err == nil {
			answers[i] = v
		}
	}

	out, err := ops.SubmitQuiz(ctx, h.store, fetched.ID, answers)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	fetched.Progress = out.Progress
	h.renderer.renderPage(w, "learn", h.learnData(fetched, out.Result))
}

// HandleKnown handles POST /capsules/{id}/known: marks or unmarks one flashcard.
func (h *Handlers) HandleKnown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	card, err := strconv.Atoi(r.PostForm.Get("card"))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("card must be an integer"))
		return
	}
	known := r.PostForm.Get("known") != "false"

	out, err := ops.MarkKnown(r.Context(), h.store, id, card, known)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, out)
		return
	}
	http.Redirect(w, r, "/capsules/"+url.PathEscape(out.ID)+"/learn#flashcards", http.StatusSeeOther)
}

func (h *Handlers) learnData(f *ops.FetchOutput, result *ops.QuizResult) LearnPageData {
	c := f.Capsule
	cards := make([]CardView, len(c.Flashcards))
	for i, fc := range c.Flashcards {
		cards[i] = CardView{
			Index: i,
			Front: fc.Front,
			Back:  fc.Back,
			Known: slices.Contains(f.Progress.KnownFlashcards, i),
		}
	}
	return LearnPageData{
		PageData:  h.renderer.page(orDefault(c.Meta.Title, capsule.Untitled), "library"),
		ID:        f.ID,
		Capsule:   c,
		Progress:  f.Progress,
		NotesHTML: renderNotes(c.Notes),
		Cards:     cards,
		Result:    result,
	}
}

// HandleExport handles GET /capsules/{id}/export: downloads the exchange file.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	text, fetched, err := ops.ExportText(r.Context(), h.store, chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	name := ops.SanitizeForFilename(fetched.Capsule.Meta.Title) + ops.ExchangeExt
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text + "\n"))
}

// HandleImport handles POST /import: a multipart upload in the "file" field.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("an exchange file upload is required"))
		return
	}
	defer file.Close()

	out, err := ops.ImportReader(r.Context(), h.store, file)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.log.Info("capsule imported", "id", out.ID, "title", out.Title)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusCreated, out)
		return
	}
	http.Redirect(w, r, "/?imported="+url.QueryEscape(out.Title), http.StatusSeeOther)
}

// HandleDelete handles POST /capsules/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.store, chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.log.Info("capsule deleted", "id", result.ID, "existed", result.Deleted)

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/?deleted=1", http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// at returns values[i], or "" when the form sent fewer values.
func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
