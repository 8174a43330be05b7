package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	domainerrors "github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// View errors.
var (
	ErrBusy       = errors.New("a request for this chapter is already in progress")
	ErrNotEditing = errors.New("chapter is not being edited")
	ErrEditing    = errors.New("chapter is being edited")
)

// API is the part of the chapter service the view needs.
// HTTPClient implements it.
type API interface {
	List(ctx context.Context) ([]domain.Chapter, error)
	Create(ctx context.Context, req CreateRequest) (*domain.Chapter, error)
	Update(ctx context.Context, id int64, patch domain.ChapterPatch) (*domain.Chapter, error)
	Delete(ctx context.Context, id int64) error
	Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error)
}

// Player is the playback collaborator selecting a chapter drives.
type Player interface {
	Seek(seconds float64) error
	Play() error
}

// EditState is the per-chapter state of the view.
type EditState int

const (
	Viewing EditState = iota
	Editing
)

func (s EditState) String() string {
	if s == Editing {
		return "editing"
	}
	return "viewing"
}

// Draft holds the unsaved values of a chapter being edited.
type Draft struct {
	Title     string
	Timestamp float64
}

// Item is one row of the view.
type Item struct {
	Chapter domain.Chapter
	State   EditState
	Draft   Draft // zero unless State is Editing
	Pending bool
}

// View is the client's mirror of the chapter collection.
//
// The mirror only ever changes to what the server returned: records come from
// responses, never from drafts, and the view never assigns ids. Each chapter
// allows one outstanding call, and only one add can be in flight.
type View struct {
	api    API
	player Player
	logger *slog.Logger

	mu          sync.Mutex
	chapters    []domain.Chapter
	drafts      map[int64]Draft // present while Editing
	pending     map[int64]bool
	adding      bool
	uploading   bool
	videoURL    string
	needsReview bool
}

// NewView creates an empty view.
func NewView(api API, player Player, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		api:     api,
		player:  player,
		logger:  logger,
		drafts:  make(map[int64]Draft),
		pending: make(map[int64]bool),
	}
}

// Load replaces the mirror with the server's collection.
// Edits of chapters that no longer exist are dropped.
func (v *View) Load(ctx context.Context) error {
	chapters, err := v.api.List(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.replaceLocked(chapters)
	return nil
}

// Items returns a snapshot of the view in collection order.
func (v *View) Items() []Item {
	v.mu.Lock()
	defer v.mu.Unlock()

	items := make([]Item, len(v.chapters))
	for i, ch := range v.chapters {
		item := Item{Chapter: ch, Pending: v.pending[ch.ID]}
		if d, ok := v.drafts[ch.ID]; ok {
			item.State = Editing
			item.Draft = d
		}
		items[i] = item
	}
	return items
}

// Chapters returns a copy of the mirrored records.
func (v *View) Chapters() []domain.Chapter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return domain.CloneChapters(v.chapters)
}

// State returns the edit state of a chapter and its draft when editing.
func (v *View) State(id int64) (EditState, Draft, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.findLocked(id); !ok {
		return Viewing, Draft{}, notInView(id)
	}
	if d, ok := v.drafts[id]; ok {
		return Editing, d, nil
	}
	return Viewing, Draft{}, nil
}

// VideoURL returns the URL of the last uploaded video.
func (v *View) VideoURL() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.videoURL
}

// NeedsReview reports whether the last upload produced placeholder titles.
func (v *View) NeedsReview() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.needsReview
}

// StartEdit moves a chapter to Editing with a draft seeded from its record.
// Starting an edit that is already in progress keeps the current draft.
func (v *View) StartEdit(id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch, ok := v.findLocked(id)
	if !ok {
		return notInView(id)
	}
	if v.pending[id] {
		return ErrBusy
	}
	if _, editing := v.drafts[id]; editing {
		return nil
	}
	v.drafts[id] = Draft{Title: ch.Title, Timestamp: ch.Timestamp}
	return nil
}

// SetDraft replaces the draft of a chapter being edited.
func (v *View) SetDraft(id int64, draft Draft) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, editing := v.drafts[id]; !editing {
		return ErrNotEditing
	}
	if v.pending[id] {
		return ErrBusy
	}
	v.drafts[id] = draft
	return nil
}

// Cancel discards the draft without calling the server.
func (v *View) Cancel(id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending[id] {
		return ErrBusy
	}
	delete(v.drafts, id)
	return nil
}

// Save sends the draft as an update. Whatever the outcome the chapter returns
// to Viewing; on success the record is replaced by the server's copy, on
// failure the mirror is left as it was and the draft is discarded.
func (v *View) Save(ctx context.Context, id int64) (*domain.Chapter, error) {
	v.mu.Lock()
	draft, editing := v.drafts[id]
	switch {
	case !editing:
		v.mu.Unlock()
		return nil, ErrNotEditing
	case v.pending[id]:
		v.mu.Unlock()
		return nil, ErrBusy
	}
	v.pending[id] = true
	v.mu.Unlock()

	title := draft.Title
	timestamp := draft.Timestamp
	updated, err := v.api.Update(ctx, id, domain.ChapterPatch{Title: &title, Timestamp: &timestamp})

	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pending, id)
	delete(v.drafts, id)

	if err != nil {
		v.logger.Warn("chapter save failed", "id", id, "error", err)
		return nil, err
	}
	if i, ok := v.indexLocked(id); ok {
		v.chapters[i] = *updated
	}
	out := *updated
	return &out, nil
}

// Add asks the server for a new chapter with the default title at 0 seconds
// and appends whatever it returns.
func (v *View) Add(ctx context.Context) (*domain.Chapter, error) {
	v.mu.Lock()
	if v.adding {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	v.adding = true
	v.mu.Unlock()

	title := domain.DefaultChapterTitle
	timestamp := domain.DefaultChapterTimestamp
	created, err := v.api.Create(ctx, CreateRequest{Title: &title, Timestamp: &timestamp})

	v.mu.Lock()
	defer v.mu.Unlock()
	v.adding = false

	if err != nil {
		return nil, err
	}
	if _, exists := v.findLocked(created.ID); !exists {
		v.chapters = append(v.chapters, *created)
	}
	out := *created
	return &out, nil
}

// Delete asks the server to remove a chapter and drops it from the mirror
// once the server has confirmed.
func (v *View) Delete(ctx context.Context, id int64) error {
	v.mu.Lock()
	if v.pending[id] {
		v.mu.Unlock()
		return ErrBusy
	}
	v.pending[id] = true
	v.mu.Unlock()

	err := v.api.Delete(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pending, id)

	if err != nil {
		return err
	}
	if i, ok := v.indexLocked(id); ok {
		v.chapters = append(v.chapters[:i], v.chapters[i+1:]...)
	}
	delete(v.drafts, id)
	return nil
}

// Select seeks the player to the chapter and resumes playback.
// Timestamps past the end of the video are passed through; the player clamps.
func (v *View) Select(id int64) error {
	v.mu.Lock()
	ch, ok := v.findLocked(id)
	_, editing := v.drafts[id]
	v.mu.Unlock()

	if !ok {
		return notInView(id)
	}
	if editing {
		return ErrEditing
	}
	if v.player == nil {
		return domainerrors.Internal("no player attached")
	}

	if err := v.player.Seek(ch.Timestamp); err != nil {
		return err
	}
	return v.player.Play()
}

// Upload sends a video and replaces the mirror with the generated chapters.
// Refused while any chapter call is in flight.
func (v *View) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	v.mu.Lock()
	if v.uploading || v.adding || len(v.pending) > 0 {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	v.uploading = true
	v.mu.Unlock()

	resp, err := v.api.Upload(ctx, req)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.uploading = false

	if err != nil {
		return nil, err
	}
	v.replaceLocked(resp.Chapters)
	v.videoURL = resp.VideoURL
	v.needsReview = resp.NeedsReview
	return resp, nil
}

func (v *View) replaceLocked(chapters []domain.Chapter) {
	v.chapters = domain.CloneChapters(chapters)

	present := make(map[int64]bool, len(chapters))
	for _, ch := range chapters {
		present[ch.ID] = true
	}
	for id := range v.drafts {
		if !present[id] {
			delete(v.drafts, id)
		}
	}
}

func (v *View) findLocked(id int64) (domain.Chapter, bool) {
	if i, ok := v.indexLocked(id); ok {
		return v.chapters[i], true
	}
	return domain.Chapter{}, false
}

func (v *View) indexLocked(id int64) (int, bool) {
	for i, ch := range v.chapters {
		if ch.ID == id {
			return i, true
		}
	}
	return -1, false
}

func notInView(id int64) error {
	return domainerrors.NotFoundf("chapter %d is not in the view", id)
}
