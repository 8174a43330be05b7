package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	domainerrors "github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
)

func (s *Server) registerChapterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listChapters",
		Method:      http.MethodGet,
		Path:        "/api/chapters",
		Summary:     "List chapters",
		Description: "Returns the chapters of the active video in insertion order",
		Tags:        []string{"Chapters"},
	}, s.handleListChapters)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchChapters",
		Method:      http.MethodGet,
		Path:        "/api/chapters/search",
		Summary:     "Search chapters",
		Description: "Returns chapters whose title matches the query, best match first",
		Tags:        []string{"Chapters"},
	}, s.handleSearchChapters)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createChapter",
		Method:        http.MethodPost,
		Path:          "/api/chapters",
		Summary:       "Create chapter",
		Description:   "Appends a chapter. Missing fields default to \"New Chapter\" at 0 seconds",
		Tags:          []string{"Chapters"},
		DefaultStatus: http.StatusOK,
	}, s.handleCreateChapter)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateChapter",
		Method:      http.MethodPut,
		Path:        "/api/chapters/{id}",
		Summary:     "Update chapter",
		Description: "Changes the title and/or timestamp of a chapter",
		Tags:        []string{"Chapters"},
	}, s.handleUpdateChapter)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteChapter",
		Method:      http.MethodDelete,
		Path:        "/api/chapters/{id}",
		Summary:     "Delete chapter",
		Description: "Removes a chapter. Deleting an unknown chapter also succeeds",
		Tags:        []string{"Chapters"},
	}, s.handleDeleteChapter)
}

// === DTOs ===

// ChapterResponse is the wire shape of a chapter.
type ChapterResponse struct {
	ID        int64   `json:"id" doc:"Chapter ID, assigned by the server"`
	Title     string  `json:"title" doc:"Chapter title"`
	Timestamp float64 `json:"timestamp" doc:"Start offset in seconds"`
}

// ChapterOutput wraps a single chapter for Huma.
type ChapterOutput struct {
	Body ChapterResponse
}

// ChapterListOutput wraps a chapter list for Huma.
type ChapterListOutput struct {
	Body []ChapterResponse
}

// ChapterRequest is the body of create and update calls. Both fields are optional.
type ChapterRequest struct {
	_         struct{} `json:"-" additionalProperties:"true"`
	Title     *string  `json:"title,omitempty" doc:"Chapter title"`
	Timestamp *float64 `json:"timestamp,omitempty" doc:"Start offset in seconds"`
}

// CreateChapterInput wraps the create chapter request for Huma.
type CreateChapterInput struct {
	Body *ChapterRequest `required:"false"`
}

// UpdateChapterInput wraps the update chapter request for Huma.
// An empty body changes nothing and returns the chapter as stored.
type UpdateChapterInput struct {
	ID   string          `path:"id" doc:"Chapter ID"`
	Body *ChapterRequest `required:"false"`
}

// DeleteChapterInput contains parameters for deleting a chapter.
type DeleteChapterInput struct {
	ID string `path:"id" doc:"Chapter ID"`
}

// DeleteChapterOutput confirms a delete.
type DeleteChapterOutput struct {
	Body struct {
		Success bool `json:"success" doc:"Always true"`
	}
}

// SearchChaptersInput contains search parameters.
type SearchChaptersInput struct {
	Query string `query:"q" doc:"Search text"`
	Limit int    `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Maximum results"`
}

// === Handlers ===

func (s *Server) handleListChapters(ctx context.Context, _ *struct{}) (*ChapterListOutput, error) {
	chapters, err := s.services.Chapter.List(ctx)
	if err != nil {
		return nil, err
	}
	return &ChapterListOutput{Body: toChapterResponses(chapters)}, nil
}

func (s *Server) handleSearchChapters(ctx context.Context, input *SearchChaptersInput) (*ChapterListOutput, error) {
	chapters, err := s.services.Chapter.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &ChapterListOutput{Body: toChapterResponses(chapters)}, nil
}

func (s *Server) handleCreateChapter(ctx context.Context, input *CreateChapterInput) (*ChapterOutput, error) {
	var in service.CreateChapterInput
	if input.Body != nil {
		in.Title = input.Body.Title
		in.Timestamp = input.Body.Timestamp
	}

	ch, err := s.services.Chapter.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return &ChapterOutput{Body: toChapterResponse(*ch)}, nil
}

func (s *Server) handleUpdateChapter(ctx context.Context, input *UpdateChapterInput) (*ChapterOutput, error) {
	// An id that is not a number cannot name a chapter.
	id, ok := parseChapterID(input.ID)
	if !ok {
		return nil, domainerrors.NotFoundf("chapter %s not found", input.ID)
	}

	var patch domain.ChapterPatch
	if input.Body != nil {
		patch.Title = input.Body.Title
		patch.Timestamp = input.Body.Timestamp
	}

	ch, err := s.services.Chapter.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return &ChapterOutput{Body: toChapterResponse(*ch)}, nil
}

func (s *Server) handleDeleteChapter(ctx context.Context, input *DeleteChapterInput) (*DeleteChapterOutput, error) {
	// Deleting is idempotent, so an id that matches nothing still succeeds.
	if id, ok := parseChapterID(input.ID); ok {
		if err := s.services.Chapter.Delete(ctx, id); err != nil {
			return nil, err
		}
	}
	out := &DeleteChapterOutput{}
	out.Body.Success = true
	return out, nil
}

func parseChapterID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func toChapterResponse(ch domain.Chapter) ChapterResponse {
	return ChapterResponse{ID: ch.ID, Title: ch.Title, Timestamp: ch.Timestamp}
}

func toChapterResponses(chapters []domain.Chapter) []ChapterResponse {
	resp := make([]ChapterResponse, len(chapters))
	for i, ch := range chapters {
		resp[i] = toChapterResponse(ch)
	}
	return resp
}
