package service

import (
	"context"

	"inkwell/internal/drafts"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
)

// DraftStore is the persistence used by DraftService.
type DraftStore interface {
	Save(ctx context.Context, d *drafts.Draft) error
	Get(ctx context.Context, id string) (*drafts.Draft, error)
	ListByAuthor(ctx context.Context, author string) ([]drafts.Draft, error)
	Delete(ctx context.Context, id string) error
	DeleteByAuthor(ctx context.Context, author string) (int, error)
}

// DraftService autosaves drafts on behalf of signed-in authors.
type DraftService struct {
	store DraftStore
	flags *featureflags.Manager
}

type AutosaveInput struct {
	DraftID string
	Title   string
	Content string
	Tags    string
}

func NewDraftService(store DraftStore, flags *featureflags.Manager) *DraftService {
	return &DraftService{store: store, flags: flags}
}

// Autosave stores the draft and returns it with its id.
func (s *DraftService) Autosave(ctx context.Context, author string, in AutosaveInput) (*drafts.Draft, error) {
	if !s.flags.Enabled(featureflags.DraftAutosave, author) {
		return nil, models.NewForbiddenError("Draft autosave is disabled")
	}
	if in.DraftID != "" {
		existing, err := s.store.Get(ctx, in.DraftID)
		if err != nil && !models.HasCode(err, models.CodeNotFound) {
			return nil, err
		}
		if existing != nil && existing.Author != author {
			return nil, models.NewForbiddenError("You can only save your own drafts")
		}
	}
	d := &drafts.Draft{
		ID:      in.DraftID,
		Title:   in.Title,
		Author:  author,
		Content: in.Content,
		Tags:    in.Tags,
	}
	if err := s.store.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DraftService) Get(ctx context.Context, author, id string) (*drafts.Draft, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Author != author {
		return nil, models.NewNotFoundError("Draft", id)
	}
	return d, nil
}

func (s *DraftService) List(ctx context.Context, author string) ([]drafts.Draft, error) {
	list, err := s.store.ListByAuthor(ctx, author)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []drafts.Draft{}
	}
	return list, nil
}

func (s *DraftService) Delete(ctx context.Context, author, id string) error {
	if _, err := s.Get(ctx, author, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
