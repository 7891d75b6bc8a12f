package service

import (
	"context"
	"testing"

	"inkwell/internal/drafts"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraftService(t *testing.T, flags *featureflags.Manager) *DraftService {
	t.Helper()
	store, err := drafts.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewDraftService(store, flags)
}

func TestDraftService_AutosaveAndOwnership(t *testing.T) {
	svc := newDraftService(t, allFlagsOn)
	ctx := context.Background()

	d, err := svc.Autosave(ctx, "alice", AutosaveInput{Title: "WIP", Content: "draft body", Tags: "a,b"})
	require.NoError(t, err)
	assert.Regexp(t, `^draft_\d+$`, d.ID)
	assert.Equal(t, "alice", d.Author)

	got, err := svc.Get(ctx, "alice", d.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft body", got.Content)

	_, err = svc.Get(ctx, "bob", d.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = svc.Autosave(ctx, "bob", AutosaveInput{DraftID: d.ID, Title: "hijack"})
	assertAppErrorCode(t, err, models.CodeForbidden)

	assertAppErrorCode(t, svc.Delete(ctx, "bob", d.ID), models.CodeNotFound)
	require.NoError(t, svc.Delete(ctx, "alice", d.ID))

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestDraftService_Disabled(t *testing.T) {
	svc := newDraftService(t, featureflags.NewManager("draft_autosave=off"))
	_, err := svc.Autosave(context.Background(), "alice", AutosaveInput{Title: "x"})
	assertAppErrorCode(t, err, models.CodeForbidden)
}
