package feed

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"socialfeed/internal/models"
)

type mockRelations struct {
	mock.Mock
}

func (m *mockRelations) HasLike(ctx context.Context, postID, userID int64) (bool, error) {
	args := m.Called(postID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRelations) HasBookmark(ctx context.Context, postID, userID int64) (bool, error) {
	args := m.Called(postID, userID)
	return args.Bool(0), args.Error(1)
}

func ptr[T any](v T) *T { return &v }

var created = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func topLevelRow(id int64) models.PostRow {
	return models.PostRow{
		ID: id, UserID: 1, Username: "alice", DisplayName: "Alice", Avatar: "👤",
		Content: "hello", CreatedAt: created,
	}
}

func TestDecorateAnonymousSkipsLookups(t *testing.T) {
	rel := new(mockRelations)
	a := NewAssembler(rel, zap.NewNop())

	row := topLevelRow(1)
	row.ParentContent = ptr("stray")
	v := a.Decorate(context.Background(), row, models.Anonymous)

	assert.False(t, v.IsReply)
	assert.Nil(t, v.ParentID)
	assert.Nil(t, v.ParentContent)
	assert.Nil(t, v.ParentUsername)
	assert.Equal(t, 0, v.Likes)
	assert.False(t, v.LikedByUser)
	assert.False(t, v.BookmarkedByUser)
	rel.AssertNotCalled(t, "HasLike", mock.Anything, mock.Anything)
	rel.AssertNotCalled(t, "HasBookmark", mock.Anything, mock.Anything)
}

func TestDecorateReplyForViewer(t *testing.T) {
	rel := new(mockRelations)
	rel.On("HasLike", int64(2), int64(7)).Return(true, nil)
	rel.On("HasBookmark", int64(2), int64(7)).Return(false, nil)
	a := NewAssembler(rel, zap.NewNop())

	row := models.PostRow{
		ID: 2, UserID: 3, Username: "bob", DisplayName: "Bob", Avatar: "👤",
		Content: "hi back", ParentID: ptr(int64(1)), ParentContent: ptr("hello"), ParentUsername: ptr("alice"),
		CreatedAt: created, Likes: 4, Replies: 1,
	}
	got := a.Decorate(context.Background(), row, models.Viewer(7))

	want := models.PostView{
		ID: 2, UserID: 3, Username: "bob", DisplayName: "Bob", Avatar: "👤",
		Content: "hi back", CreatedAt: created,
		ParentID: ptr(int64(1)), ParentContent: ptr("hello"), ParentUsername: ptr("alice"),
		IsReply: true, Likes: 4, Replies: 1, LikedByUser: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("view mismatch (-want +got):\n%s", diff)
	}
	rel.AssertExpectations(t)
}

func TestDecorateLookupFailureDegrades(t *testing.T) {
	rel := new(mockRelations)
	rel.On("HasLike", int64(1), int64(7)).Return(false, errors.New("database is locked"))
	rel.On("HasBookmark", int64(1), int64(7)).Return(true, nil)
	a := NewAssembler(rel, zap.NewNop())

	v := a.Decorate(context.Background(), topLevelRow(1), models.Viewer(7))
	assert.False(t, v.LikedByUser)
	assert.True(t, v.BookmarkedByUser)
}

func TestDecorateBookmarkedRowSkipsBookmarkLookup(t *testing.T) {
	rel := new(mockRelations)
	rel.On("HasLike", int64(1), int64(7)).Return(false, nil)
	a := NewAssembler(rel, zap.NewNop())

	row := topLevelRow(1)
	row.BookmarkedAt = ptr(created.Add(time.Hour))
	v := a.Decorate(context.Background(), row, models.Viewer(7))
	assert.True(t, v.BookmarkedByUser)
	assert.Equal(t, row.BookmarkedAt, v.BookmarkedAt)
	rel.AssertNotCalled(t, "HasBookmark", mock.Anything, mock.Anything)
}

func TestDecorateAllKeepsPostsIndependent(t *testing.T) {
	rel := new(mockRelations)
	rel.On("HasLike", int64(1), int64(7)).Return(true, nil)
	rel.On("HasLike", int64(2), int64(7)).Return(false, nil)
	rel.On("HasLike", int64(3), int64(7)).Return(true, nil)
	rel.On("HasBookmark", mock.Anything, int64(7)).Return(false, nil)
	a := NewAssembler(rel, zap.NewNop())

	reply := topLevelRow(3)
	reply.ParentID = ptr(int64(1))
	reply.ParentUsername = ptr("alice")
	reply.ParentContent = ptr("hello")

	views := a.DecorateAll(context.Background(), []models.PostRow{topLevelRow(1), topLevelRow(2), reply}, models.Viewer(7))
	assert.Len(t, views, 3)
	assert.True(t, views[0].LikedByUser)
	assert.False(t, views[1].LikedByUser)
	assert.True(t, views[2].LikedByUser)
	assert.False(t, views[0].IsReply)
	assert.False(t, views[1].IsReply)
	assert.True(t, views[2].IsReply)
	assert.Nil(t, views[1].ParentUsername)
	assert.Equal(t, "alice", *views[2].ParentUsername)
}

func TestDecorateAllEmpty(t *testing.T) {
	a := NewAssembler(new(mockRelations), zap.NewNop())
	views := a.DecorateAll(context.Background(), nil, models.Viewer(7))
	assert.NotNil(t, views)
	assert.Empty(t, views)
}
