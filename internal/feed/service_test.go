package feed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"socialfeed/internal/apperr"
	"socialfeed/internal/db"
	"socialfeed/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	s := NewService(database, zap.NewNop())
	s.now = steppingClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return s
}

// steppingClock advances one minute per call so creation order is also
// timestamp order.
func steppingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func at(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func signup(t *testing.T, s *Service, username string) models.Viewer {
	t.Helper()
	u, err := s.Signup(context.Background(), SignupInput{Username: username, DisplayName: username, Password: "secret"})
	require.NoError(t, err)
	return models.Viewer(u.ID)
}

func post(t *testing.T, s *Service, viewer models.Viewer, content string, parent *int64) int64 {
	t.Helper()
	v, err := s.CreatePost(context.Background(), viewer, CreatePostInput{Content: content, ParentPostID: parent})
	require.NoError(t, err)
	return v.ID
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	require.Error(t, err)
	return apperr.KindOf(err)
}

func ids(views []models.PostView) []int64 {
	out := make([]int64, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestThreadWithReply(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")

	p1 := post(t, s, alice, "hello", nil)
	p2 := post(t, s, bob, "hi back", &p1)
	require.Equal(t, int64(1), p1)
	require.Equal(t, int64(2), p2)

	th, err := s.Thread(ctx, p1, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, 1, th.MainPost.Replies)
	assert.False(t, th.MainPost.IsReply)
	assert.Nil(t, th.MainPost.ParentContent)
	assert.Nil(t, th.MainPost.ParentUsername)
	require.Len(t, th.Replies, 1)
	assert.Equal(t, p2, th.Replies[0].ID)
	assert.True(t, th.Replies[0].IsReply)
	require.NotNil(t, th.Replies[0].ParentUsername)
	assert.Equal(t, "alice", *th.Replies[0].ParentUsername)
	assert.Equal(t, "hello", *th.Replies[0].ParentContent)

	_, err = s.Thread(ctx, 99, alice)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
}

func TestThreadRepliesAreDirectAndOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")

	root := post(t, s, alice, "root", nil)
	r1 := post(t, s, bob, "first", &root)
	r2 := post(t, s, alice, "second", &root)
	deep := post(t, s, bob, "nested", &r1)

	th, err := s.Thread(ctx, root, bob)
	require.NoError(t, err)
	assert.Equal(t, []int64{r1, r2}, ids(th.Replies))
	assert.Equal(t, 1, th.Replies[0].Replies)
	for i := 1; i < len(th.Replies); i++ {
		assert.False(t, th.Replies[i].CreatedAt.Before(th.Replies[i-1].CreatedAt))
	}

	sub, err := s.Thread(ctx, r1, bob)
	require.NoError(t, err)
	assert.Equal(t, []int64{deep}, ids(sub.Replies))
	assert.Equal(t, "root", *sub.MainPost.ParentContent)

	replies, err := s.Replies(ctx, 1234, bob)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestToggleLikeTwiceRestoresState(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")
	p1 := post(t, s, alice, "hello", nil)

	first, err := s.ToggleLike(ctx, bob, p1)
	require.NoError(t, err)
	assert.True(t, first.Liked)
	assert.Equal(t, 1, first.Likes)

	th, err := s.Thread(ctx, p1, bob)
	require.NoError(t, err)
	assert.True(t, th.MainPost.LikedByUser)
	assert.Equal(t, 1, th.MainPost.Likes)

	second, err := s.ToggleLike(ctx, bob, p1)
	require.NoError(t, err)
	assert.Equal(t, !first.Liked, second.Liked)
	assert.Equal(t, 0, second.Likes)

	th, err = s.Thread(ctx, p1, bob)
	require.NoError(t, err)
	assert.False(t, th.MainPost.LikedByUser)
	assert.Equal(t, 0, th.MainPost.Likes)

	_, err = s.ToggleLike(ctx, bob, 404)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
	_, err = s.ToggleLike(ctx, models.Anonymous, p1)
	assert.Equal(t, apperr.Unauthenticated, kindOf(t, err))
}

func TestUnlikedPostHasNoLikesForAnyViewer(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")
	post(t, s, alice, "quiet", nil)

	for _, viewer := range []models.Viewer{models.Anonymous, alice, bob} {
		views, err := s.Feed(ctx, viewer)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, 0, views[0].Likes)
		assert.False(t, views[0].LikedByUser)
		assert.False(t, views[0].BookmarkedByUser)
	}
}

func TestDeletePostOwnership(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")
	p1 := post(t, s, alice, "hello", nil)
	reply := post(t, s, bob, "hi back", &p1)
	keep := post(t, s, bob, "unrelated", nil)
	_, err := s.ToggleBookmark(ctx, bob, p1)
	require.NoError(t, err)

	err = s.DeletePost(ctx, bob, p1)
	assert.Equal(t, apperr.Forbidden, kindOf(t, err))

	require.NoError(t, s.DeletePost(ctx, alice, p1))

	views, err := s.Feed(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []int64{keep}, ids(views))
	assert.NotContains(t, ids(views), reply)

	saved, err := s.Bookmarks(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, saved)

	err = s.DeletePost(ctx, alice, p1)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
	err = s.DeletePost(ctx, models.Anonymous, keep)
	assert.Equal(t, apperr.Unauthenticated, kindOf(t, err))
}

func TestCreatePostValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")

	_, err := s.CreatePost(ctx, alice, CreatePostInput{Content: ""})
	assert.Equal(t, apperr.Validation, kindOf(t, err))
	_, err = s.CreatePost(ctx, alice, CreatePostInput{Content: "   \n"})
	assert.Equal(t, apperr.Validation, kindOf(t, err))
	_, err = s.CreatePost(ctx, alice, CreatePostInput{Content: "orphan", ParentPostID: ptr(int64(77))})
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
	_, err = s.CreatePost(ctx, models.Anonymous, CreatePostInput{Content: "hi"})
	assert.Equal(t, apperr.Unauthenticated, kindOf(t, err))

	v, err := s.CreatePost(ctx, alice, CreatePostInput{Content: "  padded  "})
	require.NoError(t, err)
	assert.Equal(t, "padded", v.Content)
	assert.Equal(t, "alice", v.Username)
	assert.Equal(t, models.DefaultAvatar, v.Avatar)
}

func TestFeedOrderingAndFirstLevel(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")

	p1 := post(t, s, alice, "one", nil)
	p2 := post(t, s, bob, "reply to one", &p1)
	p3 := post(t, s, alice, "reply to reply", &p2)
	p4 := post(t, s, bob, "two", nil)

	full, err := s.Feed(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []int64{p4, p3, p2, p1}, ids(full))
	for i := 1; i < len(full); i++ {
		assert.False(t, full[i].CreatedAt.After(full[i-1].CreatedAt))
	}
	assert.Equal(t, "bob", *full[1].ParentUsername)

	first, err := s.FirstLevelFeed(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []int64{p4, p2, p1}, ids(first))
}

func TestFeedOrderIsStableForEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	s.now = at(time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC))

	a := post(t, s, alice, "a", nil)
	b := post(t, s, alice, "b", nil)
	c := post(t, s, alice, "c", &a)

	full, err := s.Feed(ctx, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{c, b, a}, ids(full))
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")

	s.now = at(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC))
	old := post(t, s, alice, "old news", nil)
	s.now = at(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newYear := post(t, s, alice, "Happy new year", nil)
	s.now = at(time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC))
	bobs := post(t, s, bob, "happy too", &newYear)
	s.now = at(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	later := post(t, s, alice, "February 100% done_ok", nil)

	res, err := s.Search(ctx, SearchInput{Username: "alice", FromDate: "2024-01-01"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{later, newYear}, ids(res))
	assert.NotContains(t, ids(res), old)
	assert.NotContains(t, ids(res), bobs)

	res, err = s.Search(ctx, SearchInput{Text: "HAPPY"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{bobs, newYear}, ids(res))

	res, err = s.Search(ctx, SearchInput{Username: "al"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{later, newYear, old}, ids(res))

	res, err = s.Search(ctx, SearchInput{Username: "ALICE"}, models.Anonymous)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = s.Search(ctx, SearchInput{ToDate: "2024-01-02"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{bobs, newYear, old}, ids(res))

	res, err = s.Search(ctx, SearchInput{FromDate: "2024-01-01", ToDate: "2024-01-01 00:00:00"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{newYear}, ids(res))

	res, err = s.Search(ctx, SearchInput{Text: "100%"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{later}, ids(res))

	res, err = s.Search(ctx, SearchInput{Text: "_"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{later}, ids(res))

	res, err = s.Search(ctx, SearchInput{Limit: 2, Offset: 1}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{bobs, newYear}, ids(res))

	res, err = s.Search(ctx, SearchInput{}, models.Anonymous)
	require.NoError(t, err)
	assert.Len(t, res, 4)
	assert.True(t, res[1].IsReply)

	_, err = s.Search(ctx, SearchInput{FromDate: "99/99/9999"}, models.Anonymous)
	assert.Equal(t, apperr.Validation, kindOf(t, err))

	// epoch seconds are an exact instant, not a whole day
	res, err = s.Search(ctx, SearchInput{ToDate: "1704153600"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{newYear, old}, ids(res))

	res, err = s.Search(ctx, SearchInput{ToDate: "2024/01/01"}, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, []int64{newYear, old}, ids(res))

	s.now = at(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	team := post(t, s, bob, "Équipe réunie", nil)
	for _, q := range []string{"équipe", "ÉQUIPE", "RÉUNIE"} {
		res, err = s.Search(ctx, SearchInput{Text: q}, models.Anonymous)
		require.NoError(t, err)
		assert.Equal(t, []int64{team}, ids(res), q)
	}
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")
	p1 := post(t, s, alice, "hello", nil)
	post(t, s, bob, "elsewhere", nil)
	reply := post(t, s, alice, "self reply", &p1)

	prof, err := s.Profile(ctx, alice.UserID(), models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, "alice", prof.User.Username)
	assert.Equal(t, models.DefaultBio, prof.User.Bio)
	assert.Equal(t, []int64{reply, p1}, ids(prof.Posts))
	assert.True(t, prof.Posts[0].IsReply)
	assert.False(t, prof.IsFollowing)
	assert.False(t, prof.IsOwnProfile)

	following, err := s.ToggleFollow(ctx, bob, alice.UserID())
	require.NoError(t, err)
	assert.True(t, following)

	prof, err = s.Profile(ctx, alice.UserID(), bob)
	require.NoError(t, err)
	assert.True(t, prof.IsFollowing)
	assert.False(t, prof.IsOwnProfile)

	prof, err = s.Profile(ctx, alice.UserID(), alice)
	require.NoError(t, err)
	assert.False(t, prof.IsFollowing)
	assert.True(t, prof.IsOwnProfile)

	following, err = s.ToggleFollow(ctx, bob, alice.UserID())
	require.NoError(t, err)
	assert.False(t, following)

	_, err = s.Profile(ctx, 999, bob)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
}

func TestToggleFollowErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")

	_, err := s.ToggleFollow(ctx, alice, alice.UserID())
	assert.Equal(t, apperr.InvalidOperation, kindOf(t, err))
	_, err = s.ToggleFollow(ctx, alice, 42)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
	_, err = s.ToggleFollow(ctx, models.Anonymous, alice.UserID())
	assert.Equal(t, apperr.Unauthenticated, kindOf(t, err))
}

func TestBookmarks(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")
	bob := signup(t, s, "bob")
	p1 := post(t, s, alice, "one", nil)
	p2 := post(t, s, alice, "two", nil)

	_, err := s.Bookmarks(ctx, models.Anonymous)
	assert.Equal(t, apperr.Unauthenticated, kindOf(t, err))

	for _, id := range []int64{p2, p1} {
		saved, err := s.ToggleBookmark(ctx, bob, id)
		require.NoError(t, err)
		assert.True(t, saved)
	}
	_, err = s.ToggleLike(ctx, bob, p2)
	require.NoError(t, err)

	list, err := s.Bookmarks(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []int64{p1, p2}, ids(list))
	for _, v := range list {
		assert.True(t, v.BookmarkedByUser)
		assert.NotNil(t, v.BookmarkedAt)
	}
	assert.False(t, list[0].LikedByUser)
	assert.True(t, list[1].LikedByUser)

	feed, err := s.Feed(ctx, bob)
	require.NoError(t, err)
	for _, v := range feed {
		assert.True(t, v.BookmarkedByUser)
		assert.Nil(t, v.BookmarkedAt)
	}

	saved, err := s.ToggleBookmark(ctx, bob, p1)
	require.NoError(t, err)
	assert.False(t, saved)
	list, err = s.Bookmarks(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []int64{p2}, ids(list))

	_, err = s.ToggleBookmark(ctx, bob, 500)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	alice := signup(t, s, "alice")

	_, err := s.Signup(ctx, SignupInput{Username: "alice", DisplayName: "Other", Password: "x"})
	assert.Equal(t, apperr.Conflict, kindOf(t, err))
	_, err = s.Signup(ctx, SignupInput{Username: "carol", Password: "x"})
	assert.Equal(t, apperr.Validation, kindOf(t, err))
	assert.Equal(t, "display_name is required", apperr.Message(err))

	u, err := s.Authenticate(ctx, LoginInput{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, alice.UserID(), u.ID)
	_, err = s.Authenticate(ctx, LoginInput{Username: "alice", Password: "wrong"})
	assert.Equal(t, apperr.Unauthenticated, kindOf(t, err))
	_, err = s.Authenticate(ctx, LoginInput{Username: "nobody", Password: "secret"})
	assert.Equal(t, apperr.Unauthenticated, kindOf(t, err))

	_, err = s.UpdateProfile(ctx, alice, UpdateProfileInput{})
	assert.Equal(t, apperr.Validation, kindOf(t, err))
	assert.Equal(t, "no data to update", apperr.Message(err))

	u, err = s.UpdateProfile(ctx, alice, UpdateProfileInput{Bio: "Gopher"})
	require.NoError(t, err)
	assert.Equal(t, "Gopher", u.Bio)
	assert.Equal(t, "alice", u.DisplayName)

	u, err = s.UpdateProfile(ctx, alice, UpdateProfileInput{DisplayName: "Alice A."})
	require.NoError(t, err)
	assert.Equal(t, "Gopher", u.Bio)
	assert.Equal(t, "Alice A.", u.DisplayName)

	_, err = s.UpdateProfile(ctx, models.Anonymous, UpdateProfileInput{Bio: "x"})
	assert.Equal(t, apperr.Unauthenticated, kindOf(t, err))
}
