package feed

import (
	"context"

	"go.uber.org/zap"

	"socialfeed/internal/models"
)

// Relations answers the viewer-relative questions a post view needs.
type Relations interface {
	HasLike(ctx context.Context, postID, userID int64) (bool, error)
	HasBookmark(ctx context.Context, postID, userID int64) (bool, error)
}

// Assembler turns store rows into PostViews for one viewer. It never fails: a
// lookup error is logged and the flag it guards stays false.
type Assembler struct {
	rel Relations
	log *zap.Logger
}

func NewAssembler(rel Relations, log *zap.Logger) *Assembler {
	return &Assembler{rel: rel, log: log}
}

func (a *Assembler) Decorate(ctx context.Context, row models.PostRow, viewer models.Viewer) models.PostView {
	v := models.PostView{
		ID:           row.ID,
		UserID:       row.UserID,
		Username:     row.Username,
		DisplayName:  row.DisplayName,
		Avatar:       row.Avatar,
		Content:      row.Content,
		CreatedAt:    row.CreatedAt,
		ParentID:     row.ParentID,
		IsReply:      row.ParentID != nil,
		Likes:        max(row.Likes, 0),
		Replies:      max(row.Replies, 0),
		BookmarkedAt: row.BookmarkedAt,
	}
	if v.IsReply {
		v.ParentContent = row.ParentContent
		v.ParentUsername = row.ParentUsername
	}
	if !viewer.Authenticated() {
		v.BookmarkedAt = nil
		return v
	}
	v.LikedByUser = a.check(ctx, "like", row.ID, viewer, a.rel.HasLike)
	if row.BookmarkedAt != nil {
		v.BookmarkedByUser = true
	} else {
		v.BookmarkedByUser = a.check(ctx, "bookmark", row.ID, viewer, a.rel.HasBookmark)
	}
	return v
}

func (a *Assembler) DecorateAll(ctx context.Context, rows []models.PostRow, viewer models.Viewer) []models.PostView {
	views := make([]models.PostView, 0, len(rows))
	for _, row := range rows {
		views = append(views, a.Decorate(ctx, row, viewer))
	}
	return views
}

func (a *Assembler) check(ctx context.Context, what string, postID int64, viewer models.Viewer,
	lookup func(context.Context, int64, int64) (bool, error)) bool {
	ok, err := lookup(ctx, postID, viewer.UserID())
	if err != nil {
		lookupFailures.WithLabelValues(what).Inc()
		a.log.Warn("view lookup failed",
			zap.String("relation", what),
			zap.Int64("post_id", postID),
			zap.Int64("viewer_id", viewer.UserID()),
			zap.Error(err))
		return false
	}
	return ok
}
