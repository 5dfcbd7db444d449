package comment

import (
	"errors"
	"fmt"
	"strings"

	"blogapi/account"
	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/common"
	"blogapi/event"
	"blogapi/persistence"
	"blogapi/post"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

type Comment struct {
	ID       types.ID  `json:"id"`
	Content  string    `json:"content" sql:"type:TEXT"`
	AuthorID types.ID  `json:"authorId" gorm:"index:idx_comment_author"`
	PostID   types.ID  `json:"postId" gorm:"index:idx_comment_post"`
	ReplyTo  *types.ID `json:"replyTo"`
	Hidden   bool      `json:"hidden"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

type CommentCreation struct {
	Content  string    `json:"content" binding:"required,gte=3,lte=5000"`
	PostID   types.ID  `json:"postId"`
	AuthorID types.ID  `json:"authorId"`
	ReplyTo  *types.ID `json:"replyTo"`
}

type CommentUpdating struct {
	Content string `json:"content" binding:"required,gte=3,lte=5000"`
}

type Moderation struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

type RecentQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

var (
	commentIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	ErrBlankContent = errors.New("comment content is blank")

	CreateCommentFunc             = CreateComment
	QueryCommentsFunc             = QueryComments
	DetailCommentFunc             = DetailComment
	UpdateCommentFunc             = UpdateComment
	DeleteCommentFunc             = DeleteComment
	QueryCommentsByPostFunc       = QueryCommentsByPost
	QueryRecentCommentsByPostFunc = QueryRecentCommentsByPost
	QueryCommentsByAuthorFunc     = QueryCommentsByAuthor
	ReplyCommentFunc              = ReplyComment
	ModerateCommentFunc           = ModerateComment
	DeletePostCommentFunc         = DeletePostComment
)

func init() {
	post.PostDeleteHooks = append(post.PostDeleteHooks, deleteCommentsOfPost)
}

func CreateComment(c CommentCreation, s *session.Session) (*Comment, error) {
	content := strings.TrimSpace(c.Content)
	if len(content) < 3 {
		return nil, &bizerror.ErrBadParam{Cause: ErrBlankContent}
	}
	if c.PostID == 0 {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("post id is required")}
	}
	authorID := c.AuthorID
	if authorID == 0 {
		authorID = s.Identity.ID
	}

	now := types.CurrentTimestamp()
	cm := Comment{ID: common.NextId(commentIdWorker), Content: content, AuthorID: authorID, PostID: c.PostID,
		ReplyTo: c.ReplyTo, CreateTime: now, UpdateTime: now}

	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		if _, err := account.FindActiveUser(authorID, tx); err != nil {
			return err
		}
		p, err := post.FindPost(c.PostID, tx)
		if err != nil {
			return err
		}
		if c.ReplyTo != nil {
			parent, err := findVisibleComment(*c.ReplyTo, tx, s)
			if err != nil {
				return err
			}
			if parent.PostID != p.ID {
				return bizerror.ErrNotFound
			}
		}
		if err := tx.Create(&cm).Error; err != nil {
			return err
		}
		var relations []event.UpdatedRelation
		relations = append(relations, event.UpdatedRelation{PropertyName: "post", PropertyDesc: "post",
			TargetType: event.SourcePost, TargetTypeDesc: event.SourcePost, NewTargetId: p.ID.String(), NewTargetDesc: p.Title})
		ev, err = event.CreateEvent(event.SourceComment, cm.ID, abbreviate(cm.Content), event.EventCategoryCreated,
			nil, relations, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(ev)
	return &cm, nil
}

// ReplyComment comments on the post of the parent comment.
func ReplyComment(parentID types.ID, c CommentCreation, s *session.Session) (*Comment, error) {
	parent, err := findVisibleComment(parentID, persistence.ActiveDataSourceManager.GormDB(s.Context), s)
	if err != nil {
		return nil, err
	}
	c.PostID = parent.PostID
	c.ReplyTo = &parent.ID
	return CreateComment(c, s)
}

// QueryComments lists comments newest first.
func QueryComments(s *session.Session) ([]Comment, error) {
	return listComments(visible(persistence.ActiveDataSourceManager.GormDB(s.Context), s), 0)
}

func DetailComment(id types.ID, s *session.Session) (*Comment, error) {
	return findVisibleComment(id, persistence.ActiveDataSourceManager.GormDB(s.Context), s)
}

func QueryCommentsByPost(postID types.ID, s *session.Session) ([]Comment, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if _, err := post.FindPost(postID, db); err != nil {
		return nil, err
	}
	return listComments(visible(db, s).Where("post_id = ?", postID), 0)
}

// QueryRecentCommentsByPost lists at most limit comments of the post. A non-positive limit means the default,
// anything above the maximum is capped.
func QueryRecentCommentsByPost(postID types.ID, limit int, s *session.Session) ([]Comment, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if _, err := post.FindPost(postID, db); err != nil {
		return nil, err
	}
	return listComments(visible(db, s).Where("post_id = ?", postID), limit)
}

// QueryCommentsByAuthor lists the comments of an active author.
func QueryCommentsByAuthor(authorID types.ID, s *session.Session) ([]Comment, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if _, err := account.FindActiveUser(authorID, db); err != nil {
		return nil, err
	}
	return listComments(visible(db, s).Where("author_id = ?", authorID), 0)
}

func UpdateComment(id types.ID, u CommentUpdating, s *session.Session) (*Comment, error) {
	content := strings.TrimSpace(u.Content)
	if len(content) < 3 {
		return nil, &bizerror.ErrBadParam{Cause: ErrBlankContent}
	}
	return changeComment(id, s, func(cm *Comment, changes map[string]interface{}) []event.UpdatedProperty {
		prop, ok := event.PropertyChange("content", cm.Content, content)
		if !ok {
			return nil
		}
		changes["content"] = content
		cm.Content = content
		return []event.UpdatedProperty{prop}
	})
}

// ModerateComment hides or shows a comment.
func ModerateComment(id types.ID, hidden bool, s *session.Session) (*Comment, error) {
	cm, err := changeComment(id, s, func(cm *Comment, changes map[string]interface{}) []event.UpdatedProperty {
		prop, ok := event.PropertyChange("hidden", fmt.Sprint(cm.Hidden), fmt.Sprint(hidden))
		if !ok {
			return nil
		}
		changes["hidden"] = hidden
		cm.Hidden = hidden
		return []event.UpdatedProperty{prop}
	})
	if err != nil {
		return nil, err
	}
	logrus.Infof("comment %d hidden=%t by %d", cm.ID, cm.Hidden, s.Identity.ID)
	return cm, nil
}

func DeleteComment(id types.ID, s *session.Session) error {
	return deleteComment(id, 0, s)
}

// DeletePostComment deletes a comment through its post. A comment of another post is not found.
func DeletePostComment(postID, commentID types.ID, s *session.Session) error {
	return deleteComment(commentID, postID, s)
}

func deleteComment(id, postID types.ID, s *session.Session) error {
	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		cm, err := findVisibleComment(id, tx, s)
		if err != nil {
			return err
		}
		if postID != 0 && cm.PostID != postID {
			return bizerror.ErrNotFound
		}
		// replies survive their parent
		if err := tx.Model(&Comment{}).Where("reply_to = ?", cm.ID).Update("reply_to", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", cm.ID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		ev, err = event.CreateEvent(event.SourceComment, cm.ID, abbreviate(cm.Content), event.EventCategoryDeleted,
			nil, nil, &s.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return err
	}
	event.Dispatch(ev)
	return nil
}

func deleteCommentsOfPost(p post.Post, tx *gorm.DB) error {
	result := tx.Where("post_id = ?", p.ID).Delete(&Comment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		logrus.Infof("%d comments of post %d deleted", result.RowsAffected, p.ID)
	}
	return nil
}

func changeComment(id types.ID, s *session.Session,
	apply func(cm *Comment, changes map[string]interface{}) []event.UpdatedProperty) (*Comment, error) {

	var updated *Comment
	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		cm, err := findVisibleComment(id, tx, s)
		if err != nil {
			return err
		}
		changes := map[string]interface{}{}
		props := apply(cm, changes)
		updated = cm
		if len(changes) == 0 {
			return nil
		}

		now := types.CurrentTimestamp()
		changes["update_time"] = now
		cm.UpdateTime = now
		if err := tx.Model(&Comment{}).Where("id = ?", cm.ID).Updates(changes).Error; err != nil {
			return err
		}
		ev, err = event.CreateEvent(event.SourceComment, cm.ID, abbreviate(cm.Content), event.EventCategoryPropertyUpdated,
			props, nil, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(ev)
	return updated, nil
}

// findVisibleComment treats a hidden comment as missing unless the caller moderates comments.
func findVisibleComment(id types.ID, db *gorm.DB, s *session.Session) (*Comment, error) {
	var cm Comment
	if err := db.Where("id = ?", id).First(&cm).Error; err != nil {
		return nil, err
	}
	if cm.Hidden && !canModerate(s) {
		return nil, bizerror.ErrNotFound
	}
	return &cm, nil
}

func visible(db *gorm.DB, s *session.Session) *gorm.DB {
	if canModerate(s) {
		return db
	}
	return db.Where("hidden = ?", false)
}

func canModerate(s *session.Session) bool {
	return s.Perms.HasAny(authority.ModerateComment)
}

func listComments(db *gorm.DB, limit int) ([]Comment, error) {
	q := db.Order("create_time DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	comments := []Comment{}
	if err := q.Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func abbreviate(content string) string {
	r := []rune(content)
	if len(r) <= 50 {
		return content
	}
	return string(r[:50]) + "..."
}
