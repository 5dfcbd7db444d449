package post

import (
	"errors"
	"fmt"
	"strings"

	"blogapi/account"
	"blogapi/bizerror"
	"blogapi/common"
	"blogapi/event"
	"blogapi/persistence"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

type Post struct {
	ID          types.ID        `json:"id"`
	Title       string          `json:"title" sql:"type:VARCHAR(180) NOT NULL"`
	Content     string          `json:"content" sql:"type:TEXT"`
	AuthorID    types.ID        `json:"authorId" gorm:"index:idx_post_author"`
	Published   bool            `json:"published"`
	PublishTime types.Timestamp `json:"publishTime" sql:"type:DATETIME(6)"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

type PostCreation struct {
	Title    string   `json:"title" binding:"required,gte=3,lte=180"`
	Content  string   `json:"content" binding:"required,gte=10"`
	AuthorID types.ID `json:"authorId"`
}

type PostUpdating struct {
	Title   *string `json:"title" binding:"omitempty,gte=3,lte=180"`
	Content *string `json:"content" binding:"omitempty,gte=10"`
}

type PostQuery struct {
	Published *bool `form:"published"`
}

var (
	postIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	// PostDeleteHooks run inside the deleting transaction, before the post row goes away.
	PostDeleteHooks []func(p Post, tx *gorm.DB) error

	CreatePostFunc         = CreatePost
	QueryPostsFunc         = QueryPosts
	DetailPostFunc         = DetailPost
	QueryPostsByAuthorFunc = QueryPostsByAuthor
	UpdatePostFunc         = UpdatePost
	DeletePostFunc         = DeletePost
	PublishPostFunc        = PublishPost
	UnpublishPostFunc      = UnpublishPost
)

func CreatePost(c PostCreation, s *session.Session) (*Post, error) {
	title := strings.TrimSpace(c.Title)
	if len(title) < 3 {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("post title is too short")}
	}
	authorID := c.AuthorID
	if authorID == 0 {
		authorID = s.Identity.ID
	}

	now := types.CurrentTimestamp()
	p := Post{ID: common.NextId(postIdWorker), Title: title, Content: c.Content, AuthorID: authorID,
		CreateTime: now, UpdateTime: now}

	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		if _, err := account.FindActiveUser(authorID, tx); err != nil {
			return err
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		var err error
		ev, err = event.CreateEvent(event.SourcePost, p.ID, p.Title, event.EventCategoryCreated, nil, nil, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(ev)
	return &p, nil
}

// QueryPosts lists posts newest first.
func QueryPosts(q PostQuery, s *session.Session) ([]Post, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if q.Published != nil {
		db = db.Where("published = ?", *q.Published)
	}
	posts := []Post{}
	if err := db.Order("create_time DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func DetailPost(id types.ID, s *session.Session) (*Post, error) {
	return FindPost(id, persistence.ActiveDataSourceManager.GormDB(s.Context))
}

func FindPost(id types.ID, db *gorm.DB) (*Post, error) {
	var p Post
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// QueryPostsByAuthor lists the posts of an active author, newest first.
func QueryPostsByAuthor(authorID types.ID, s *session.Session) ([]Post, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if _, err := account.FindActiveUser(authorID, db); err != nil {
		return nil, err
	}
	posts := []Post{}
	if err := db.Where("author_id = ?", authorID).Order("create_time DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func UpdatePost(id types.ID, u PostUpdating, s *session.Session) (*Post, error) {
	return changePost(id, s, func(p *Post, changes map[string]interface{}) ([]event.UpdatedProperty, error) {
		var props []event.UpdatedProperty
		if u.Title != nil {
			title := strings.TrimSpace(*u.Title)
			if len(title) < 3 {
				return nil, &bizerror.ErrBadParam{Cause: errors.New("post title is too short")}
			}
			if prop, ok := event.PropertyChange("title", p.Title, title); ok {
				props = append(props, prop)
				changes["title"] = title
				p.Title = title
			}
		}
		if u.Content != nil {
			if prop, ok := event.PropertyChange("content", p.Content, *u.Content); ok {
				props = append(props, prop)
				changes["content"] = *u.Content
				p.Content = *u.Content
			}
		}
		return props, nil
	})
}

func PublishPost(id types.ID, s *session.Session) (*Post, error) {
	return changePublished(id, true, s)
}

func UnpublishPost(id types.ID, s *session.Session) (*Post, error) {
	return changePublished(id, false, s)
}

func changePublished(id types.ID, published bool, s *session.Session) (*Post, error) {
	p, err := changePost(id, s, func(p *Post, changes map[string]interface{}) ([]event.UpdatedProperty, error) {
		prop, ok := event.PropertyChange("published", fmt.Sprint(p.Published), fmt.Sprint(published))
		if !ok {
			return nil, nil
		}
		publishTime := types.Timestamp{}
		if published {
			publishTime = types.CurrentTimestamp()
		}
		changes["published"] = published
		changes["publish_time"] = publishTime
		p.Published = published
		p.PublishTime = publishTime
		return []event.UpdatedProperty{prop}, nil
	})
	if err != nil {
		return nil, err
	}
	logrus.Infof("post %d published=%t by %d", p.ID, p.Published, s.Identity.ID)
	return p, nil
}

func changePost(id types.ID, s *session.Session,
	apply func(p *Post, changes map[string]interface{}) ([]event.UpdatedProperty, error)) (*Post, error) {

	var updated *Post
	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		p, err := FindPost(id, tx)
		if err != nil {
			return err
		}
		changes := map[string]interface{}{}
		props, err := apply(p, changes)
		if err != nil {
			return err
		}
		updated = p
		if len(changes) == 0 {
			return nil
		}

		now := types.CurrentTimestamp()
		changes["update_time"] = now
		p.UpdateTime = now
		if err := tx.Model(&Post{}).Where("id = ?", p.ID).Updates(changes).Error; err != nil {
			return err
		}
		ev, err = event.CreateEvent(event.SourcePost, p.ID, p.Title, event.EventCategoryPropertyUpdated, props, nil, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(ev)
	return updated, nil
}

// DeletePost removes the post for good, together with whatever the delete hooks cascade.
func DeletePost(id types.ID, s *session.Session) error {
	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		p, err := FindPost(id, tx)
		if err != nil {
			return err
		}
		for _, hook := range PostDeleteHooks {
			if err := hook(*p, tx); err != nil {
				return err
			}
		}
		if err := tx.Where("id = ?", p.ID).Delete(&Post{}).Error; err != nil {
			return err
		}
		ev, err = event.CreateEvent(event.SourcePost, p.ID, p.Title, event.EventCategoryDeleted, nil, nil, &s.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return err
	}
	event.Dispatch(ev)
	logrus.Infof("post %d deleted by %d", id, s.Identity.ID)
	return nil
}
