package indices

import (
	"errors"
	"fmt"
	"sync"

	"blogapi/client/es"
	"blogapi/event"
	"blogapi/persistence"
	"blogapi/post"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	PostIndexEventHandlerName = "postIndexer"

	lock    sync.Mutex
	running bool

	SyncBatchSize = 500

	IndicesFullSyncFunc    = IndicesFullSync
	ScheduleNewSyncRunFunc = ScheduleNewSyncRun
	LoadPostsFunc          = LoadPosts
	FindPostFunc           = findPost
	MarkSyncedFunc         = markSynced
)

// ScheduleNewSyncRun starts a full sync in background. It reports false when a run is already in progress.
func ScheduleNewSyncRun(s *session.Session) (bool, error) {
	lock.Lock()
	if running {
		lock.Unlock()
		return false, nil
	}
	running = true
	lock.Unlock()

	logrus.Infof("indices full sync scheduled by %d", s.Identity.ID)
	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		if err := IndicesFullSyncFunc(); err != nil {
			logrus.WithError(err).Error("indices full sync failed")
		}
	}()
	waitRunning.Wait()
	return true, nil
}

// IndicesFullSync rebuilds the post index from the store, page by page.
func IndicesFullSync() (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()

	s := robotSession()
	pending, err := event.QueryUnsyncedEvents(event.SourcePost, persistence.ActiveDataSourceManager.GormDB(s.Context))
	if err != nil {
		return err
	}
	if err := es.DropIndexFunc(PostIndexName, s); err != nil {
		return err
	}

	failedPages := 0
	page := 1
	for {
		posts, err := LoadPostsFunc(page, SyncBatchSize)
		if err != nil {
			return fmt.Errorf("load posts (page = %d, pageSize = %d): %w", page, SyncBatchSize, err)
		}
		if len(posts) == 0 {
			logrus.Infof("indices full sync: there are no more posts to index")
			break
		}
		if err := IndexPosts(posts, s); err != nil {
			failedPages++
			logrus.Warnf("indices full sync: index posts (page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
		}
		page++
	}
	// pending events stay unsynced so the next run retries them
	if failedPages > 0 {
		return fmt.Errorf("indices full sync: %d page(s) failed", failedPages)
	}

	ids := make([]types.ID, 0, len(pending))
	for _, e := range pending {
		ids = append(ids, e.ID)
	}
	return MarkSyncedFunc(ids...)
}

// LoadPosts loads one page of posts in id order; page starts at 1.
func LoadPosts(page, pageSize int) ([]post.Post, error) {
	posts := []post.Post{}
	db := persistence.ActiveDataSourceManager.GormDB(robotSession().Context)
	if err := db.Order("id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// IndexPostEventHandle mirrors post changes into the index. Events of other sources are not handled.
func IndexPostEventHandle(e *event.EventRecord) *event.EventHandleResult {
	if e.SourceType != event.SourcePost {
		return nil
	}
	s := robotSession()

	deleted := e.EventCategory == event.EventCategoryDeleted
	if !deleted {
		p, err := FindPostFunc(e.SourceId)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			deleted = true
		} else if err != nil {
			return &event.EventHandleResult{
				Message:           fmt.Sprintf("load post when index post %d, %v", e.SourceId, err),
				HandlerIdentifier: PostIndexEventHandlerName,
			}
		} else if err := IndexPosts([]post.Post{*p}, s); err != nil {
			return &event.EventHandleResult{
				Message:           fmt.Sprintf("index post %d, %v", e.SourceId, err),
				HandlerIdentifier: PostIndexEventHandlerName,
			}
		}
	}
	if deleted {
		if err := es.DeleteDocumentByIdFunc(PostIndexName, e.SourceId, s); err != nil {
			return &event.EventHandleResult{
				Message:           fmt.Sprintf("delete post index %d, %v", e.SourceId, err),
				HandlerIdentifier: PostIndexEventHandlerName,
			}
		}
	}

	if err := MarkSyncedFunc(e.ID); err != nil {
		logrus.Warnf("mark event %d synced: %v", e.ID, err)
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: PostIndexEventHandlerName}
}

func findPost(id types.ID) (*post.Post, error) {
	return post.FindPost(id, persistence.ActiveDataSourceManager.GormDB(robotSession().Context))
}

func markSynced(ids ...types.ID) error {
	return event.MarkSynced(persistence.ActiveDataSourceManager.GormDB(robotSession().Context), ids...)
}
