package indices

import (
	"context"
	"fmt"

	"blogapi/client/es"
	"blogapi/post"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	PostIndexName = "posts"
)

type PostDocument struct {
	post.Post
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func robotSession() *session.Session {
	return &session.Session{Context: context.Background(), Identity: session.Identity{Name: "index-robot"}}
}

func IndexPosts(posts []post.Post, s *session.Session) error {
	docs := make([]PostDocument, 0, len(posts))
	for _, p := range posts {
		docs = append(docs, PostDocument{Post: p})
	}
	if err := savePostDocuments(docs, s); err != nil {
		return err
	}
	return nil
}

func savePostDocuments(docs []PostDocument, s *session.Session) BatchActionError {
	errs := BatchActionError{}
	for _, doc := range docs {
		if err := es.IndexFunc(PostIndexName, doc.ID, doc, s); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index post %d: %v", doc.ID, err)
		} else {
			logrus.Debugf("index post %d successfully", doc.ID)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
