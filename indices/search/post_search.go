package search

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/client/es"
	"blogapi/indices"
	"blogapi/post"
	"blogapi/session"

	"github.com/gin-gonic/gin"
)

var (
	PathSearchPosts = "/v1/search/posts"

	MaxHits = 100

	SearchPostsFunc = SearchPosts
)

type PostSearch struct {
	Query string `form:"q" binding:"required,lte=200"`
}

func RegisterSearchRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathSearchPosts, middleWares...)
	g.GET("", session.RequirePermissions(authority.ListPosts), handleSearchPosts)
}

// SearchPosts matches q against title and content, best hits first. Title matches weigh double.
func SearchPosts(q PostSearch, s *session.Session) ([]post.Post, error) {
	query := es.H{
		"size": MaxHits,
		"query": es.H{"multi_match": es.H{
			"query":  strings.TrimSpace(q.Query),
			"fields": []string{"title^2", "content"},
		}},
	}
	r, err := es.SearchFunc(indices.PostIndexName, query, s)
	if err != nil {
		return nil, err
	}

	posts := make([]post.Post, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := indices.PostDocument{}
		if err := json.NewDecoder(strings.NewReader(string(hit.Source))).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode post document %s: %w", hit.Id, err)
		}
		posts = append(posts, doc.Post)
	}
	return posts, nil
}

func handleSearchPosts(c *gin.Context) {
	q := PostSearch{}
	if err := c.ShouldBindQuery(&q); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	posts, err := SearchPostsFunc(q, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"data": posts, "total": len(posts)})
}
