package post

import (
	"net/http"

	"blogapi/account"
	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathPosts = "/v1/posts"
)

func RegisterPostsRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathPosts, middleWares...)
	g.POST("", session.RequirePermissions(authority.AddPost), handleCreatePost)
	g.GET("", session.RequirePermissions(authority.ListPosts), handleQueryPosts)
	g.GET("/:id", session.RequirePermissions(authority.GetPost), handleDetailPost)
	g.PUT("/:id", session.RequirePermissions(authority.EditPost), handleUpdatePost)
	g.DELETE("/:id", session.RequirePermissions(authority.DeletePost), handleDeletePost)
	g.PATCH("/:id/publish", session.RequirePermissions(authority.PublishPost), handlePublishPost)
	g.PATCH("/:id/unpublish", session.RequirePermissions(authority.UnpublishPost), handleUnpublishPost)

	u := r.Group(account.PathUsers, middleWares...)
	u.GET("/:id/posts", session.RequirePermissions(authority.ListAuthorPosts), handleQueryPostsByAuthor)
}

func handleCreatePost(c *gin.Context) {
	creation := PostCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	p, err := CreatePostFunc(creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, p)
}

func handleQueryPosts(c *gin.Context) {
	query := PostQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	posts, err := QueryPostsFunc(query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, posts)
}

func handleDetailPost(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	p, err := DetailPostFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}

func handleQueryPostsByAuthor(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	posts, err := QueryPostsByAuthorFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, posts)
}

func handleUpdatePost(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	updating := PostUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	p, err := UpdatePostFunc(id, updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}

func handleDeletePost(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	if err := DeletePostFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func handlePublishPost(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	p, err := PublishPostFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}

func handleUnpublishPost(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	p, err := UnpublishPostFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}
