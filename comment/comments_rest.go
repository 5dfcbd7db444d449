package comment

import (
	"net/http"

	"blogapi/account"
	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/post"
	"blogapi/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathComments = "/v1/comments"
)

func RegisterCommentsRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathComments, middleWares...)
	g.POST("", session.RequirePermissions(authority.AddComment), handleCreateComment)
	g.GET("", session.RequirePermissions(authority.ListComments), handleQueryComments)
	g.GET("/:id", session.RequirePermissions(authority.GetComment), handleDetailComment)
	g.PUT("/:id", session.RequirePermissions(authority.EditComment), handleUpdateComment)
	g.DELETE("/:id", session.RequirePermissions(authority.DeleteComment), handleDeleteComment)
	g.POST("/:id/replies", session.RequirePermissions(authority.AddComment), handleReplyComment)
	g.PATCH("/:id/moderation", session.RequirePermissions(authority.ModerateComment), handleModerateComment)

	p := r.Group(post.PathPosts, middleWares...)
	p.POST("/:id/comments", session.RequirePermissions(authority.AddComment), handleCreatePostComment)
	p.GET("/:id/comments", session.RequirePermissions(authority.ListPostComments), handleQueryCommentsByPost)
	p.GET("/:id/comments/recent", session.RequirePermissions(authority.ListPostComments), handleQueryRecentCommentsByPost)
	p.DELETE("/:id/comments/:commentId", session.RequirePermissions(authority.DeleteComment), handleDeletePostComment)

	u := r.Group(account.PathUsers, middleWares...)
	u.GET("/:id/comments", session.RequirePermissions(authority.ListAuthorComments), handleQueryCommentsByAuthor)
}

func handleCreateComment(c *gin.Context) {
	creation := bindCreation(c)
	cm, err := CreateCommentFunc(creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, cm)
}

func handleCreatePostComment(c *gin.Context) {
	postID := account.ParseIDParam(c, "id")
	creation := bindCreation(c)
	creation.PostID = postID
	cm, err := CreateCommentFunc(creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, cm)
}

func handleReplyComment(c *gin.Context) {
	parentID := account.ParseIDParam(c, "id")
	creation := bindCreation(c)
	cm, err := ReplyCommentFunc(parentID, creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, cm)
}

func handleQueryComments(c *gin.Context) {
	comments, err := QueryCommentsFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, comments)
}

func handleDetailComment(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	cm, err := DetailCommentFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, cm)
}

func handleQueryCommentsByPost(c *gin.Context) {
	postID := account.ParseIDParam(c, "id")
	comments, err := QueryCommentsByPostFunc(postID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"data": comments, "total": len(comments)})
}

func handleQueryRecentCommentsByPost(c *gin.Context) {
	postID := account.ParseIDParam(c, "id")
	query := RecentQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	comments, err := QueryRecentCommentsByPostFunc(postID, query.Limit, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"data": comments, "total": len(comments)})
}

func handleQueryCommentsByAuthor(c *gin.Context) {
	authorID := account.ParseIDParam(c, "id")
	comments, err := QueryCommentsByAuthorFunc(authorID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"data": comments, "total": len(comments)})
}

func handleUpdateComment(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	updating := CommentUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	cm, err := UpdateCommentFunc(id, updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, cm)
}

func handleModerateComment(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	moderation := Moderation{}
	if err := c.ShouldBindBodyWith(&moderation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	cm, err := ModerateCommentFunc(id, *moderation.Hidden, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, cm)
}

func handleDeleteComment(c *gin.Context) {
	id := account.ParseIDParam(c, "id")
	if err := DeleteCommentFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func handleDeletePostComment(c *gin.Context) {
	postID := account.ParseIDParam(c, "id")
	commentID := account.ParseIDParam(c, "commentId")
	if err := DeletePostCommentFunc(postID, commentID, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func bindCreation(c *gin.Context) CommentCreation {
	creation := CommentCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return creation
}
