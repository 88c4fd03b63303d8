// file: internal/server/handlers.go
// version: 1.4.0
// guid: af91b313-5326-46b3-9871-edd1352c0dcc

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/playlist-archiver/internal/auth"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// login issues a bearer token for valid credentials.
func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "username and password are required", "BAD_REQUEST")
		return
	}
	token, err := s.gate.Login(req.Username, req.Password)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// loginCheck reports whether the supplied token is still valid. The
// auth middleware already verified it, so reaching here means yes.
func (s *Server) loginCheck(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"valid": true, "username": user})
}

func (s *Server) triggerSync(c *gin.Context) {
	s.cmds.TriggerSync()
	c.JSON(http.StatusAccepted, gin.H{"status": "sync requested"})
}

func (s *Server) reindex(c *gin.Context) {
	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		RespondWithError(c, http.StatusBadRequest, "expected a JSON array of video ids", "BAD_REQUEST")
		return
	}
	s.cmds.Reindex(ids)
	c.JSON(http.StatusAccepted, gin.H{"status": "reindex requested", "count": len(ids)})
}

// overrideQuery stores or clears (body `null`) the manual search query.
func (s *Server) overrideQuery(c *gin.Context) {
	var query *models.SearchQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		RespondWithError(c, http.StatusBadRequest, "malformed query object", "BAD_REQUEST")
		return
	}
	if err := s.cmds.OverrideQuery(c.Request.Context(), c.Param("id"), query); err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// overrideResult stores or clears (body `null`) the manual match result.
func (s *Server) overrideResult(c *gin.Context) {
	var result *models.Metadata
	if err := c.ShouldBindJSON(&result); err != nil {
		RespondWithError(c, http.StatusBadRequest, "malformed result object", "BAD_REQUEST")
		return
	}
	if err := s.cmds.OverrideResult(c.Request.Context(), c.Param("id"), result); err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) retryFetch(c *gin.Context) {
	if err := s.cmds.RetryFetch(c.Request.Context(), c.Param("id")); err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) deleteVideo(c *gin.Context) {
	if err := s.cmds.Delete(c.Param("id")); err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// preview streams the local audio file for an id, if one exists.
func (s *Server) preview(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.Get(id); err != nil {
		respondWithDomainError(c, err)
		return
	}
	path, ok := s.cmds.LocateFile(id)
	if !ok {
		RespondWithError(c, http.StatusNotFound, "no audio file for "+id, "NOT_FOUND")
		return
	}
	c.File(path)
}
