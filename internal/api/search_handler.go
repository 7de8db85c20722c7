package api

import (
	"net/http"

	"go-file-share/internal/service"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	searchService *service.SearchService
}

func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search GET /search?query=&type=
func (h *SearchHandler) Search(c *gin.Context) {
	files, err := h.searchService.Search(c.Request.Context(), c.Query("query"), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// SharedBy GET /users/:username/files
func (h *SearchHandler) SharedBy(c *gin.Context) {
	files, err := h.searchService.FilesSharedBy(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}
