package api

import (
	"io"
	"mime"
	"net/http"

	"go-file-share/internal/middleware"
	"go-file-share/internal/service"
	"go-file-share/pkg/logger"

	errors "github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartOverhead 上传请求中文件内容之外的表单字段和分隔符预留
const multipartOverhead = 64 << 10

// FileHandler 处理文件登记和下载
type FileHandler struct {
	fileService *service.FileService
}

// NewFileHandler 创建新的文件处理器
func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// 调用者优先取自 token，否则取表单中的 user_id 和 username
func callerFromRequest(c *gin.Context) (userID uint, username string, ok bool) {
	if userID, username, ok = middleware.Caller(c); ok {
		return userID, username, true
	}

	rawID := c.PostForm("user_id")
	if rawID == "" {
		return 0, "", false
	}
	userID, err := service.ParseID(rawID)
	if err != nil {
		return 0, "", false
	}
	return userID, c.PostForm("username"), true
}

// RegisterFile 处理 multipart 上传并登记到目录
func (h *FileHandler) RegisterFile(c *gin.Context) {
	const missingFields = "Username, user_id, and file are required."

	// 读取表单之前限制请求体大小，超限的上传不会被完整读入
	if limit := h.fileService.MaxFileSize(); limit > 0 {
		if c.Request.ContentLength > limit+multipartOverhead {
			c.Header("Connection", "close")
			respondError(c, service.ErrFileTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}
	if _, err := c.MultipartForm(); err != nil {
		if tooLarge(c, err) {
			return
		}
		// 不是 multipart 的请求在下面按缺少字段处理
		logger.L.Debug("Failed to parse multipart form", zap.Error(err))
	}

	userID, username, ok := callerFromRequest(c)
	if !ok || username == "" {
		badRequest(c, missingFields)
		return
	}

	// 从表单数据中获取文件
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if tooLarge(c, err) {
			return
		}
		logger.L.Warn("Failed to get file from request", zap.Error(err))
		badRequest(c, missingFields)
		return
	}
	if fileHeader.Filename == "" {
		respondError(c, service.ErrEmptyFilename)
		return
	}
	if limit := h.fileService.MaxFileSize(); limit > 0 && fileHeader.Size > limit {
		respondError(c, service.ErrFileTooLarge)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.fileService.RegisterFile(c.Request.Context(), service.RegisterFileRequest{
		OwnerID:   userID,
		OwnerName: username,
		FileName:  fileHeader.Filename,
		Content:   content,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "File registered successfully.",
		"file_id": record.ID,
	})
}

// DownloadFile 以附件形式返回文件内容
func (h *FileHandler) DownloadFile(c *gin.Context) {
	fileID, err := service.ParseID(c.Param("file_id"))
	if err != nil {
		respondError(c, service.ErrFileNotFound)
		return
	}

	record, content, err := h.fileService.FetchContent(c.Request.Context(), fileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": record.Name}))
	c.Data(http.StatusOK, "application/octet-stream", content)
}

// tooLarge 请求体超过上限时返回 ErrFileTooLarge
func tooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if err == nil || !errors.As(err, &maxErr) {
		return false
	}
	respondError(c, service.ErrFileTooLarge)
	return true
}
