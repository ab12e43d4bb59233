package handler

import (
	"io"
	"strconv"

	"perma-store/controller/respond"
	"perma-store/service/upload_service"

	"github.com/gin-gonic/gin"
)

// UploadHandler upload endpoints
type UploadHandler struct {
	service *upload_service.UploadService
}

// NewUploadHandler create upload handler
func NewUploadHandler(service *upload_service.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Upload POST /api/v1/files/upload
// Multipart form: file, fileId, durationDays, payerAddress
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.InvalidParam(c, "file is required")
		return
	}
	fileID := c.PostForm("fileId")
	if fileID == "" {
		respond.InvalidParam(c, "fileId is required")
		return
	}
	durationDays, _ := strconv.Atoi(c.PostForm("durationDays"))
	payerAddress := c.PostForm("payerAddress")

	src, err := fileHeader.Open()
	if err != nil {
		respond.ServerError(c, "failed to open upload")
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		respond.ServerError(c, "failed to read upload")
		return
	}

	result, err := h.service.UploadSingle(c.Request.Context(), fileID,
		fileHeader.Filename, data, durationDays, payerAddress)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, result)
}

// Chunk POST /api/v1/files/chunk
// Multipart form: chunk, fileId, chunkIndex, totalChunks, isLast,
// fileHash (first chunk), chunkHash, durationDays, payerAddress
func (h *UploadHandler) Chunk(c *gin.Context) {
	chunkHeader, err := c.FormFile("chunk")
	if err != nil {
		respond.InvalidParam(c, "chunk is required")
		return
	}
	fileID := c.PostForm("fileId")
	if fileID == "" {
		respond.InvalidParam(c, "fileId is required")
		return
	}
	chunkIndex, err := strconv.Atoi(c.PostForm("chunkIndex"))
	if err != nil {
		respond.InvalidParam(c, "chunkIndex must be an integer")
		return
	}
	totalChunks, err := strconv.Atoi(c.PostForm("totalChunks"))
	if err != nil {
		respond.InvalidParam(c, "totalChunks must be an integer")
		return
	}
	isLast := c.PostForm("isLast") == "true"
	durationDays, _ := strconv.Atoi(c.PostForm("durationDays"))

	src, err := chunkHeader.Open()
	if err != nil {
		respond.ServerError(c, "failed to open chunk")
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		respond.ServerError(c, "failed to read chunk")
		return
	}

	result, err := h.service.UploadChunk(c.Request.Context(), &upload_service.ChunkRequest{
		FileID:       fileID,
		FileName:     c.PostForm("fileName"),
		ChunkIndex:   chunkIndex,
		TotalChunks:  totalChunks,
		IsLast:       isLast,
		FileHash:     c.PostForm("fileHash"),
		ChunkHash:    c.PostForm("chunkHash"),
		DurationDays: durationDays,
		PayerAddress: c.PostForm("payerAddress"),
		Data:         data,
	})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, result)
}
