package handler

import (
	"fmt"
	"log"
	"strconv"

	"perma-store/controller/respond"
	"perma-store/model"
	"perma-store/service/retrieve_service"

	"github.com/gin-gonic/gin"
)

// FetchHandler retrieval endpoints
type FetchHandler struct {
	service *retrieve_service.RetrieveService
}

// NewFetchHandler create fetch handler
func NewFetchHandler(service *retrieve_service.RetrieveService) *FetchHandler {
	return &FetchHandler{service: service}
}

// List GET /api/v1/files?cursor=&limit=
func (h *FetchHandler) List(c *gin.Context) {
	cursor, _ := strconv.ParseInt(c.Query("cursor"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	files, next, err := h.service.List(cursor, limit)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToFileList(files, next))
}

// Info GET /api/v1/files/:fileId/info
func (h *FetchHandler) Info(c *gin.Context) {
	file, err := h.service.GetFileInfo(c.Request.Context(), c.Param("fileId"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToFileInfo(file))
}

// Payments GET /api/v1/files/:fileId/payments
func (h *FetchHandler) Payments(c *gin.Context) {
	recs, err := h.service.PaymentHistory(c.Param("fileId"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToPaymentList(recs))
}

// downloadWriter sets the download headers on the first payload byte.
// A failure before streaming starts leaves the response untouched, so
// the error envelope goes out without a stale Content-Length.
type downloadWriter struct {
	c     *gin.Context
	info  *model.File
	wrote bool
}

func (w *downloadWriter) Write(p []byte) (int, error) {
	if !w.wrote {
		w.wrote = true
		w.c.Header("Content-Type", "application/octet-stream")
		if w.info.FileName != "" {
			w.c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", w.info.FileName))
		}
		if w.info.FileSize > 0 {
			w.c.Header("Content-Length", strconv.FormatInt(w.info.FileSize, 10))
		}
	}
	return w.c.Writer.Write(p)
}

// Download GET /api/v1/files/:fileId
// Streams the payload in chunk order. Headers go out with the first
// chunk, so a mid-stream failure surfaces as a truncated body.
func (h *FetchHandler) Download(c *gin.Context) {
	fileID := c.Param("fileId")

	info, err := h.service.GetFileInfo(c.Request.Context(), fileID)
	if err != nil {
		respond.FromError(c, err)
		return
	}

	dw := &downloadWriter{c: c, info: info}
	if _, err := h.service.StreamFile(c.Request.Context(), fileID, dw); err != nil {
		if dw.wrote {
			log.Printf("Download of %s aborted mid-stream: %v", fileID, err)
			c.Abort()
			return
		}
		respond.FromError(c, err)
	}
}
