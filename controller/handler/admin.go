package handler

import (
	"perma-store/controller/respond"
	"perma-store/service/renewal_service"
	"perma-store/service/retrieve_service"

	"github.com/gin-gonic/gin"
)

// AdminHandler operational endpoints
type AdminHandler struct {
	renewal  *renewal_service.RenewalService
	retrieve *retrieve_service.RetrieveService
}

// NewAdminHandler create admin handler
func NewAdminHandler(renewal *renewal_service.RenewalService,
	retrieve *retrieve_service.RetrieveService) *AdminHandler {
	return &AdminHandler{renewal: renewal, retrieve: retrieve}
}

// Renew POST /api/v1/admin/renew — out-of-cycle renewal pass
func (h *AdminHandler) Renew(c *gin.Context) {
	report, err := h.renewal.RunCycle(c.Request.Context())
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, report)
}

// Upcoming GET /api/v1/renewals/upcoming
func (h *AdminHandler) Upcoming(c *gin.Context) {
	files, err := h.retrieve.ListDueForRenewal()
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToFileList(files, 0))
}

// Stats GET /api/v1/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.retrieve.GetStats()
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, stats)
}
