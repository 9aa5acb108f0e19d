package main

import (
	"cbs/src/common"
	"cbs/src/db"
	"cbs/src/models"
	"cbs/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

func waitlistHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/waitlist", func(ctx *gin.Context) {
			userID := ctx.GetUint("id")
			conn := db.GetDb()
			var entries []models.WaitlistEntry
			if err := conn.
				Where("user_id = ? AND status IN ?", userID, []types.WaitlistStatus{types.WAITLIST_PENDING, types.WAITLIST_NOTIFIED}).
				Preload("Court").
				Order("court_id, position").
				Find(&entries).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		}).
		DELETE("/waitlist/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userID := ctx.GetUint("id")
			role := types.Role(ctx.GetString("role"))
			result, err := common.CancelEntry(params.ID, userID, role == types.ROLE_ADMIN)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return g
}

func waitlistAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/bookings/:id/waitlist", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			conn := db.GetDb()
			var entries []models.WaitlistEntry
			if err := conn.
				Where("booking_id = ?", params.ID).
				Preload("User").
				Order("position").
				Find(&entries).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		})
	return g
}
