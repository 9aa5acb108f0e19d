package main

import (
	"cbs/src/common"
	"cbs/src/db"
	"cbs/src/lib"
	"cbs/src/models"
	"cbs/src/types"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func orderHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/orders", func(ctx *gin.Context) {
			userID := ctx.GetUint("id")
			conn := db.GetDb()
			var orders []models.Order
			if err := conn.
				Where("user_id = ?", userID).
				Preload("Bookings").
				Order("created_at DESC").
				Limit(100).
				Find(&orders).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": orders, "count": len(orders)})
		}).
		GET("/orders/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userID := ctx.GetUint("id")
			role := types.Role(ctx.GetString("role"))
			conn := db.GetDb()
			var order models.Order
			q := conn.Where("id = ?", params.ID)
			if role != types.ROLE_ADMIN && role != types.ROLE_STAFF {
				q = q.Where("user_id = ?", userID)
			}
			if err := q.
				Preload("CartItems").
				Preload("Bookings").
				Preload("Bookings.Court").
				First(&order).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		POST("/orders/:id/checkout", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userID := ctx.GetUint("id")
			role := types.Role(ctx.GetString("role"))
			flags := common.CurrentFlags()
			result, err := common.Checkout(params.ID, userID, role == types.ROLE_ADMIN, flags)
			if err != nil {
				respondError(ctx, err)
				return
			}
			invalidateBookingGrids(result)
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		POST("/orders/:id/proof", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.AttachProofRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userID := ctx.GetUint("id")
			role := types.Role(ctx.GetString("role"))
			result, err := common.AttachPaymentProof(params.ID, userID, role == types.ROLE_ADMIN, body.Reference)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return g
}

func orderAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		PUT("/orders/:id/approve", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			result, err := common.Approve(params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			invalidateBookingGrids(result)
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		PUT("/orders/:id/reject", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.RejectOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			result, err := common.Reject(params.ID, body.Reason)
			if err != nil {
				respondError(ctx, err)
				return
			}
			invalidateBookingGrids(result)
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		PUT("/orders/:id/checkin", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			result, err := common.CheckIn(params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		PUT("/orders/:id/paid", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			result, err := common.MarkPaid(params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		POST("/orders/walkin", func(ctx *gin.Context) {
			var body types.WalkInRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			staffID := ctx.GetUint("id")
			role := types.Role(ctx.GetString("role"))
			flags := common.CurrentFlags()
			result, err := common.WalkIn(staffID, role, &body, flags)
			if err != nil {
				respondError(ctx, err)
				return
			}
			invalidateBookingGrids(result)
			ctx.JSON(http.StatusCreated, gin.H{"data": result})
		})
	return g
}

// invalidateBookingGrids drops the cached availability grid of every
// court/date a committed transition touched.
func invalidateBookingGrids(result *common.Result) {
	if result == nil {
		return
	}
	for i := range result.Bookings {
		b := result.Bookings[i]
		day := time.Date(b.StartTime.Year(), b.StartTime.Month(), b.StartTime.Day(), 0, 0, 0, 0, b.StartTime.Location())
		lib.InvalidateAvailability(common.AvailabilityCacheKey(b.CourtID, day))
	}
}
