package main

import (
	"cbs/src/common"
	"cbs/src/db"
	"cbs/src/lib"
	"cbs/src/models"
	"cbs/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

func cartHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/cart", func(ctx *gin.Context) {
			userID := ctx.GetUint("id")
			conn := db.GetDb()
			var order models.Order
			err := conn.
				Where("user_id = ? AND status = ? AND approval_status = ?", userID, types.ORDER_OPEN, types.APPROVAL_PENDING).
				Preload("CartItems", "status = ?", types.CART_ITEM_PENDING).
				Preload("CartItems.Court").
				First(&order).
				Error
			if err != nil {
				ctx.JSON(http.StatusOK, gin.H{"data": nil})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		POST("/cart/items", func(ctx *gin.Context) {
			var body types.AddCartItemRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userID := ctx.GetUint("id")
			flags := common.CurrentFlags()
			result, err := common.SubmitRequest(userID, &body, flags)
			if err != nil {
				respondError(ctx, err)
				return
			}
			lib.InvalidateAvailability(common.AvailabilityCacheKey(body.CourtID, mustDate(body.Date)))
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		DELETE("/cart/items/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userID := ctx.GetUint("id")
			role := types.Role(ctx.GetString("role"))
			result, err := common.CancelCartItem(params.ID, userID, role == types.ROLE_ADMIN)
			if err != nil {
				respondError(ctx, err)
				return
			}
			invalidateBookingGrids(result)
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return g
}

func cartAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		PUT("/cart/items/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.EditCartItemRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			flags := common.CurrentFlags()
			result, err := common.EditCartItem(params.ID, &body, flags)
			if err != nil {
				respondError(ctx, err)
				return
			}
			invalidateBookingGrids(result)
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return g
}
