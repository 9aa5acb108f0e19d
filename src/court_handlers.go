package main

import (
	"cbs/src/common"
	"cbs/src/config"
	"cbs/src/db"
	"cbs/src/lib"
	"cbs/src/models"
	"cbs/src/types"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
)

func courtHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/courts", func(ctx *gin.Context) {
			conn := db.GetDb()
			var courts []models.Court
			if err := conn.
				Where("status = ?", "active").
				Order("name ASC").
				Find(&courts).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": courts, "count": len(courts)})
		}).
		GET("/courts/:slug/availability", func(ctx *gin.Context) {
			courtSlug := ctx.Params.ByName("slug")
			dateStr := ctx.Query("date")
			date, err := time.ParseInLocation(config.DATE_PARSE_FORMAT, dateStr, time.Local)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing date"})
				return
			}
			conn := db.GetDb()
			var court models.Court
			if err := conn.
				Where("slug = ? AND status = ?", courtSlug, "active").
				First(&court).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "court not found"})
				return
			}
			userID := ctx.GetUint("id")
			flags := common.CurrentFlags()

			// Cached grids are display-only and may lag; callers holding a
			// waitlist entry always see fresh state.
			cacheKey := common.AvailabilityCacheKey(court.ID, date)
			if userID == 0 {
				if cached, ok := lib.GetCachedAvailability(cacheKey); ok {
					ctx.Data(http.StatusOK, "application/json", []byte(cached))
					return
				}
			}
			slots, err := common.EvaluateDay(conn, &court, date, userID, flags)
			if err != nil {
				respondError(ctx, err)
				return
			}
			payload := gin.H{"data": slots, "court": court.Slug, "date": dateStr}
			if userID == 0 {
				if raw, err := json.Marshal(payload); err == nil {
					lib.CacheAvailability(cacheKey, string(raw), 30*time.Second)
				}
			}
			ctx.JSON(http.StatusOK, payload)
		})
	return g
}

func courtAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/courts", func(ctx *gin.Context) {
			var body types.CreateCourtRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			court := models.Court{
				Name:       body.Name,
				Slug:       slug.Make(body.Name),
				OpenTime:   body.OpenTime,
				CloseTime:  body.CloseTime,
				HourlyRate: body.HourlyRate,
				Status:     "active",
			}
			if body.Description != "" {
				court.Description = &body.Description
			}
			conn := db.GetDb()
			if err := conn.Create(&court).Error; err != nil {
				log.Printf("Could not create court: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": court})
		})
	return g
}
