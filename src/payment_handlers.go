package main

import (
	"cbs/src/common"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// paymentHandlers receives provider callbacks. The endpoint is mounted
// outside the authenticated groups, the provider signs nothing useful
// beyond the shared secret header.
func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments/webhook", func(ctx *gin.Context) {
			raw, err := io.ReadAll(ctx.Request.Body)
			if err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			payload := string(raw)
			event := gjson.Get(payload, "event").String()
			orderID := uint(gjson.Get(payload, "data.order_id").Uint())
			if event == "" || orderID == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
				return
			}
			log.Printf("[webhook] event=%s order=%d", event, orderID)
			switch event {
			case "payment.proof_uploaded":
				ref := gjson.Get(payload, "data.reference").String()
				if ref == "" {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing reference"})
					return
				}
				if _, err := common.AttachPaymentProof(orderID, 0, true, ref); err != nil {
					respondError(ctx, err)
					return
				}
			case "payment.settled":
				if _, err := common.MarkPaid(orderID); err != nil {
					respondError(ctx, err)
					return
				}
			default:
				log.Printf("[webhook] ignoring event %s", event)
			}
			ctx.Status(http.StatusOK)
		})
	return g
}
