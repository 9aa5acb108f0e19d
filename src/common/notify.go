package common

import (
	"cbs/src/db"
	"cbs/src/lib"
	"cbs/src/models"
	"fmt"
	"log"
	"os"
	"time"
)

// sendMail is swappable so tests can capture outgoing notices. Delivery
// failures are logged and never roll back a committed transition.
var sendMail = lib.SendMail

func SetMailSender(f func(*lib.SendMailInput) error) {
	sendMail = f
}

func notifyWaitlistEntry(entry *models.WaitlistEntry) {
	conn := db.GetDb()
	var user models.User
	if err := conn.Where("id = ?", entry.UserID).First(&user).Error; err != nil {
		log.Printf("[notify] could not load user %d for waitlist entry %d: %s\n", entry.UserID, entry.ID, err.Error())
		return
	}
	var court models.Court
	if err := conn.Where("id = ?", entry.CourtID).First(&court).Error; err != nil {
		log.Printf("[notify] could not load court %d for waitlist entry %d: %s\n", entry.CourtID, entry.ID, err.Error())
		return
	}
	deadline := ""
	if entry.ExpiresAt != nil {
		deadline = entry.ExpiresAt.Format(time.RFC1123)
	}
	input := &lib.SendMailInput{
		From:     os.Getenv("SMTP_FROM"),
		FromName: "noreply",
		To:       []string{user.Email},
		Subject:  fmt.Sprintf("Court Reservation: %s is now available", court.Name),
		Body: fmt.Sprintf(`
			<p>A slot you were waiting for on <b>%s</b> has opened up.</p>
			<p>When: %s to %s</p>
			<p>Check out before <b>%s</b> to claim it, after that the next person in line gets the slot.</p>
			<p>This is a system-generated message. Do not reply to this email.</p>
			`,
			court.Name,
			entry.StartTime.Format(time.RFC1123),
			entry.EndTime.Format(time.RFC1123),
			deadline,
		),
		Html: true,
	}
	if err := sendMail(input); err != nil {
		log.Printf("[notify] error sending waitlist notice for entry %d: %s\n", entry.ID, err.Error())
	}
}

func notifyOrderDecision(order *models.Order, approved bool, reason string) {
	if order == nil {
		return
	}
	conn := db.GetDb()
	var user models.User
	if err := conn.Where("id = ?", order.UserID).First(&user).Error; err != nil {
		log.Printf("[notify] could not load user %d for order %d: %s\n", order.UserID, order.ID, err.Error())
		return
	}
	subject := fmt.Sprintf("Court Reservation: order #%d approved", order.ID)
	body := fmt.Sprintf(`
		<p>Your reservation order <b>#%d</b> has been approved.</p>
		<p>Total: %.2f</p>
		<p>This is a system-generated message. Do not reply to this email.</p>
		`, order.ID, order.TotalPrice)
	if !approved {
		subject = fmt.Sprintf("Court Reservation: order #%d rejected", order.ID)
		body = fmt.Sprintf(`
			<p>Your reservation order <b>#%d</b> has been rejected.</p>
			<p>Reason: %s</p>
			<p>This is a system-generated message. Do not reply to this email.</p>
			`, order.ID, reason)
	}
	input := &lib.SendMailInput{
		From:     os.Getenv("SMTP_FROM"),
		FromName: "noreply",
		To:       []string{user.Email},
		Subject:  subject,
		Body:     body,
		Html:     true,
	}
	if err := sendMail(input); err != nil {
		log.Printf("[notify] error sending decision notice for order %d: %s\n", order.ID, err.Error())
	}
}
