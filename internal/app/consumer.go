package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/partnerhub/ledger-service/internal/domain"
)

// GuestEventConsumer turns guest activity events from the membership platform
// into pending grant tasks. Malformed payloads and deliveries the database
// deterministically rejects are acknowledged and dropped; transient
// processing failures re-queue the delivery.
type GuestEventConsumer struct {
	service *Service
}

func NewGuestEventConsumer(service *Service) *GuestEventConsumer {
	return &GuestEventConsumer{service: service}
}

// HandleMeetingFinished processes a guest.meeting.finished delivery.
func (c *GuestEventConsumer) HandleMeetingFinished(body []byte) bool {
	var event domain.MeetingFinishedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=guest_consumer msg=\"unmarshal meeting event failed; dropping\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := c.service.OnMeetingFinished(ctx, event); err != nil {
		if isPermanentConsumeError(err) {
			log.Printf("level=warn component=guest_consumer msg=\"meeting event rejected; dropping\" meeting_id=%s err=%v", event.MeetingID, err)
			return true
		}
		log.Printf("level=error component=guest_consumer msg=\"meeting event processing failed; re-queuing\" meeting_id=%s err=%v", event.MeetingID, err)
		return false
	}
	return true
}

// HandleVisitLogged processes a guest.visit.logged delivery.
func (c *GuestEventConsumer) HandleVisitLogged(body []byte) bool {
	var event domain.VisitLoggedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=guest_consumer msg=\"unmarshal visit event failed; dropping\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := c.service.OnVisitLogged(ctx, event); err != nil {
		if isPermanentConsumeError(err) {
			log.Printf("level=warn component=guest_consumer msg=\"visit event rejected; dropping\" visit_id=%s err=%v", event.VisitID, err)
			return true
		}
		log.Printf("level=error component=guest_consumer msg=\"visit event processing failed; re-queuing\" visit_id=%s err=%v", event.VisitID, err)
		return false
	}
	return true
}

// isPermanentConsumeError reports whether retrying the delivery could not
// possibly succeed, so the message should be acknowledged and dropped.
// Validation failures and deterministic Postgres rejections qualify: an
// integrity violation such as a missing inviter account (SQLSTATE 23503)
// fails the same way on every redelivery, and re-queuing it would spin the
// same poison message forever.
func isPermanentConsumeError(err error) bool {
	if domain.IsValidation(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23", "42": // data exception, integrity violation, invalid statement
			return true
		}
	}
	return false
}
