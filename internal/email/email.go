package email

import (
	"context"
	"fmt"

	"github.com/mlevanov/flightbooking/internal/kafka"
)

// Sender delivers booking notifications. The transport is a stdout stub;
// the worker only needs the interface shape.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	fmt.Printf("send email to %s: %s for booking %s (flight %d, %d seat(s))\n",
		event.Email, event.Type, event.Reference, event.FlightID, event.SeatsBooked)
	return nil
}
