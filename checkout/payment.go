package checkout

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"taquilla/models"
)

// PaymentSimulator stands in for a payment provider.
type PaymentSimulator interface {
	Pay(ctx context.Context, session models.CheckoutSession) (models.PaymentResult, error)
}

// Simulator resolves payments after Delay with the status Outcome returns.
type Simulator struct {
	Delay   time.Duration
	Outcome func() models.CheckoutStatus
}

// NewSimulator approves most payments, leaves some pending and declines a few.
func NewSimulator(delay time.Duration) *Simulator {
	return &Simulator{
		Delay: delay,
		Outcome: func() models.CheckoutStatus {
			switch n := rand.IntN(100); {
			case n < 80:
				return models.CheckoutPaid
			case n < 90:
				return models.CheckoutPending
			default:
				return models.CheckoutFailed
			}
		},
	}
}

func (s *Simulator) Pay(ctx context.Context, session models.CheckoutSession) (models.PaymentResult, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return models.PaymentResult{}, ctx.Err()
		case <-t.C:
		}
	}

	status := s.Outcome()
	res := models.PaymentResult{
		SessionID: session.ID,
		Status:    status,
		Reference: "SIM-" + uuid.NewString(),
	}
	switch status {
	case models.CheckoutPending:
		res.Message = "El pago está en revisión"
	case models.CheckoutFailed:
		res.Message = "El pago fue rechazado"
	}
	return res, nil
}
