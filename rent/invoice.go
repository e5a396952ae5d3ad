package rent

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// INVOICE NUMBERS
// =============================================================================

// InvoiceNumberer produces the trailing component of an invoice number.
type InvoiceNumberer interface {
	Suffix(paymentID PaymentID) string
}

// LegacyNumberer draws a random 0-999 suffix with no collision check.
// Two invoices for the same tenant in the same month can collide; it is
// kept only for stores that already hold numbers in this shape.
type LegacyNumberer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLegacyNumberer(seed int64) *LegacyNumberer {
	return &LegacyNumberer{rnd: rand.New(rand.NewSource(seed))}
}

func (n *LegacyNumberer) Suffix(PaymentID) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fmt.Sprintf("%d", n.rnd.Intn(1000))
}

// SequenceNumberer uses the time-ordered head of a UUIDv7. The uuid
// package keeps the millisecond timestamp plus sub-millisecond sequence
// strictly increasing within a process, so no two suffixes repeat.
type SequenceNumberer struct{}

func (SequenceNumberer) Suffix(PaymentID) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return strings.ToUpper(hex.EncodeToString(id[:8]))
}

// InvoiceNumber formats INV-{YYYY}{MM}-{tenant prefix}-{suffix}. The
// prefix is the first 8 runes of the tenant ID.
// YYYY and MM are taken from generatedAt, not from the billed period.
func InvoiceNumber(generatedAt time.Time, tenantID TenantID, suffix string) string {
	prefix := []rune(string(tenantID))
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("INV-%04d%02d-%s-%s", generatedAt.Year(), int(generatedAt.Month()), string(prefix), suffix)
}

// =============================================================================
// INVOICE ALLOCATOR
// =============================================================================

// InvoiceAllocator assigns an invoice number to a payment and stamps it.
//
// Generating twice for the same payment overwrites the earlier number.
type InvoiceAllocator struct {
	Gateway  Gateway
	Numberer InvoiceNumberer
	Clock    func() time.Time
	Logger   *zap.Logger
}

// NewInvoiceAllocator creates an allocator with sequence numbering.
func NewInvoiceAllocator(gw Gateway, logger *zap.Logger) *InvoiceAllocator {
	return &InvoiceAllocator{Gateway: gw, Numberer: SequenceNumberer{}, Clock: time.Now, Logger: orNop(logger)}
}

// Generate allocates and stamps an invoice number. It returns
// ErrPaymentNotFound when the payment cannot be loaded; a failed stamp is
// returned as a *WriteError.
func (a *InvoiceAllocator) Generate(ctx context.Context, paymentID PaymentID) (*Invoice, error) {
	logger := orNop(a.Logger)

	joined, err := a.Gateway.PaymentForInvoice(ctx, paymentID)
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			logger.Warn("invoice payment lookup failed",
				zap.String("payment_id", string(paymentID)),
				zap.Error(err),
			)
		}
		return nil, ErrPaymentNotFound
	}
	if joined == nil {
		return nil, ErrPaymentNotFound
	}

	now := time.Now
	if a.Clock != nil {
		now = a.Clock
	}
	generatedAt := now().UTC()

	numberer := a.Numberer
	if numberer == nil {
		numberer = SequenceNumberer{}
	}
	number := InvoiceNumber(generatedAt, joined.Payment.TenantID, numberer.Suffix(paymentID))

	if err := a.Gateway.StampInvoice(ctx, paymentID, number, generatedAt); err != nil {
		logger.Error("stamping invoice failed",
			zap.String("payment_id", string(paymentID)),
			zap.String("invoice_number", number),
			zap.Error(err),
		)
		return nil, &WriteError{Op: "stamp invoice", Err: err}
	}

	payment := joined.Payment
	payment.InvoiceNumber = number
	payment.InvoiceGeneratedAt = &generatedAt

	return &Invoice{
		Number:          number,
		GeneratedAt:     generatedAt,
		Payment:         payment,
		TenantName:      joined.TenantName,
		PropertyAddress: joined.PropertyAddress,
	}, nil
}
