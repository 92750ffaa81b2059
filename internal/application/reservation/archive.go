package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStorage stores archive files
type ObjectStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
}

// ArchiveResult describes one exported archive
type ArchiveResult struct {
	StorageKey string    `json:"storage_key"`
	Count      int       `json:"count"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
}

// ArchiveService exports resolved reservations as JSON Lines so the history can be analysed
// outside the operational database.
type ArchiveService struct {
	reservationRepo reservation.ReservationRepository
	storage         ObjectStorage
	clock           shared.Clock
	pageSize        int
	prefix          string
	logger          *zap.Logger
}

// NewArchiveService creates a new ArchiveService
func NewArchiveService(reservationRepo reservation.ReservationRepository, storage ObjectStorage, clock shared.Clock, prefix string, logger *zap.Logger) *ArchiveService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "reservations/resolved"
	}
	return &ArchiveService{
		reservationRepo: reservationRepo,
		storage:         storage,
		clock:           clock,
		pageSize:        500,
		prefix:          prefix,
		logger:          logger,
	}
}

// Export writes every reservation resolved in [from, to) to a single object
func (s *ArchiveService) Export(ctx context.Context, from, to time.Time) (*ArchiveResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "archive", "export")
	defer span.End()

	if !from.Before(to) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Archive window start must be before its end")
	}

	var (
		buf   bytes.Buffer
		count int
		after *uuid.UUID
	)
	enc := json.NewEncoder(&buf)
	for {
		page, err := s.reservationRepo.FindResolvedBetween(ctx, from, to, after, s.pageSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, reservation.NewStorageError("list resolved reservations", err)
		}
		for i := range page {
			if err := enc.Encode(ToReservationResponse(&page[i])); err != nil {
				return nil, fmt.Errorf("encode reservation %s: %w", page[i].ID, err)
			}
		}
		count += len(page)
		if len(page) < s.pageSize {
			break
		}
		last := page[len(page)-1].ID
		after = &last
	}

	key := fmt.Sprintf("%s/%s_%s.jsonl", s.prefix,
		from.UTC().Format("20060102T150405Z"), to.UTC().Format("20060102T150405Z"))
	if err := s.storage.Upload(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("upload archive: %w", err)
	}

	s.logger.Info("Exported reservation archive",
		zap.String("storage_key", key),
		zap.Int("count", count),
	)
	return &ArchiveResult{StorageKey: key, Count: count, From: from, To: to}, nil
}
