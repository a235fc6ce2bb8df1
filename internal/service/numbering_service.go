package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/cache"
	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/metrics"
	"go-accounting-ws/internal/model"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const maxDocumentNumber = 999999

var (
	errNumberTaken      = errors.New("document number already taken")
	errNumbersExhausted = errors.New("document number space exhausted")
)

// NumberingService hands out sequential warehouse document numbers per type.
// A number is reserved for the asking session until it is used by a document,
// cleared, or the reservation expires, so two sessions never get the same one.
type NumberingService interface {
	NextDocumentNumber(ctx context.Context, session string, docType model.TransactionType) (string, error)
	ClearSavedDocumentNumber(ctx context.Context, session string, docType model.TransactionType) error
}

type NumberingConfig struct {
	MaxAttempts    int
	Backoff        time.Duration
	ReservationTTL time.Duration
}

type numberingService struct {
	store   ledger.Store
	cache   cache.Cache
	cfg     NumberingConfig
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewNumberingService(store ledger.Store, c cache.Cache, cfg NumberingConfig, m *metrics.Metrics, log *zap.Logger) NumberingService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Millisecond
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 24 * time.Hour
	}
	return &numberingService{store: store, cache: c, cfg: cfg, metrics: m, log: log}
}

func documentNumberKey(session string, docType model.TransactionType) string {
	return fmt.Sprintf("session:%s:current_document_number_%s", session, docType)
}

func formatDocumentNumber(n int) string {
	return fmt.Sprintf("%0*d", model.DocumentNumberWidth, n)
}

// parseDocumentNumber reads a stored number. Anything unparsable counts as 0.
func parseDocumentNumber(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func validDocumentNumber(s string) bool {
	if len(s) != model.DocumentNumberWidth {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func checkNumberingArgs(session string, docType model.TransactionType) error {
	if !docType.Valid() {
		return apperrors.NewValidationError("document type must be income or expense")
	}
	if strings.TrimSpace(session) == "" {
		return apperrors.NewValidationError("session is required")
	}
	return nil
}

func (s *numberingService) NextDocumentNumber(ctx context.Context, session string, docType model.TransactionType) (string, error) {
	if err := checkNumberingArgs(session, docType); err != nil {
		return "", err
	}
	key := documentNumberKey(session, docType)

	if number, ok := s.cachedNumber(ctx, key); ok {
		reused, err := s.reuse(ctx, session, docType, number)
		if err != nil {
			s.log.Error("reuse cached document number failed", zap.String("number", number), zap.Error(err))
			return "", apperrors.NewOperationFailed("generate document number", err)
		}
		if reused {
			s.metrics.DocumentNumberIssued(string(docType), "cache")
			return number, nil
		}
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("evict document number failed", zap.String("key", key), zap.Error(err))
		}
	}

	number, err := s.generate(ctx, session, docType)
	if err != nil {
		return "", err
	}
	s.metrics.DocumentNumberIssued(string(docType), "store")

	if err := s.cache.Set(ctx, key, number); err != nil {
		s.log.Warn("cache document number failed", zap.String("key", key), zap.Error(err))
	}
	return number, nil
}

func (s *numberingService) cachedNumber(ctx context.Context, key string) (string, bool) {
	number, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("read document number cache failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	if !ok || !validDocumentNumber(number) {
		return "", false
	}
	return number, true
}

// reuse reports whether a cached number can be handed out again. It can when
// no document uses it yet and it is either still reserved by session or not
// reserved at all, in which case it is reserved again.
func (s *numberingService) reuse(ctx context.Context, session string, docType model.TransactionType, number string) (bool, error) {
	var reused bool
	err := s.store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		reused = false
		now, err := tx.Now(ctx)
		if err != nil {
			return err
		}
		exists, err := tx.DocumentNumberExists(ctx, docType, number)
		if err != nil || exists {
			return err
		}

		r, err := tx.GetReservation(ctx, docType, number, now)
		if err == nil {
			reused = r.Session == session
			return nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		if err := tx.PurgeExpiredReservations(ctx, docType, now); err != nil {
			return err
		}
		if err := tx.CreateReservation(ctx, &model.DocumentReservation{
			Type:      docType,
			Number:    number,
			Session:   session,
			ExpiresAt: now.Add(s.cfg.ReservationTTL),
		}); err != nil {
			return err
		}
		reused = true
		return nil
	})
	if errors.Is(err, ledger.ErrDuplicate) || errors.Is(err, ledger.ErrConflict) {
		return false, nil
	}
	return reused, err
}

// generate derives the next free number from the store. A candidate that
// turns out to be taken raises the floor for the next attempt.
func (s *numberingService) generate(ctx context.Context, session string, docType model.TransactionType) (string, error) {
	var (
		floor    int
		attempts int
		number   string
	)
	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxAttempts-1), retry.NewConstant(s.cfg.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		candidate, err := s.reserve(ctx, session, docType, floor)
		if err == nil {
			number = formatDocumentNumber(candidate)
			return nil
		}
		if errors.Is(err, errNumberTaken) || errors.Is(err, ledger.ErrDuplicate) || errors.Is(err, ledger.ErrConflict) {
			s.metrics.DocumentNumberCollision(string(docType))
			s.log.Debug("document number collision",
				zap.String("type", string(docType)),
				zap.Int("candidate", candidate),
				zap.Int("attempt", attempts))
			floor = max(floor, candidate)
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return number, nil
	}

	if errors.Is(err, errNumberTaken) || errors.Is(err, ledger.ErrDuplicate) || errors.Is(err, ledger.ErrConflict) {
		s.log.Warn("document numbering gave up",
			zap.String("type", string(docType)),
			zap.Int("attempts", attempts))
		return "", apperrors.NewContentionError("generate document number", attempts)
	}
	s.log.Error("generate document number failed", zap.String("type", string(docType)), zap.Error(err))
	return "", apperrors.NewOperationFailed("generate document number", err)
}

// reserve picks the number after max(latest document, latest active
// reservation, floor) and reserves it for session. The candidate is returned
// even when it could not be reserved.
func (s *numberingService) reserve(ctx context.Context, session string, docType model.TransactionType, floor int) (int, error) {
	var candidate int
	err := s.store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		now, err := tx.Now(ctx)
		if err != nil {
			return err
		}
		if err := tx.PurgeExpiredReservations(ctx, docType, now); err != nil {
			return err
		}
		if err := tx.ReleaseReservations(ctx, docType, session); err != nil {
			return err
		}

		base := 0
		latest, err := tx.LatestDocument(ctx, docType)
		switch {
		case err == nil:
			base = parseDocumentNumber(latest.DocumentNumber)
		case !errors.Is(err, ledger.ErrNotFound):
			return err
		}
		reserved, err := tx.LatestReservation(ctx, docType, now)
		switch {
		case err == nil:
			base = max(base, parseDocumentNumber(reserved.Number))
		case !errors.Is(err, ledger.ErrNotFound):
			return err
		}

		candidate = max(base, floor) + 1
		if candidate > maxDocumentNumber {
			return errNumbersExhausted
		}
		number := formatDocumentNumber(candidate)

		exists, err := tx.DocumentNumberExists(ctx, docType, number)
		if err != nil {
			return err
		}
		if exists {
			return errNumberTaken
		}
		if _, err := tx.GetReservation(ctx, docType, number, now); err == nil {
			return errNumberTaken
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		return tx.CreateReservation(ctx, &model.DocumentReservation{
			Type:      docType,
			Number:    number,
			Session:   session,
			ExpiresAt: now.Add(s.cfg.ReservationTTL),
		})
	})
	return candidate, err
}

func (s *numberingService) ClearSavedDocumentNumber(ctx context.Context, session string, docType model.TransactionType) error {
	if err := checkNumberingArgs(session, docType); err != nil {
		return err
	}
	key := documentNumberKey(session, docType)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.Warn("evict document number failed", zap.String("key", key), zap.Error(err))
	}

	err := s.store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		return tx.ReleaseReservations(ctx, docType, session)
	})
	if err != nil {
		s.log.Error("release document number failed", zap.String("session", session), zap.Error(err))
		return apperrors.NewOperationFailed("clear document number", err)
	}
	return nil
}
