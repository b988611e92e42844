package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/persistence"
	"github.com/wfunc/quantumquest/tower"
)

// EventPublisher fans events out to other services.
type EventPublisher interface {
	Publish(kind string, v interface{}) error
}

const (
	measurementQueueSize = 1024
	measurementBatchSize = 64
	measurementFlush     = time.Second

	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// MeasurementService logs measurements off the request path. Writes and
// publishes that fail are logged and dropped.
type MeasurementService struct {
	writer    persistence.MeasurementLog
	publisher EventPublisher
	queue     chan models.QuantumMeasurement
	stop      chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
	now       func() time.Time
}

// NewMeasurementService starts the background writer. Either dependency may
// be nil.
func NewMeasurementService(writer persistence.MeasurementLog, publisher EventPublisher) *MeasurementService {
	s := &MeasurementService{
		writer:    writer,
		publisher: publisher,
		queue:     make(chan models.QuantumMeasurement, measurementQueueSize),
		stop:      make(chan struct{}),
		now:       time.Now,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Log queues m and returns immediately. A full queue drops the measurement.
func (s *MeasurementService) Log(m models.QuantumMeasurement) {
	if m.MeasuredAt.IsZero() {
		m.MeasuredAt = s.now()
	}
	select {
	case s.queue <- m:
	default:
		logger.Log.Warnf("Measurement queue full, dropping %s/%s", m.RoomID, m.MeasurementType)
	}
}

// Sink adapts the service to a tower game bound to sessionID.
func (s *MeasurementService) Sink(sessionID string) tower.MeasurementSink {
	return sessionSink{svc: s, sessionID: sessionID}
}

// Recent reads back the newest stored measurements of a room. Queued
// measurements that have not been flushed yet are not included.
func (s *MeasurementService) Recent(ctx context.Context, roomID string, limit int) ([]models.QuantumMeasurement, error) {
	if !ValidID(roomID) {
		return nil, invalid("Valid room_id is required")
	}
	if limit == 0 {
		limit = defaultRecentLimit
	}
	if limit < 0 || limit > maxRecentLimit {
		return nil, invalid("limit must be between 1 and 500")
	}
	if s.writer == nil {
		return []models.QuantumMeasurement{}, nil
	}
	out, err := s.writer.Recent(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("read measurements for %s: %w", roomID, err)
	}
	if out == nil {
		out = []models.QuantumMeasurement{}
	}
	return out, nil
}

// Close flushes what is queued and stops the writer.
func (s *MeasurementService) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

func (s *MeasurementService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(measurementFlush)
	defer ticker.Stop()

	batch := make([]models.QuantumMeasurement, 0, measurementBatchSize)
	for {
		select {
		case m := <-s.queue:
			batch = append(batch, m)
			if len(batch) >= measurementBatchSize {
				batch = s.flush(batch)
			}
		case <-ticker.C:
			batch = s.flush(batch)
		case <-s.stop:
			for {
				select {
				case m := <-s.queue:
					batch = append(batch, m)
				default:
					s.flush(batch)
					return
				}
			}
		}
	}
}

func (s *MeasurementService) flush(batch []models.QuantumMeasurement) []models.QuantumMeasurement {
	if len(batch) == 0 {
		return batch
	}
	if s.writer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.writer.SaveBatch(ctx, batch); err != nil {
			logger.Log.Warnf("Failed to save %d quantum measurements: %v", len(batch), err)
		}
		cancel()
	}
	if s.publisher != nil {
		for _, m := range batch {
			if err := s.publisher.Publish("measurement", m); err != nil {
				logger.Log.Warnf("Failed to publish measurement %s: %v", m.MeasurementType, err)
				break
			}
		}
	}
	return batch[:0]
}

type sessionSink struct {
	svc       *MeasurementService
	sessionID string
}

func (k sessionSink) Record(m tower.Measurement) {
	k.svc.Log(models.QuantumMeasurement{
		SessionID:       k.sessionID,
		RoomID:          m.RoomID,
		MeasurementType: m.EventType,
		MeasurementData: m.Payload,
		MeasuredAt:      m.Timestamp,
	})
}
