package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/propgate/propgate/internal/model"
)

// AuditService fan-outs rule events to a daily jsonl file, an in-memory ring
// and an optional repository. Writes are asynchronous: a full buffer drops
// events rather than stalling the evaluation path.
type AuditService struct {
	eventChan chan *model.RuleEvent
	logFile   *os.File
	buffer    *eventBuffer
	repo      AuditRepo
}

type AuditRepo interface {
	Insert(ctx context.Context, event *model.RuleEvent) error
	List(ctx context.Context, accountID string, eventType string, limit int, from, to *time.Time) ([]*model.RuleEvent, error)
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

func NewAuditService(logDir string, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	// 简单的按日轮转文件 (MVP)
	filename := filepath.Join(logDir, "events-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	svc := &AuditService{
		eventChan: make(chan *model.RuleEvent, 1000),
		logFile:   f,
		buffer:    newEventBuffer(1000),
		repo:      repo,
	}

	// 启动消费者 goroutine
	go svc.processEvents()

	return svc, nil
}

func (s *AuditService) Record(event *model.RuleEvent) {
	if s.buffer != nil {
		s.buffer.Add(event)
	}
	select {
	case s.eventChan <- event:
	default:
		// 缓冲区满，丢弃事件以保护评估主流程
		log.Println("⚠️ Rule event buffer full, dropping event")
	}
}

func (s *AuditService) List(ctx context.Context, accountID string, eventType string, limit int, from, to *time.Time) ([]*model.RuleEvent, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, accountID, eventType, limit, from, to)
		if err == nil {
			return records, nil
		}
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(accountID, eventType, limit), nil
}

func (s *AuditService) processEvents() {
	encoder := json.NewEncoder(s.logFile)
	for event := range s.eventChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), event); err != nil {
				log.Printf("❌ Failed to write rule event to DB: %v", err)
			}
		}
		if err := encoder.Encode(event); err != nil {
			log.Printf("❌ Failed to write rule event: %v", err)
		}
	}
}

func (s *AuditService) Close() {
	close(s.eventChan)
	s.logFile.Close()
}

type eventBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.RuleEvent
	nextIndex int
}

func newEventBuffer(maxSize int) *eventBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &eventBuffer{
		maxSize: maxSize,
		records: make([]*model.RuleEvent, 0, maxSize),
	}
}

func (b *eventBuffer) Add(event *model.RuleEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, event)
		return
	}
	b.records[b.nextIndex] = event
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *eventBuffer) List(accountID string, eventType string, limit int) []*model.RuleEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.RuleEvent, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		event := b.records[idx]
		if event == nil {
			continue
		}
		if accountID != "" && event.AccountID != accountID {
			continue
		}
		if eventType != "" && string(event.EventType) != eventType {
			continue
		}
		results = append(results, event)
		if len(results) >= limit {
			break
		}
	}
	return results
}
