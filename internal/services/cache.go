package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("key not found")

// memorySweepInterval spaces the expiry sweeps Set runs on the memory map.
const memorySweepInterval = time.Minute

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// CacheService stores JSON values in Redis behind a circuit breaker. With no
// Redis client it keeps entries in process memory instead.
type CacheService struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Entry

	mu        sync.Mutex
	memory    map[string]memoryEntry
	lastSweep time.Time
	now       func() time.Time
}

func NewCacheService(client *redis.Client, logger *logrus.Logger) *CacheService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("component", "cache")

	s := &CacheService{
		client: client,
		logger: entry,
		memory: make(map[string]memoryEntry),
		now:    time.Now,
	}

	if client != nil {
		s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "redis-cache",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				entry.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Cache circuit breaker state changed")
			},
			// A miss is a normal answer, not a Redis failure
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, redis.Nil)
			},
		})
	}

	return s
}

// Backend names the storage in use, for health output.
func (s *CacheService) Backend() string {
	if s.client == nil {
		return "memory"
	}
	return "redis"
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		now := s.now()
		if now.Sub(s.lastSweep) >= memorySweepInterval {
			s.sweepLocked(now)
		}
		entry := memoryEntry{data: data}
		if expiration > 0 {
			entry.expiresAt = now.Add(expiration)
		}
		s.memory[key] = entry
		return nil
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, data, expiration).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte

	if s.client == nil {
		s.mu.Lock()
		entry, ok := s.memory[key]
		if ok && !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
			delete(s.memory, key)
			ok = false
		}
		s.mu.Unlock()
		if !ok {
			return ErrCacheMiss
		}
		data = entry.data
	} else {
		res, err := s.breaker.Execute(func() (interface{}, error) {
			return s.client.Get(ctx, key).Bytes()
		})
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrCacheMiss
			}
			return fmt.Errorf("failed to get cache: %w", err)
		}
		data = res.([]byte)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, key := range keys {
			delete(s.memory, key)
		}
		return nil
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// SweepExpired drops expired entries from the in-memory fallback and returns
// how many it removed. Redis expires keys on its own.
func (s *CacheService) SweepExpired() int {
	if s.client != nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *CacheService) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range s.memory {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.memory, key)
			removed++
		}
	}
	s.lastSweep = now
	return removed
}

// Len reports the number of entries held in memory.
func (s *CacheService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memory)
}

// Ping reports whether the cache backend is reachable.
func (s *CacheService) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// SetWithRetry retries Set with a linear backoff.
func (s *CacheService) SetWithRetry(ctx context.Context, key string, value interface{}, expiration time.Duration, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = s.Set(ctx, key, value, expiration); err == nil {
			return nil
		}
		s.logger.Warnf("Cache set failed (attempt %d/%d): %v", i+1, maxRetries, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond * 100 * time.Duration(i+1)):
		}
	}
	return err
}

// ReportCacheKey identifies a run by its inputs, so an identical upload with
// identical parameters can reuse a stored report.
func ReportCacheKey(req pipeline.Request) string {
	h := sha256.New()
	h.Write(req.Matchups)
	h.Write([]byte{0})
	h.Write(req.Salaries)
	h.Write([]byte{0})

	teams := make([]string, 0, len(req.TeamFilter))
	for _, team := range req.TeamFilter {
		if team = strings.TrimSpace(team); team != "" {
			teams = append(teams, team)
		}
	}
	sort.Strings(teams)
	fmt.Fprintf(h, "%d|%g|%s", req.LineupSize, req.SalaryCap, strings.Join(teams, ","))

	return "report:" + hex.EncodeToString(h.Sum(nil))
}

// RunCacheKey addresses a stored report by run ID.
func RunCacheKey(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}
