package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

type subscriptionEntry struct {
	Channel  domain.Channel `json:"channel"`
	Category string         `json:"category"`
	Topic    string         `json:"topic"`
}

// FileStore keeps subscriptions in one JSON file mapping owner id to its
// subscription list. The default store when no database is configured.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

var _ ports.SubscriptionStore = (*FileStore)(nil)

// NewFileStore creates the parent directory and an empty file if absent.
func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create subscriptions dir: %w", err)
	}
	store := &FileStore{path: path, logger: log}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := store.write(map[string][]subscriptionEntry{}); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// List returns every subscription across all owners.
func (s *FileStore) List(ctx context.Context) ([]domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}

	var subs []domain.Subscription
	for owner, entries := range data {
		for _, entry := range entries {
			subs = append(subs, toSubscription(owner, entry))
		}
	}
	return subs, nil
}

// ListByOwner returns one owner's subscriptions.
func (s *FileStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}

	var subs []domain.Subscription
	for _, entry := range data[ownerID] {
		subs = append(subs, toSubscription(ownerID, entry))
	}
	return subs, nil
}

// Add appends the subscription, rejecting a duplicate (category, topic)
// pair for the owner.
func (s *FileStore) Add(ctx context.Context, sub domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	for _, entry := range data[sub.OwnerID] {
		if sub.Matches(entry.Category, entry.Topic) {
			return fmt.Errorf("owner %s already subscribed to %s/%s", sub.OwnerID, entry.Category, entry.Topic)
		}
	}

	data[sub.OwnerID] = append(data[sub.OwnerID], subscriptionEntry{
		Channel:  sub.Channel,
		Category: sub.Category,
		Topic:    sub.Topic,
	})
	return s.write(data)
}

// Remove deletes the matching subscription; removing the last one drops
// the owner from the file.
func (s *FileStore) Remove(ctx context.Context, ownerID, category, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	entries, ok := data[ownerID]
	if !ok {
		return fmt.Errorf("owner %s has no subscriptions", ownerID)
	}

	kept := entries[:0]
	removed := false
	for _, entry := range entries {
		probe := domain.Subscription{Category: entry.Category, Topic: entry.Topic}
		if probe.Matches(category, topic) {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if !removed {
		return fmt.Errorf("owner %s is not subscribed to %s/%s", ownerID, category, topic)
	}

	if len(kept) == 0 {
		delete(data, ownerID)
	} else {
		data[ownerID] = kept
	}
	return s.write(data)
}

func toSubscription(owner string, entry subscriptionEntry) domain.Subscription {
	channel := entry.Channel
	if channel == "" {
		channel = domain.ChannelPush
	}
	return domain.Subscription{
		OwnerID:  owner,
		Channel:  channel,
		Category: entry.Category,
		Topic:    entry.Topic,
	}
}

func (s *FileStore) read() (map[string][]subscriptionEntry, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string][]subscriptionEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}

	var data map[string][]subscriptionEntry
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	if data == nil {
		data = map[string][]subscriptionEntry{}
	}
	return data, nil
}

func (s *FileStore) write(data map[string][]subscriptionEntry) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscriptions: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "subs-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp subscriptions: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write subscriptions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp subscriptions: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store subscriptions: %w", err)
	}
	return nil
}
