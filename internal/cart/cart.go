// Package cart is the shopper's client-local cart. State lives in a Store
// and is persisted only through explicit Load and Save calls.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Item is one product in the cart. Digital goods have no quantity.
type Item struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     string `json:"price"` // display only; checkout re-prices server-side
}

type snapshot struct {
	Items []Item `json:"items"`
}

// Store holds the cart items. It is safe for concurrent use; subscribers are
// called outside the lock with a copy of the items.
type Store struct {
	mu     sync.Mutex
	items  []Item
	subs   map[int]func([]Item)
	nextID int
}

// New returns an empty cart.
func New() *Store {
	return &Store{subs: map[int]func([]Item){}}
}

// Add appends item unless a product with the same id is already present.
// It reports whether the cart changed.
func (s *Store) Add(item Item) bool {
	s.mu.Lock()
	for _, it := range s.items {
		if it.ProductID == item.ProductID {
			s.mu.Unlock()
			return false
		}
	}
	s.items = append(s.items, item)
	items, subs := s.stateLocked()
	s.mu.Unlock()

	notify(subs, items)
	return true
}

// Remove drops the product with the given id. It reports whether the cart changed.
func (s *Store) Remove(productID string) bool {
	s.mu.Lock()
	idx := -1
	for i, it := range s.items {
		if it.ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	items, subs := s.stateLocked()
	s.mu.Unlock()

	notify(subs, items)
	return true
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	items, subs := s.stateLocked()
	s.mu.Unlock()

	notify(subs, items)
}

// Items returns a copy of the cart items in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

// ProductIDs returns the ids of the cart items in insertion order.
func (s *Store) ProductIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for _, it := range s.items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// Subscribe registers fn to be called after every change. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func([]Item)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Load replaces the cart contents with the file at path. A missing file
// yields an empty cart.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cart: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode cart %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(snap.Items))
	items := make([]Item, 0, len(snap.Items))
	for _, it := range snap.Items {
		if _, dup := seen[it.ProductID]; dup || it.ProductID == "" {
			continue
		}
		seen[it.ProductID] = struct{}{}
		items = append(items, it)
	}
	s.replace(items)
	return nil
}

// Save writes the cart to path, replacing the file atomically.
func (s *Store) Save(path string) error {
	snap := snapshot{Items: s.Items()}
	if snap.Items == nil {
		snap.Items = []Item{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cart: %w", err)
	}
	return nil
}

func (s *Store) replace(items []Item) {
	s.mu.Lock()
	s.items = items
	snapItems, subs := s.stateLocked()
	s.mu.Unlock()

	notify(subs, snapItems)
}

func (s *Store) stateLocked() ([]Item, []func([]Item)) {
	items := append([]Item(nil), s.items...)
	subs := make([]func([]Item), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return items, subs
}

func notify(subs []func([]Item), items []Item) {
	for _, fn := range subs {
		fn(items)
	}
}
