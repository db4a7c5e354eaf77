// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/rolestage/internal/config"
	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/metrics"
)

// Role is a user's role within a scenario.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleGM     Role = "gm"
	RolePlayer Role = "player"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleGM, RolePlayer:
		return true
	}
	return false
}

var (
	// ErrNotMember is returned when a user has no role in a scenario.
	ErrNotMember = errors.New("membership: not a member")

	// ErrInvalidRole is returned by Grant for an unknown role.
	ErrInvalidRole = errors.New("membership: invalid role")

	// ErrInvalidID is returned for empty or malformed scenario or user IDs.
	ErrInvalidID = errors.New("membership: invalid id")
)

// Key layout: "member:" + scenarioID + "\x00" + userID. The NUL separator
// keeps prefix scans of one scenario from matching another.
const (
	memberKeyPrefix = "member:"
	keySeparator    = "\x00"
)

// Record is one stored membership.
type Record struct {
	ScenarioID string    `json:"scenario_id"`
	UserID     string    `json:"user_id"`
	Role       Role      `json:"role"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists scenario memberships in BadgerDB. The CRUD layer keeps it in
// sync through the internal API; the realtime handshake reads it.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens the membership store described by cfg.
func Open(cfg config.MembershipConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = true
	}
	// Disable BadgerDB's internal logging (too verbose)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open membership store: %w", err)
	}

	logging.Info().
		Str("component", "membership").
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("membership store opened")

	return NewStore(db), nil
}

// NewStore wraps an already open BadgerDB.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Grant sets userID's role in scenarioID, replacing any previous role.
func (s *Store) Grant(ctx context.Context, scenarioID, userID string, role Role) (err error) {
	defer func() { metrics.RecordMembershipOperation("grant", err) }()

	if err := checkIDs(scenarioID, userID); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(Record{
		ScenarioID: scenarioID,
		UserID:     userID,
		Role:       role,
		UpdatedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal membership: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(memberKey(scenarioID, userID), data); err != nil {
			return fmt.Errorf("set membership: %w", err)
		}
		return nil
	})
}

// Revoke removes userID from scenarioID. It reports whether a membership existed.
func (s *Store) Revoke(ctx context.Context, scenarioID, userID string) (existed bool, err error) {
	defer func() { metrics.RecordMembershipOperation("revoke", err) }()

	if err := checkIDs(scenarioID, userID); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := memberKey(scenarioID, userID)
		_, getErr := txn.Get(key)
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			return nil // Already revoked
		}
		if getErr != nil {
			return fmt.Errorf("get membership: %w", getErr)
		}
		existed = true
		return txn.Delete(key)
	})
	return existed, err
}

// Role returns userID's role in scenarioID, or ErrNotMember.
func (s *Store) Role(ctx context.Context, scenarioID, userID string) (role Role, err error) {
	defer func() {
		if errors.Is(err, ErrNotMember) {
			metrics.RecordMembershipOperation("lookup", nil)
			return
		}
		metrics.RecordMembershipOperation("lookup", err)
	}()

	if err := checkIDs(scenarioID, userID); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var rec Record
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(memberKey(scenarioID, userID))
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			return ErrNotMember
		}
		if getErr != nil {
			return fmt.Errorf("get membership: %w", getErr)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return "", err
	}
	return rec.Role, nil
}

// IsMember reports whether userID holds any role in scenarioID.
func (s *Store) IsMember(ctx context.Context, scenarioID, userID string) (bool, error) {
	_, err := s.Role(ctx, scenarioID, userID)
	if errors.Is(err, ErrNotMember) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Members lists a scenario's memberships ordered by user ID.
func (s *Store) Members(ctx context.Context, scenarioID string) ([]Record, error) {
	if scenarioID == "" || strings.Contains(scenarioID, keySeparator) {
		return nil, ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(memberKeyPrefix + scenarioID + keySeparator)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode membership: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	metrics.RecordMembershipOperation("list", err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func memberKey(scenarioID, userID string) []byte {
	return []byte(memberKeyPrefix + scenarioID + keySeparator + userID)
}

func checkIDs(scenarioID, userID string) error {
	if scenarioID == "" || userID == "" {
		return ErrInvalidID
	}
	if strings.Contains(scenarioID, keySeparator) || strings.Contains(userID, keySeparator) {
		return ErrInvalidID
	}
	return nil
}
