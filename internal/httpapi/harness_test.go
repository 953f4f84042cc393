package httpapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"gatehouse.org/internal/audit"
	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/visits"
)

type stubAccounts struct {
	accounts map[string]*auth.Account
	roles    map[int64]*auth.Role
	nextID   int64
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{
		accounts: map[string]*auth.Account{},
		roles: map[int64]*auth.Role{
			1: {ID: 1, Name: auth.RoleAdmin},
			2: {ID: 2, Name: auth.RoleAssistant},
			3: {ID: 3, Name: auth.RoleGuard},
		},
		nextID: 10,
	}
}

func (s *stubAccounts) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	acc, ok := s.accounts[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *stubAccounts) FindRole(_ context.Context, id int64) (*auth.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *stubAccounts) CreateAccount(_ context.Context, acc *auth.Account) error {
	s.nextID++
	acc.ID = s.nextID
	acc.CreatedAt = time.Now().UTC()
	acc.UpdatedAt = acc.CreatedAt
	cp := *acc
	s.accounts[acc.Email] = &cp
	return nil
}

func (s *stubAccounts) TouchLastLogin(context.Context, int64, time.Time) error { return nil }

type recordingSink struct {
	mu      sync.Mutex
	records []*audit.Record
}

func (s *recordingSink) Append(_ context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

func (s *recordingSink) all() []*audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audit.Record, len(s.records))
	copy(out, s.records)
	return out
}

type fixedStats struct{}

func (fixedStats) VisitStats(context.Context) (visits.Stats, error) {
	return visits.Stats{TotalVisits: 12, ActiveVisits: 4, ClosedVisits: 8, UniqueVisitors: 9}, nil
}

type apiHarness struct {
	api    *API
	sink   *recordingSink
	store  *stubAccounts
	hasher *auth.Hasher
	codec  *auth.TokenCodec
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	hasher, err := auth.NewHasher(auth.DefaultHashParams)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:   []byte("handler-test-secret"),
		Issuer:   "gatehouse-test",
		Audience: "gatehouse-api",
		TTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	store := newStubAccounts()
	sink := &recordingSink{}
	recorder := audit.NewRecorder(sink)
	svc, err := auth.NewService(store, hasher, codec, recorder)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	stats, err := visits.NewStatsService(fixedStats{}, nil, time.Minute)
	if err != nil {
		t.Fatalf("NewStatsService: %v", err)
	}
	api := New(svc, codec, recorder, stats, ReadyProbe{}, "test")
	return &apiHarness{api: api, sink: sink, store: store, hasher: hasher, codec: codec}
}

func (h *apiHarness) seed(t *testing.T, email, password, roleName string, active bool) *auth.Account {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = h.hasher.Hash(password)
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
	}
	h.store.nextID++
	acc := &auth.Account{
		ID:           h.store.nextID,
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Active:       active,
	}
	for id, role := range h.store.roles {
		if role.Name == roleName {
			acc.Roles = []auth.Role{{ID: id, Name: role.Name}}
		}
	}
	h.store.accounts[email] = acc
	return acc
}

func (h *apiHarness) token(t *testing.T, acc *auth.Account) string {
	t.Helper()
	role, _ := acc.PrimaryRole()
	token, _, err := h.codec.Issue(auth.Identity{
		ID:     acc.ID,
		Name:   acc.Name,
		Email:  acc.Email,
		Role:   role.Name,
		RoleID: role.ID,
		Active: acc.Active,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}
