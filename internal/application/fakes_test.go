package application_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

const (
	testCoop     = "ampnet"
	testClientID = "veriff-client"
	testSecret   = "veriff-secret"
)

type fixture struct {
	service  *application.Service
	db       *memDB
	provider *fakeProvider
	social   *fakeSocial
	cache    *fakeCoopCache
	now      time.Time
}

func defaultTestConfig() application.Config {
	return application.Config{
		DefaultCoop:            testCoop,
		FirstUserAdmin:         false,
		MailConfirmationNeeded: true,
		MailTokenTTL:           24 * time.Hour,
		TokenTTL:               time.Hour,
		CallbackURLTemplate:    "https://app.example.com/{coop}/verify/{user}",
		CoopCacheTTL:           time.Minute,
	}
}

func newFixture() *fixture {
	return newFixtureWithConfig(defaultTestConfig())
}

func newFixtureWithConfig(cfg application.Config) *fixture {
	db := newMemDB()
	db.coops[testCoop] = domain.Coop{
		Identifier:           testCoop,
		Name:                 "AMPnet",
		NeedUserVerification: true,
		CreatedAt:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	provider := &fakeProvider{decisions: map[string]ports.ProviderDecision{}}
	social := &fakeSocial{identities: map[string]ports.SocialIdentity{}}
	cache := &fakeCoopCache{items: map[string]domain.Coop{}}

	svc := application.NewService(application.Dependencies{
		Config:      cfg,
		Users:       &fakeUsers{db: db},
		UserInfos:   &fakeUserInfos{db: db},
		MailTokens:  &fakeMailTokens{db: db},
		Coops:       &fakeCoops{db: db},
		Sessions:    &fakeSessions{db: db},
		Decisions:   &fakeDecisions{db: db},
		CoopCache:   cache,
		Provider:    provider,
		Webhooks:    security.NewWebhookSignatureVerifier(testClientID, testSecret),
		Social:      social,
		Hasher:      &fakeHasher{},
		TokenSigner: &fakeSigner{tokens: map[string]ports.AuthClaims{}},
	})
	f := &fixture{
		service:  svc,
		db:       db,
		provider: provider,
		social:   social,
		cache:    cache,
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	svc.SetClock(func() time.Time {
		db.mu.Lock()
		defer db.mu.Unlock()
		f.now = f.now.Add(time.Second)
		return f.now
	})
	return f
}

// seedUser inserts an enabled EMAIL user directly.
func (f *fixture) seedUser(coop, email string) domain.User {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u := domain.User{
		UUID:         uuid.New(),
		Coop:         coop,
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hash:Password123",
		AuthMethod:   domain.AuthMethodEmail,
		Role:         domain.RoleUser,
		Enabled:      true,
		CreatedAt:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	f.db.users[u.UUID] = u
	return u
}

func (f *fixture) setRole(userID uuid.UUID, role domain.Role) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u := f.db.users[userID]
	u.Role = role
	f.db.users[userID] = u
}

func (f *fixture) session(id string) domain.VerificationSession {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.sessions[id]
}

func (f *fixture) user(id uuid.UUID) domain.User {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.users[id]
}

func (f *fixture) activeSessionCount(coop string, userID uuid.UUID) int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for _, s := range f.db.sessions {
		if s.Coop == coop && s.UserID == userID && !s.State.Terminal() {
			n++
		}
	}
	return n
}

func (f *fixture) decisionCount() int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.decisions)
}

func (f *fixture) eventsOfType(eventType string) []ports.OutboxEvent {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []ports.OutboxEvent
	for _, e := range f.db.outbox {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// memDB is one in-memory database shared by all fake repositories so that
// multi-table writes behave like a single transaction.
type memDB struct {
	mu             sync.Mutex
	users          map[uuid.UUID]domain.User
	infos          map[uuid.UUID]domain.UserInfo
	tokens         map[uuid.UUID]domain.MailToken
	coops          map[string]domain.Coop
	sessions       map[string]domain.VerificationSession
	decisions      []domain.VerificationDecision
	outbox         []ports.OutboxEvent
	nextDecisionID int64
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[uuid.UUID]domain.User{},
		infos:    map[uuid.UUID]domain.UserInfo{},
		tokens:   map[uuid.UUID]domain.MailToken{},
		coops:    map[string]domain.Coop{},
		sessions: map[string]domain.VerificationSession{},
	}
}

type fakeUsers struct{ db *memDB }

func (f *fakeUsers) CreateWithOutboxTx(_ context.Context, params ports.CreateUserTxParams) (domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	user := params.User
	count := 0
	for _, u := range f.db.users {
		if u.Coop != user.Coop {
			continue
		}
		count++
		if u.Email == user.Email {
			return domain.User{}, domain.ErrConflict
		}
	}
	if params.PromoteFirst && count == 0 {
		user.Role = domain.RoleAdmin
	}
	f.db.users[user.UUID] = user
	if params.MailToken != nil {
		f.db.tokens[params.MailToken.Token] = *params.MailToken
	}
	f.db.outbox = append(f.db.outbox, params.Events...)
	return user, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByIDs(_ context.Context, userIDs []uuid.UUID) ([]domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []domain.User
	for _, id := range userIDs {
		if u, ok := f.db.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) GetByCoopEmail(_ context.Context, coop, email string) (domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Coop == coop && u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUsers) CountByCoop(_ context.Context, coop string) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, u := range f.db.users {
		if u.Coop == coop {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) ListByCoopRoles(_ context.Context, coop string, roles []domain.Role) ([]domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []domain.User
	for _, u := range f.db.users {
		if u.Coop != coop {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, coop string, userID uuid.UUID, role domain.Role, event ports.OutboxEvent) (domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[userID]
	if !ok || u.Coop != coop {
		return domain.User{}, domain.ErrNotFound
	}
	u.Role = role
	f.db.users[userID] = u
	f.db.outbox = append(f.db.outbox, event)
	return u, nil
}

func (f *fakeUsers) Enable(_ context.Context, userID uuid.UUID) (domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.Enabled = true
	f.db.users[userID] = u
	return u, nil
}

type fakeUserInfos struct{ db *memDB }

func (f *fakeUserInfos) GetByID(_ context.Context, id uuid.UUID) (domain.UserInfo, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	info, ok := f.db.infos[id]
	if !ok {
		return domain.UserInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (f *fakeUserInfos) GetBySessionID(_ context.Context, sessionID string) (domain.UserInfo, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, info := range f.db.infos {
		if info.SessionID == sessionID {
			return info, nil
		}
	}
	return domain.UserInfo{}, domain.ErrNotFound
}

type fakeMailTokens struct{ db *memDB }

func (f *fakeMailTokens) Replace(_ context.Context, token domain.MailToken, event ports.OutboxEvent) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for k, existing := range f.db.tokens {
		if existing.UserUUID == token.UserUUID {
			delete(f.db.tokens, k)
		}
	}
	f.db.tokens[token.Token] = token
	f.db.outbox = append(f.db.outbox, event)
	return nil
}

func (f *fakeMailTokens) Get(_ context.Context, token uuid.UUID) (domain.MailToken, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, ok := f.db.tokens[token]
	if !ok {
		return domain.MailToken{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeMailTokens) Delete(_ context.Context, token uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.tokens, token)
	return nil
}

type fakeCoops struct{ db *memDB }

func (f *fakeCoops) Create(_ context.Context, coop domain.Coop) (domain.Coop, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.coops[coop.Identifier]; ok {
		return domain.Coop{}, domain.ErrConflict
	}
	f.db.coops[coop.Identifier] = coop
	return coop, nil
}

func (f *fakeCoops) GetByIdentifier(_ context.Context, identifier string) (domain.Coop, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.coops[identifier]
	if !ok {
		return domain.Coop{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCoops) GetByHostname(_ context.Context, hostname string) (domain.Coop, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, c := range f.db.coops {
		if c.Hostname != nil && *c.Hostname == hostname {
			return c, nil
		}
	}
	return domain.Coop{}, domain.ErrNotFound
}

type fakeSessions struct{ db *memDB }

func (f *fakeSessions) InsertIfAbsent(_ context.Context, coop string, userID uuid.UUID, session domain.VerificationSession, event ports.OutboxEvent) (domain.VerificationSession, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if existing, ok := f.db.activeLocked(coop, userID); ok {
		return existing, true, nil
	}
	session.Coop = coop
	session.UserID = userID
	f.db.sessions[session.ID] = session
	f.db.outbox = append(f.db.outbox, event)
	return session, false, nil
}

func (f *fakeSessions) GetActiveByUser(_ context.Context, coop string, userID uuid.UUID) (domain.VerificationSession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if s, ok := f.db.activeLocked(coop, userID); ok {
		return s, nil
	}
	return domain.VerificationSession{}, domain.ErrNotFound
}

func (f *fakeSessions) GetByID(_ context.Context, coop, sessionID string) (domain.VerificationSession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok || s.Coop != coop {
		return domain.VerificationSession{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) ResolveCoop(_ context.Context, sessionID string) (string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return s.Coop, nil
}

func (f *fakeSessions) AdvanceState(_ context.Context, coop, sessionID string, params ports.AdvanceStateParams) (domain.VerificationSession, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok || s.Coop != coop {
		return domain.VerificationSession{}, false, domain.ErrNotFound
	}
	if !s.State.CanAdvanceTo(params.Next) {
		return s, false, nil
	}
	s = f.db.advanceLocked(s, params.Next, params.ProviderStatus, params.At)
	if params.Event != nil {
		f.db.outbox = append(f.db.outbox, *params.Event)
	}
	return s, true, nil
}

func (db *memDB) activeLocked(coop string, userID uuid.UUID) (domain.VerificationSession, bool) {
	for _, s := range db.sessions {
		if s.Coop == coop && s.UserID == userID && !s.State.Terminal() {
			return s, true
		}
	}
	return domain.VerificationSession{}, false
}

func (db *memDB) advanceLocked(s domain.VerificationSession, next domain.SessionState, providerStatus string, at time.Time) domain.VerificationSession {
	s.State = next
	s.IsFinished = s.IsFinished || next.Finished()
	if providerStatus != "" {
		s.ProviderStatus = providerStatus
	}
	s.UpdatedAt = at
	db.sessions[s.ID] = s
	return s
}

type fakeDecisions struct{ db *memDB }

func (f *fakeDecisions) RecordTx(_ context.Context, coop string, params ports.RecordDecisionTxParams) (ports.RecordDecisionResult, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	session, ok := f.db.sessions[params.Decision.SessionID]
	if !ok || session.Coop != coop {
		return ports.RecordDecisionResult{}, domain.ErrNotFound
	}
	for _, d := range f.db.decisions {
		if d.SessionID == params.Decision.SessionID && d.ActsAt == params.Decision.ActsAt {
			return ports.RecordDecisionResult{}, domain.ErrDuplicateNotification
		}
	}

	f.db.nextDecisionID++
	decision := params.Decision
	decision.ID = f.db.nextDecisionID
	decision.Coop = coop
	f.db.decisions = append(f.db.decisions, decision)
	f.db.outbox = append(f.db.outbox, params.DecisionEvent)

	result := ports.RecordDecisionResult{Decision: decision, Session: session}
	if params.NextState != "" && session.State.CanAdvanceTo(params.NextState) {
		result.Session = f.db.advanceLocked(session, params.NextState, string(decision.Status), decision.CreatedAt)
		result.StateChanged = true
		if params.StateEvent != nil {
			f.db.outbox = append(f.db.outbox, *params.StateEvent)
		}
	}
	if params.UserInfo != nil {
		stored := *params.UserInfo
		exists := false
		for _, info := range f.db.infos {
			if info.SessionID == stored.SessionID {
				stored = info
				exists = true
				break
			}
		}
		if !exists {
			f.db.infos[stored.UUID] = stored
		}
		user := f.db.users[params.UserID]
		if user.UserInfoID == nil {
			id := stored.UUID
			user.UserInfoID = &id
			user.FirstName = stored.FirstName
			user.LastName = stored.LastName
			f.db.users[user.UUID] = user
			result.InfoLinked = true
			if params.InfoEvent != nil {
				f.db.outbox = append(f.db.outbox, *params.InfoEvent)
			}
		}
	}
	return result, nil
}

func (f *fakeDecisions) LatestBySession(_ context.Context, coop, sessionID string) (domain.VerificationDecision, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.latestLocked(func(d domain.VerificationDecision) bool {
		return d.Coop == coop && d.SessionID == sessionID
	})
}

func (f *fakeDecisions) LatestByUser(_ context.Context, coop string, userID uuid.UUID) (domain.VerificationDecision, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.latestLocked(func(d domain.VerificationDecision) bool {
		s, ok := f.db.sessions[d.SessionID]
		return ok && d.Coop == coop && s.UserID == userID
	})
}

func (f *fakeDecisions) ListBySession(_ context.Context, coop, sessionID string) ([]domain.VerificationDecision, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []domain.VerificationDecision
	for _, d := range f.db.decisions {
		if d.Coop == coop && d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (db *memDB) latestLocked(match func(domain.VerificationDecision) bool) (domain.VerificationDecision, error) {
	var best *domain.VerificationDecision
	for i := range db.decisions {
		d := db.decisions[i]
		if !match(d) {
			continue
		}
		if best == nil || d.CreatedAt.After(best.CreatedAt) || (d.CreatedAt.Equal(best.CreatedAt) && d.ID > best.ID) {
			best = &db.decisions[i]
		}
	}
	if best == nil {
		return domain.VerificationDecision{}, domain.ErrNotFound
	}
	return *best, nil
}

type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	fail      error
	gate      chan struct{}
	decisions map[string]ports.ProviderDecision
}

func (f *fakeProvider) CreateSession(_ context.Context, req ports.CreateProviderSessionRequest) (ports.ProviderSession, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return ports.ProviderSession{}, f.fail
	}
	f.calls++
	id := fmt.Sprintf("sess-%d", f.calls)
	return ports.ProviderSession{
		ID:         id,
		URL:        "https://magic.veriff.me/v/" + id,
		VendorData: req.VendorData,
		Host:       "https://magic.veriff.me",
		Status:     "created",
	}, nil
}

func (f *fakeProvider) FetchDecision(_ context.Context, sessionID string) (ports.ProviderDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decisions[sessionID]
	if !ok {
		return ports.ProviderDecision{}, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSocial struct {
	identities map[string]ports.SocialIdentity
}

func (f *fakeSocial) Lookup(_ context.Context, accessToken string) (ports.SocialIdentity, error) {
	identity, ok := f.identities[accessToken]
	if !ok {
		return ports.SocialIdentity{}, errors.New("token rejected")
	}
	return identity, nil
}

type fakeCoopCache struct {
	mu      sync.Mutex
	items   map[string]domain.Coop
	gets    int
	failGet bool
}

func (f *fakeCoopCache) Get(_ context.Context, key string) (*domain.Coop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet {
		return nil, errors.New("redis down")
	}
	c, ok := f.items[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCoopCache) Put(_ context.Context, key string, coop domain.Coop, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = coop
	return nil
}

func (f *fakeCoopCache) Invalidate(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.items, k)
	}
	return nil
}

func (f *fakeCoopCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[key]
	return ok
}

type fakeHasher struct{}

func (f *fakeHasher) Hash(password string) (string, error) { return "hash:" + password, nil }

func (f *fakeHasher) Compare(hash, password string) error {
	if hash != "hash:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type fakeSigner struct {
	mu     sync.Mutex
	tokens map[string]ports.AuthClaims
}

func (f *fakeSigner) Sign(claims ports.AuthClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "tok-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	f.tokens[token] = claims
	return token, nil
}

func (f *fakeSigner) ParseAndValidate(token string) (ports.AuthClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.tokens[token]
	if !ok {
		return ports.AuthClaims{}, errors.New("unknown token")
	}
	return claims, nil
}

func (f *fakeSigner) PublicJWKs() ([]map[string]any, error) { return nil, nil }
