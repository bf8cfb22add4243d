package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"civicsync-engine/engine"
	"civicsync-engine/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryIssueStore keeps issues in process. Each issue has its own lock so
// writes to different issues never contend; the map lock is only held to
// find or insert a record.
type MemoryIssueStore struct {
	mu      sync.RWMutex
	records map[primitive.ObjectID]*issueRecord
}

type issueRecord struct {
	mu      sync.Mutex
	issue   *models.Issue
	deleted bool
}

func NewMemoryIssueStore() *MemoryIssueStore {
	return &MemoryIssueStore{records: make(map[primitive.ObjectID]*issueRecord)}
}

func (s *MemoryIssueStore) record(id string) (*issueRecord, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec, ok := s.records[oid]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: issue %q", engine.ErrNotFound, id)
	}
	return rec, nil
}

func (s *MemoryIssueStore) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[issue.ID]; exists {
		return nil, fmt.Errorf("%w: issue %s already exists", engine.ErrConflict, issue.ID.Hex())
	}
	s.records[issue.ID] = &issueRecord{issue: issue.Clone()}
	return issue.Clone(), nil
}

func (s *MemoryIssueStore) Get(ctx context.Context, id string) (*models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return nil, fmt.Errorf("%w: issue %q", engine.ErrNotFound, id)
	}
	return rec.issue.Clone(), nil
}

func (s *MemoryIssueStore) snapshot(filter engine.Filter) []models.Issue {
	s.mu.RLock()
	recs := make([]*issueRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]models.Issue, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.deleted && filter.Matches(rec.issue) {
			out = append(out, *rec.issue.Clone())
		}
		rec.mu.Unlock()
	}
	return out
}

func (s *MemoryIssueStore) List(ctx context.Context, filter engine.Filter, page engine.Page) ([]models.Issue, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	matched := s.snapshot(filter)
	return engine.Paginate(matched, page), int64(len(matched)), nil
}

func (s *MemoryIssueStore) Count(ctx context.Context, filter engine.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	return int64(len(s.snapshot(filter))), nil
}

func (s *MemoryIssueStore) ApplyTransition(ctx context.Context, id string, expectedVersion int64, m engine.Mutation) (*models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConflict, err)
	}
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return nil, fmt.Errorf("%w: issue %q", engine.ErrNotFound, id)
	}
	if rec.issue.Version != expectedVersion {
		return nil, fmt.Errorf("%w: stale write; expected version %d", engine.ErrConflict, expectedVersion)
	}
	rec.issue = m.Next(rec.issue)
	return rec.issue.Clone(), nil
}

func (s *MemoryIssueStore) Delete(ctx context.Context, id string, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrConflict, err)
	}
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	if rec.deleted {
		rec.mu.Unlock()
		return fmt.Errorf("%w: issue %q", engine.ErrNotFound, id)
	}
	if rec.issue.Version != expectedVersion {
		rec.mu.Unlock()
		return fmt.Errorf("%w: stale write; expected version %d", engine.ErrConflict, expectedVersion)
	}
	rec.deleted = true
	oid := rec.issue.ID
	rec.mu.Unlock()

	s.mu.Lock()
	delete(s.records, oid)
	s.mu.Unlock()
	return nil
}

// MemoryStaffDirectory is an in-process staff list.
type MemoryStaffDirectory struct {
	mu    sync.RWMutex
	staff map[primitive.ObjectID]models.Staff
}

func NewMemoryStaffDirectory() *MemoryStaffDirectory {
	return &MemoryStaffDirectory{staff: make(map[primitive.ObjectID]models.Staff)}
}

func (d *MemoryStaffDirectory) AddStaff(_ context.Context, staff *models.Staff) (*models.Staff, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(staff.Email))
	for _, existing := range d.staff {
		if existing.Email == email {
			return nil, fmt.Errorf("%w: staff with email %s already exists", engine.ErrConflict, email)
		}
	}
	out := *staff
	out.Email = email
	if out.ID.IsZero() {
		out.ID = primitive.NewObjectID()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	d.staff[out.ID] = out
	return &out, nil
}

func (d *MemoryStaffDirectory) GetStaff(_ context.Context, id string) (*models.Staff, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	staff, ok := d.staff[oid]
	if !ok {
		return nil, fmt.Errorf("%w: staff %q", engine.ErrNotFound, id)
	}
	return &staff, nil
}

func (d *MemoryStaffDirectory) ListStaff(_ context.Context) ([]models.Staff, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Staff, 0, len(d.staff))
	for _, s := range d.staff {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *MemoryStaffDirectory) DeleteStaff(_ context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.staff[oid]; !ok {
		return fmt.Errorf("%w: staff %q", engine.ErrNotFound, id)
	}
	delete(d.staff, oid)
	return nil
}

// MemoryAccounts holds user accounts and standings keyed by user id.
type MemoryAccounts struct {
	mu        sync.RWMutex
	users     map[primitive.ObjectID]models.User
	standings map[string]models.Standing
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		users:     make(map[primitive.ObjectID]models.User),
		standings: make(map[string]models.Standing),
	}
}

// SetStanding overrides the standing of an identity that has no local
// account.
func (a *MemoryAccounts) SetStanding(userID string, standing models.Standing) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.standings[userID] = standing
}

// Standing returns the zero standing for unknown users: identities come from
// the external provider and need no local record.
func (a *MemoryAccounts) Standing(_ context.Context, userID string) (models.Standing, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		if u, ok := a.users[oid]; ok {
			return models.Standing{Premium: u.Premium, Blocked: u.Blocked}, nil
		}
	}
	return a.standings[userID], nil
}

func (a *MemoryAccounts) Register(_ context.Context, user *models.User) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range a.users {
		if existing.Email == user.Email {
			return nil, fmt.Errorf("%w: user with this email already exists", engine.ErrConflict)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	a.users[user.ID] = *user
	return user, nil
}

func (a *MemoryAccounts) FindByEmail(_ context.Context, email string) (*models.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.byEmail(email)
	if !ok {
		return nil, fmt.Errorf("%w: user", engine.ErrNotFound)
	}
	return &u, nil
}

func (a *MemoryAccounts) FindByID(_ context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.users[oid]
	if !ok {
		return nil, fmt.Errorf("%w: user", engine.ErrNotFound)
	}
	return &u, nil
}

func (a *MemoryAccounts) ListUsers(_ context.Context) ([]models.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.User, 0, len(a.users))
	for _, u := range a.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (a *MemoryAccounts) SetBlocked(_ context.Context, email string, blocked bool) (*models.User, error) {
	return a.update(email, func(u *models.User) { u.Blocked = blocked })
}

func (a *MemoryAccounts) SetRole(_ context.Context, email string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", engine.ErrValidation, role)
	}
	return a.update(email, func(u *models.User) { u.Role = role })
}

func (a *MemoryAccounts) SetPremium(ctx context.Context, userID string) (*models.User, error) {
	u, err := a.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.update(u.Email, func(u *models.User) { u.Premium = true })
}

func (a *MemoryAccounts) byEmail(email string) (models.User, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range a.users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}

func (a *MemoryAccounts) update(email string, apply func(*models.User)) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.byEmail(email)
	if !ok {
		return nil, fmt.Errorf("%w: user %s", engine.ErrNotFound, email)
	}
	apply(&u)
	u.UpdatedAt = time.Now().UTC()
	a.users[u.ID] = u
	return &u, nil
}

// MemorySessionStore keeps checkout sessions with an expiry.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	issueID   string
	expiresAt time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession), now: time.Now}
}

func (m *MemorySessionStore) SaveSession(_ context.Context, sessionID, issueID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = memorySession{issueID: issueID, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessionStore) LookupSession(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || m.now().After(sess.expiresAt) {
		delete(m.sessions, sessionID)
		return "", fmt.Errorf("%w: session %q", engine.ErrNotFound, sessionID)
	}
	return sess.issueID, nil
}

func (m *MemorySessionStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// MemoryPaymentLedger records payments once per reference.
type MemoryPaymentLedger struct {
	mu       sync.Mutex
	payments map[string]models.Payment
}

func NewMemoryPaymentLedger() *MemoryPaymentLedger {
	return &MemoryPaymentLedger{payments: make(map[string]models.Payment)}
}

func (l *MemoryPaymentLedger) Record(_ context.Context, p *models.Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.payments[p.Reference]; ok {
		return nil
	}
	rec := *p
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	l.payments[p.Reference] = rec
	return nil
}

func (l *MemoryPaymentLedger) Totals(_ context.Context) (models.PaymentTotals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var t models.PaymentTotals
	for _, p := range l.payments {
		t.TotalCents += p.AmountCents
		t.Count++
	}
	return t, nil
}
