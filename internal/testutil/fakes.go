package testutil

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/genai"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost keeps password hashing fast in tests.
const MinBcryptCost = bcrypt.MinCost

// MemoryUserRepository is an in-memory repository.UserRepository.
// Records are copied on the way in and out, like a database round trip.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]domain.User
	byEmail map[string]uuid.UUID
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[uuid.UUID]domain.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return domain.ErrAlreadyExists
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[user.ID]; !ok {
		return domain.ErrNotFound
	}
	r.byID[user.ID] = *user
	return nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// SentOTP is one captured notification.
type SentOTP struct {
	To   string
	Code string
	TTL  time.Duration
}

// CapturingSender records OTP notifications instead of delivering them.
type CapturingSender struct {
	mu   sync.Mutex
	sent []SentOTP
	err  error
}

func NewCapturingSender() *CapturingSender {
	return &CapturingSender{}
}

// FailWith makes subsequent sends return err; nil restores delivery.
func (s *CapturingSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *CapturingSender) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, SentOTP{To: to, Code: code, TTL: ttl})
	return nil
}

// LastCode returns the most recent code sent to email, or "".
func (s *CapturingSender) LastCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].To == email {
			return s.sent[i].Code
		}
	}
	return ""
}

func (s *CapturingSender) Sent() []SentOTP {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentOTP(nil), s.sent...)
}

// ModelCall is one captured request to StubModel.
type ModelCall struct {
	Parts   []genai.Part
	History []domain.Turn
	Message string
}

// StubModel answers generative language requests from canned replies.
// Reply and Err apply to every call unless Respond is set.
type StubModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	respond func(ModelCall) (string, error)
	calls   []ModelCall
}

func NewStubModel() *StubModel {
	return &StubModel{reply: "stub reply"}
}

func (m *StubModel) SetReply(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply, m.err, m.respond = reply, nil, nil
}

func (m *StubModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err, m.respond = err, nil
}

// SetResponder routes every call through fn.
func (m *StubModel) SetResponder(fn func(ModelCall) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
}

func (m *StubModel) Generate(_ context.Context, parts ...genai.Part) (string, error) {
	return m.answer(ModelCall{Parts: parts})
}

func (m *StubModel) Chat(_ context.Context, history []domain.Turn, message string) (string, error) {
	return m.answer(ModelCall{History: append([]domain.Turn(nil), history...), Message: message})
}

func (m *StubModel) answer(call ModelCall) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	respond, reply, err := m.respond, m.reply, m.err
	m.mu.Unlock()

	if respond != nil {
		return respond(call)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (m *StubModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelCall(nil), m.calls...)
}

// PromptText joins the text parts of a call.
func (c ModelCall) PromptText() string {
	var sb strings.Builder
	for _, p := range c.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// HasImage reports whether the call carried inline image data.
func (c ModelCall) HasImage() bool {
	for _, p := range c.Parts {
		if p.InlineData != nil {
			return true
		}
	}
	return false
}

// StoredObject is one object held by MemoryPhotoStore.
type StoredObject struct {
	Data        []byte
	ContentType string
}

// MemoryPhotoStore keeps uploaded photos in memory.
type MemoryPhotoStore struct {
	mu      sync.Mutex
	objects map[string]StoredObject
	err     error
}

func NewMemoryPhotoStore() *MemoryPhotoStore {
	return &MemoryPhotoStore{objects: make(map[string]StoredObject)}
}

func (s *MemoryPhotoStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryPhotoStore) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	s.objects[key] = StoredObject{Data: buf.Bytes(), ContentType: contentType}
	return nil
}

func (s *MemoryPhotoStore) Get(key string) (StoredObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
