package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/support-desk/internal/database/dbtest"
	"github.com/psds-microservice/support-desk/internal/model"
	"gorm.io/gorm"
)

type sentReply struct {
	TicketID, To, Content string
}

type fakeNotifier struct {
	mu         sync.Mutex
	err        error
	newTickets []string
	codes      map[string]string
	replies    []sentReply
	closed     []string
}

func (f *fakeNotifier) NewTicket(_ context.Context, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newTickets = append(f.newTickets, t.TicketID)
	return f.err
}

func (f *fakeNotifier) LoginCode(_ context.Context, email, code string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes == nil {
		f.codes = map[string]string{}
	}
	f.codes[email] = code
	return f.err
}

func (f *fakeNotifier) Reply(_ context.Context, t *model.Ticket, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{TicketID: t.TicketID, To: t.Email, Content: content})
	return f.err
}

func (f *fakeNotifier) Closed(_ context.Context, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, t.TicketID)
	return f.err
}

type fakeUploader struct {
	err         error
	key         string
	contentType string
	deleted     []string
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ []byte, contentType string) (string, error) {
	f.key, f.contentType = key, contentType
	if f.err != nil {
		return "", f.err
	}
	return "https://files.example.com/uploads/" + key, nil
}

func (f *fakeUploader) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type recordEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordEvents) ProduceTicketEvent(_ context.Context, event string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db       *gorm.DB
	deps     Deps
	notifier *fakeNotifier
	files    *fakeUploader
	events   *recordEvents
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       dbtest.Open(t),
		notifier: &fakeNotifier{},
		files:    &fakeUploader{},
		events:   &recordEvents{},
		clock:    &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.deps = Deps{
		DB:         f.db,
		Files:      f.files,
		Notifier:   f.notifier,
		Events:     f.events,
		Background: NewDispatcher(),
		Now:        f.clock.Now,
	}
	return f
}

// settle waits for dispatched notifications and events.
func (f *fixture) settle() { f.deps.Background.Wait() }

func (f *fixture) seedTicket(t *testing.T, id, email string, status model.TicketStatus, created time.Time) *model.Ticket {
	t.Helper()
	tk := &model.Ticket{
		TicketID:      id,
		Fullname:      "Seed " + id,
		AccountNumber: 1234567890,
		Email:         email,
		ErrorType:     model.ErrorTypeOther,
		Description:   "seeded",
		Status:        status,
		CreatedAt:     created,
	}
	if status == model.TicketStatusClosed {
		closedAt := created.Add(time.Hour)
		tk.ClosedAt = &closedAt
	}
	if err := f.db.Create(tk).Error; err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return tk
}

func validInput() TicketInput {
	return TicketInput{
		Fullname:      "Ada Lovelace",
		AccountNumber: "1234567890",
		Email:         " A@B.com ",
		Reference:     "REF-1",
		ErrorType:     "payment_failed",
		Description:   "Money left my account but never arrived.",
	}
}
