package payments

import (
	"context"
	"errors"
	"testing"

	"petsy-backend/internal/domain/workflow"
)

type testRepo struct {
	byID map[string]Payment
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Payment{}}
}

func (r *testRepo) Create(ctx context.Context, p Payment) error {
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Update(ctx context.Context, p Payment) error {
	if _, ok := r.byID[p.ID]; !ok {
		return errors.New("not found")
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Payment, error) {
	p, ok := r.byID[id]
	if !ok {
		return Payment{}, errors.New("not found")
	}
	return p, nil
}

func (r *testRepo) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	out := make([]Payment, 0)
	for _, p := range r.byID {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type testConfirmer struct {
	calls []string
	fail  bool
}

func (c *testConfirmer) ConfirmFromPayment(ctx context.Context, appointmentID string, payer workflow.Actor) error {
	c.calls = append(c.calls, appointmentID)
	if c.fail {
		return errors.New("appointment gone")
	}
	return nil
}

var payer = workflow.Actor{ID: "payer-1", Role: workflow.RoleUser}

func TestCreate_CashOnDeliverySettlesAndConfirmsAppointment(t *testing.T) {
	repo := newTestRepo()
	confirmer := &testConfirmer{}
	svc := NewService(repo, confirmer)

	p, err := svc.Create(context.Background(), payer, CreateInput{
		AppointmentID: "appt-1",
		Amount:        30,
		Method:        "cash_on_delivery",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", p.Status)
	}
	if len(confirmer.calls) != 1 || confirmer.calls[0] != "appt-1" {
		t.Fatalf("expected appointment confirmation, got %v", confirmer.calls)
	}
}

func TestCreate_CardStaysPendingUntilConfirm(t *testing.T) {
	repo := newTestRepo()
	confirmer := &testConfirmer{}
	svc := NewService(repo, confirmer)
	ctx := context.Background()

	p, err := svc.Create(ctx, payer, CreateInput{AppointmentID: "appt-1", Amount: 30, Method: "card"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != StatusPending {
		t.Fatalf("expected pending, got %s", p.Status)
	}
	if len(confirmer.calls) != 0 {
		t.Fatalf("expected no confirmation before settle")
	}

	got, err := svc.Confirm(ctx, p.ID, payer)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", got.Status)
	}
	if len(confirmer.calls) != 1 {
		t.Fatalf("expected 1 confirmation, got %d", len(confirmer.calls))
	}

	// Idempotente: confirmar de nuevo no re-dispara el side effect.
	if _, err := svc.Confirm(ctx, p.ID, payer); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if len(confirmer.calls) != 1 {
		t.Fatalf("expected no extra confirmation, got %d", len(confirmer.calls))
	}
}

func TestConfirm_OnlyPayerOrAdmin(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, &testConfirmer{})
	ctx := context.Background()

	p, _ := svc.Create(ctx, payer, CreateInput{OrderID: "o-1", Amount: 10, Method: "card"})

	stranger := workflow.Actor{ID: "stranger", Role: workflow.RoleUser}
	if _, err := svc.Confirm(ctx, p.ID, stranger); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}

	admin := workflow.Actor{ID: "admin-1", Role: workflow.RoleAdmin}
	if _, err := svc.Confirm(ctx, p.ID, admin); err != nil {
		t.Fatalf("expected admin confirm to pass, got %v", err)
	}
}

func TestPaymentSurvivesConfirmerFailure(t *testing.T) {
	repo := newTestRepo()
	confirmer := &testConfirmer{fail: true}
	svc := NewService(repo, confirmer)

	p, err := svc.Create(context.Background(), payer, CreateInput{
		AppointmentID: "appt-x",
		Amount:        15,
		Method:        "cash_on_delivery",
	})
	if err != nil {
		t.Fatalf("payment must not fail when the appointment side effect fails: %v", err)
	}
	if p.Status != StatusSucceeded {
		t.Fatalf("expected durable succeeded payment, got %s", p.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newTestRepo(), &testConfirmer{})
	ctx := context.Background()

	cases := []CreateInput{
		{AppointmentID: "a", Amount: 0, Method: "card"},
		{AppointmentID: "a", Amount: 10},
		{Amount: 10, Method: "card"}, // sin appointment ni order
	}
	for _, in := range cases {
		if _, err := svc.Create(ctx, payer, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", in, err)
		}
	}
}
