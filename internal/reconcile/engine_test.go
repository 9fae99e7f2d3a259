package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/idmirror/internal/domain"
)

// fakeDir simula el directorio con unique constraints de email y username.
type fakeDir struct {
	byProvider map[string]*domain.User
	byEmail    map[string]*domain.User
	byUsername map[string]*domain.User

	failWith  error
	rebindErr error
}

func newFakeDir() *fakeDir {
	return &fakeDir{
		byProvider: map[string]*domain.User{},
		byEmail:    map[string]*domain.User{},
		byUsername: map[string]*domain.User{},
	}
}

func (f *fakeDir) addLocal(u *domain.User) {
	if u.ProviderID != nil {
		f.byProvider[*u.ProviderID] = u
	}
	if u.Email != "" {
		f.byEmail[u.Email] = u
	}
	f.byUsername[u.Username] = u
}

func (f *fakeDir) UpsertByProviderID(_ context.Context, u *domain.User) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	pid := *u.ProviderID
	if existing, ok := f.byProvider[pid]; ok {
		existing.Email = u.Email
		existing.Username = u.Username
		existing.FirstName = u.FirstName
		existing.LastName = u.LastName
		return false, nil
	}
	if owner, ok := f.byEmail[u.Email]; ok && u.Email != "" && (owner.ProviderID == nil || *owner.ProviderID != pid) {
		return false, domain.ErrEmailTaken
	}
	if owner, ok := f.byUsername[u.Username]; ok && (owner.ProviderID == nil || *owner.ProviderID != pid) {
		return false, domain.ErrUsernameTaken
	}
	u.ID = "local-" + pid
	f.addLocal(u)
	return true, nil
}

func (f *fakeDir) RebindByEmail(_ context.Context, email string, u *domain.User) error {
	if f.rebindErr != nil {
		return f.rebindErr
	}
	owner, ok := f.byEmail[email]
	if !ok {
		return domain.ErrNotFound
	}
	owner.ProviderID = u.ProviderID
	f.byProvider[*u.ProviderID] = owner
	return nil
}

func (f *fakeDir) DeleteByProviderID(_ context.Context, providerID string) (bool, error) {
	u, ok := f.byProvider[providerID]
	if !ok {
		return false, nil
	}
	delete(f.byProvider, providerID)
	delete(f.byEmail, u.Email)
	delete(f.byUsername, u.Username)
	return true, nil
}

func (f *fakeDir) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDir) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	_, e := f.byEmail[email]
	_, u := f.byUsername[username]
	return e || u, nil
}

func (f *fakeDir) MarkVerified(_ context.Context, email string) error {
	if u, ok := f.byEmail[email]; ok {
		u.IsVerified = true
		return nil
	}
	return domain.ErrNotFound
}

func (f *fakeDir) List(context.Context) ([]domain.User, error) { return nil, nil }

func createdEvent(pid, email, username string) domain.IdentityEvent {
	return domain.IdentityEvent{
		Kind:       domain.EventCreated,
		ProviderID: pid,
		Email:      email,
		Username:   username,
		FirstName:  "Ada",
		LastName:   "Lovelace",
	}
}

func TestApply_CreatedThenUpdated(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDir()
	e := New(dir)

	out, err := e.Apply(ctx, createdEvent("p1", "ada@test.com", "ada"))
	if err != nil || out != OutcomeCreated {
		t.Fatalf("first Apply: out=%v err=%v", out, err)
	}

	// redelivery / update del mismo provider_id: idempotente
	ev := createdEvent("p1", "ada@test.com", "ada")
	ev.Kind = domain.EventUpdated
	ev.FirstName = "Augusta"
	out, err = e.Apply(ctx, ev)
	if err != nil || out != OutcomeUpdated {
		t.Fatalf("second Apply: out=%v err=%v", out, err)
	}
	if got := dir.byProvider["p1"].FirstName; got != "Augusta" {
		t.Fatalf("profile not updated: %q", got)
	}
}

func TestApply_EmailConflictRebindsExistingRow(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDir()
	// row local pre-existente sin provider_id (signup directo)
	dir.addLocal(&domain.User{ID: "local-1", Email: "ada@test.com", Username: "ada"})

	e := New(dir)
	out, err := e.Apply(ctx, createdEvent("p9", "ada@test.com", "ada_nueva"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != OutcomeLinked {
		t.Fatalf("out = %v, want linked", out)
	}
	linked := dir.byProvider["p9"]
	if linked == nil || linked.ID != "local-1" {
		t.Fatalf("existing row not rebound: %+v", linked)
	}
}

func TestApply_UsernameConflictIsSkippedNotFatal(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDir()
	dir.addLocal(&domain.User{ID: "local-1", Email: "otra@test.com", Username: "ada"})

	e := New(dir)
	out, err := e.Apply(ctx, createdEvent("p9", "ada@test.com", "ada"))
	if err != nil {
		t.Fatalf("username conflict must not be an error: %v", err)
	}
	if out != OutcomeSkipped {
		t.Fatalf("out = %v, want skipped", out)
	}
	if _, ok := dir.byProvider["p9"]; ok {
		t.Fatal("skipped event must not create a row")
	}
}

func TestApply_UsernameConflictDuringRebindIsSkippedToo(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDir()
	// el email ya pertenece a un row local, y además el rebind choca con el
	// unique de username de otro row
	dir.addLocal(&domain.User{ID: "local-1", Email: "ada@test.com", Username: "ada_vieja"})
	dir.rebindErr = domain.ErrUsernameTaken

	e := New(dir)
	out, err := e.Apply(ctx, createdEvent("p9", "ada@test.com", "ada"))
	if err != nil {
		t.Fatalf("rebind username conflict must not be an error: %v", err)
	}
	if out != OutcomeSkipped {
		t.Fatalf("out = %v, want skipped", out)
	}
	if _, ok := dir.byProvider["p9"]; ok {
		t.Fatal("skipped event must not bind the provider_id")
	}
}

func TestApply_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDir()
	e := New(dir)

	if _, err := e.Apply(ctx, createdEvent("p1", "ada@test.com", "ada")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	del := domain.IdentityEvent{Kind: domain.EventDeleted, ProviderID: "p1"}
	out, err := e.Apply(ctx, del)
	if err != nil || out != OutcomeDeleted {
		t.Fatalf("first delete: out=%v err=%v", out, err)
	}

	out, err = e.Apply(ctx, del)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if out != OutcomeNoop {
		t.Fatalf("out = %v, want noop", out)
	}
}

func TestApply_InvalidEventRejected(t *testing.T) {
	e := New(newFakeDir())

	_, err := e.Apply(context.Background(), domain.IdentityEvent{Kind: "renamed", ProviderID: "p1"})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("err = %v, want ErrInvalidEvent", err)
	}
	_, err = e.Apply(context.Background(), domain.IdentityEvent{Kind: domain.EventCreated})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("missing provider_id: err = %v, want ErrInvalidEvent", err)
	}
}

func TestApply_StorageErrorPropagates(t *testing.T) {
	dir := newFakeDir()
	dir.failWith = errors.New("connection reset")
	e := New(dir)

	if _, err := e.Apply(context.Background(), createdEvent("p1", "a@test.com", "a")); err == nil {
		t.Fatal("storage error must propagate for redelivery")
	}
}

func TestSynthesizeUsername(t *testing.T) {
	cases := []struct {
		ev   domain.IdentityEvent
		want string
	}{
		{domain.IdentityEvent{Username: "ada", Email: "x@y.com", ProviderID: "p1"}, "ada"},
		{domain.IdentityEvent{Email: "Ada.L@test.com", ProviderID: "p1"}, "ada.l"},
		{domain.IdentityEvent{ProviderID: "user_2abcDEF"}, "user_abcdef"},
		{domain.IdentityEvent{ProviderID: "p1"}, "user_p1"},
	}
	for _, c := range cases {
		if got := synthesizeUsername(c.ev); got != c.want {
			t.Errorf("synthesizeUsername(%+v) = %q, want %q", c.ev, got, c.want)
		}
	}
}
