package signup

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/idmirror/internal/domain"
	"github.com/dropDatabas3/idmirror/internal/provider"
)

type fakeDir struct {
	exists bool
	users  []domain.User
}

func (f *fakeDir) UpsertByProviderID(context.Context, *domain.User) (bool, error) {
	return false, errors.New("not implemented")
}
func (f *fakeDir) RebindByEmail(context.Context, string, *domain.User) error {
	return errors.New("not implemented")
}
func (f *fakeDir) DeleteByProviderID(context.Context, string) (bool, error) {
	return false, errors.New("not implemented")
}
func (f *fakeDir) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeDir) ExistsByEmailOrUsername(context.Context, string, string) (bool, error) {
	return f.exists, nil
}
func (f *fakeDir) MarkVerified(context.Context, string) error { return nil }
func (f *fakeDir) List(context.Context) ([]domain.User, error) {
	return f.users, nil
}

type fakeProvider struct {
	calls   int
	created []provider.Profile
	fail    error
}

func (f *fakeProvider) CreateAccount(_ context.Context, p provider.Profile) (*provider.AccountHandle, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	f.created = append(f.created, p)
	return &provider.AccountHandle{ID: "remote-1", Email: p.Email}, nil
}
func (f *fakeProvider) UpdatePassword(context.Context, string, string) error { return nil }

type fakeVerify struct {
	issued []string
	fail   error
}

func (f *fakeVerify) Issue(_ context.Context, email string, _ domain.Purpose) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.issued = append(f.issued, email)
	return "123456", nil
}
func (f *fakeVerify) Verify(context.Context, string, domain.Purpose, string) (domain.VerifyOutcome, error) {
	return domain.VerifyInvalidCode, nil
}
func (f *fakeVerify) CompleteSignupVerification(context.Context, string, string) (domain.VerifyOutcome, error) {
	return domain.VerifyInvalidCode, nil
}
func (f *fakeVerify) ResetPassword(context.Context, string, string, string) (domain.VerifyOutcome, error) {
	return domain.VerifyInvalidCode, nil
}
func (f *fakeVerify) ChangePassword(context.Context, string, string) error { return nil }

func validRequest() Request {
	return Request{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada",
		Email:     "Ada@Test.com",
		Password:  "secreta123",
	}
}

func TestSignup_CreatesRemoteAccountAndIssuesCode(t *testing.T) {
	dir := &fakeDir{}
	prov := &fakeProvider{}
	verify := &fakeVerify{}
	svc := New(Deps{Dir: dir, Provider: prov, Verify: verify})

	handle, err := svc.Signup(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if handle.ID != "remote-1" {
		t.Fatalf("handle = %+v", handle)
	}
	// el email se normaliza antes de salir del servicio
	if got := prov.created[0].Email; got != "ada@test.com" {
		t.Fatalf("email not normalized: %q", got)
	}
	if len(verify.issued) != 1 || verify.issued[0] != "ada@test.com" {
		t.Fatalf("code not issued: %v", verify.issued)
	}
}

func TestSignup_DuplicateRejectedBeforeRemoteCall(t *testing.T) {
	dir := &fakeDir{exists: true}
	prov := &fakeProvider{}
	svc := New(Deps{Dir: dir, Provider: prov, Verify: &fakeVerify{}})

	_, err := svc.Signup(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrDuplicateUser) {
		t.Fatalf("err = %v, want ErrDuplicateUser", err)
	}
	if prov.calls != 0 {
		t.Fatal("remote account must not be created for a duplicate")
	}
}

func TestSignup_MissingFields(t *testing.T) {
	svc := New(Deps{Dir: &fakeDir{}, Provider: &fakeProvider{}, Verify: &fakeVerify{}})

	req := validRequest()
	req.Password = ""
	if _, err := svc.Signup(context.Background(), req); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestSignup_RemoteFailurePropagates(t *testing.T) {
	remoteErr := &provider.RemoteError{Status: 422, Code: "form_password_pwned", Message: "password found in breach"}
	prov := &fakeProvider{fail: remoteErr}
	verify := &fakeVerify{}
	svc := New(Deps{Dir: &fakeDir{}, Provider: prov, Verify: verify})

	_, err := svc.Signup(context.Background(), validRequest())
	var re *provider.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if len(verify.issued) != 0 {
		t.Fatal("no code should be issued when the remote account was not created")
	}
}

func TestSignup_FailedCodeDeliveryIsNotFatal(t *testing.T) {
	verify := &fakeVerify{fail: errors.New("smtp down")}
	svc := New(Deps{Dir: &fakeDir{}, Provider: &fakeProvider{}, Verify: verify})

	handle, err := svc.Signup(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Signup must succeed even if delivery fails: %v", err)
	}
	if handle == nil {
		t.Fatal("missing handle")
	}
}

func TestListUsers_Projection(t *testing.T) {
	dir := &fakeDir{users: []domain.User{
		{ID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.com", Username: "ada"},
	}}
	svc := New(Deps{Dir: dir, Provider: &fakeProvider{}, Verify: &fakeVerify{}})

	out, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(out) != 1 || out[0].Name != "Ada Lovelace" || out[0].Email != "ada@test.com" {
		t.Fatalf("projection = %+v", out)
	}
}
