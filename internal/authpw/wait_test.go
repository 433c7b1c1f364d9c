package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/live"
	"github.com/ChelseaChanu/taskSync/internal/store"
)

func newLiveService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	docs, err := store.NewSQLiteStore(ctx, db)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })

	hub := live.NewMemoryHub()
	return NewService(NewDocumentAccounts(store.NewLive(docs, hub, nil)), hub)
}

func TestDocumentAccountsLookups(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(t)

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "asha@school.test", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "ASHA@school.test", Password: "secret1"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("SignUp(duplicate) error = %v, want ErrEmailTaken", err)
	}
	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	account, err := svc.SignIn(ctx, SignInRequest{Email: "asha@school.test", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if account.UID != resp.UserID {
		t.Fatalf("SignIn() uid = %q, want %q", account.UID, resp.UserID)
	}
}

func TestWaitVerifiedWakesOnVerification(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(t)

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "asha@school.test", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	result := make(chan bool, 1)
	go func() {
		verified, err := svc.WaitVerified(ctx, resp.UserID, 5*time.Second)
		if err != nil {
			t.Errorf("WaitVerified() error = %v", err)
		}
		result <- verified
	}()

	time.Sleep(50 * time.Millisecond)
	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}

	select {
	case verified := <-result:
		if !verified {
			t.Fatal("WaitVerified() = false, want true")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("WaitVerified() did not return after verification")
	}
}

func TestWaitVerifiedTimesOut(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(t)
	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "asha@school.test", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	verified, err := svc.WaitVerified(ctx, resp.UserID, 50*time.Millisecond)
	if err != nil || verified {
		t.Fatalf("WaitVerified() = %v, %v; want false, nil", verified, err)
	}
}

func TestWaitVerifiedHonoursCancel(t *testing.T) {
	svc := newLiveService(t)
	resp, err := svc.SignUp(context.Background(), SignUpRequest{Email: "asha@school.test", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.WaitVerified(ctx, resp.UserID, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitVerified() error = %v, want context.Canceled", err)
	}
}

func TestWaitVerifiedAlreadyVerified(t *testing.T) {
	svc := newLiveService(t)
	uid := signUpVerified(t, svc, "asha@school.test", "secret1")
	verified, err := svc.WaitVerified(context.Background(), uid, time.Second)
	if err != nil || !verified {
		t.Fatalf("WaitVerified() = %v, %v; want true, nil", verified, err)
	}
}

func TestWaitVerifiedRereadsWhenEventIsMissed(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	docs, err := store.NewSQLiteStore(ctx, db)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })

	// writes announce on one hub while the wait listens on another
	quiet := live.NewMemoryHub()
	svc := NewService(NewDocumentAccounts(store.NewLive(docs, live.NewMemoryHub(), nil)), quiet)

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "asha@school.test", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
			t.Errorf("VerifyEmail() error = %v", err)
		}
	}()

	verified, err := svc.WaitVerified(ctx, resp.UserID, 300*time.Millisecond)
	if err != nil || !verified {
		t.Fatalf("WaitVerified() = %v, %v; want true, nil", verified, err)
	}
}
