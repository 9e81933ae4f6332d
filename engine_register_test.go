package doora

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/doora-app/doora/mail"
	"github.com/doora-app/doora/upload"
)

func TestRegisterWithAvatar(t *testing.T) {
	mailer := &fakeMailer{}
	uploader := &fakeUploader{}
	engine := newTestEngine(t, testConfig(), mailer, uploader)

	acc, err := engine.Register(context.Background(), RegisterInput{
		Firstname:         "  Amina ",
		Lastname:          "Diallo",
		Email:             "Amina@Example.com",
		Phone:             "+22177001122",
		Password:          "strong-password",
		Avatar:            strings.NewReader("fake-jpeg-bytes"),
		AvatarContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if acc.Email != "amina@example.com" {
		t.Errorf("email not normalized: %q", acc.Email)
	}
	if acc.Firstname != "Amina" {
		t.Errorf("firstname not trimmed: %q", acc.Firstname)
	}
	if acc.AvatarURL == "" {
		t.Error("expected avatar url on account")
	}
	if acc.IsVerified {
		t.Error("new account must start unverified")
	}
	if uploader.uploads != 1 {
		t.Errorf("uploads = %d, want 1", uploader.uploads)
	}

	msg := mailer.last(t)
	if msg.Kind != mail.KindVerify || msg.To != "amina@example.com" {
		t.Fatalf("unexpected verification mail: %+v", msg)
	}
	if !strings.HasPrefix(msg.Link, "https://doora.test/verify?token=") {
		t.Errorf("unexpected action link %q", msg.Link)
	}
}

func TestRegisterValidation(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, testConfig(), mailer, nil)

	base := RegisterInput{
		Firstname: "amina",
		Email:     "amina@example.com",
		Password:  "strong-password",
	}

	tests := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr error
	}{
		{"blank firstname", func(in *RegisterInput) { in.Firstname = "   " }, ErrValidation},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, ErrValidation},
		{"malformed email", func(in *RegisterInput) { in.Email = "not-an-email" }, ErrValidation},
		{"short password", func(in *RegisterInput) { in.Password = "short" }, ErrPasswordPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			if _, err := engine.Register(context.Background(), in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegisterRequiresAvatar(t *testing.T) {
	mailer := &fakeMailer{}
	uploader := &fakeUploader{}
	engine := newTestEngine(t, testConfig(), mailer, uploader)

	_, err := engine.Register(context.Background(), RegisterInput{
		Firstname: "amina",
		Email:     "amina@example.com",
		Phone:     "+22177001122",
		Password:  "strong-password",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if uploader.uploads != 0 {
		t.Errorf("uploads = %d, want 0", uploader.uploads)
	}
	// No account may exist after the rejection.
	if _, err := engine.Login(context.Background(), "amina@example.com", "strong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("account must not exist, got %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	mailer := &fakeMailer{}
	uploader := &fakeUploader{}
	engine := newTestEngine(t, testConfig(), mailer, uploader)
	registerTestAccount(t, engine, mailer)

	// Same email, different phone.
	_, err := engine.Register(context.Background(), RegisterInput{
		Firstname:         "amina",
		Email:             "amina@example.com",
		Phone:             "+22177009999",
		Password:          "strong-password",
		Avatar:            strings.NewReader("x"),
		AvatarContentType: "image/png",
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	// The duplicate is caught before the upload, so nothing to compensate.
	if uploader.uploads != 0 {
		t.Errorf("uploads = %d, want 0", uploader.uploads)
	}

	// Same phone, different email.
	_, err = engine.Register(context.Background(), RegisterInput{
		Firstname:         "other",
		Email:             "other@example.com",
		Phone:             "+22177001122",
		Password:          "strong-password",
		Avatar:            strings.NewReader("x"),
		AvatarContentType: "image/png",
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate phone: expected ErrAccountExists, got %v", err)
	}
}

// A concurrent writer can claim the email between the advisory pre-check and
// the create script. The engine must then delete the object it just uploaded.
func TestRegisterCompensatesAfterLostCreateRace(t *testing.T) {
	_, rdb := newTestRedis(t)
	mailer := &fakeMailer{}

	buildEngine := func(up upload.Uploader) *Engine {
		t.Helper()
		engine, err := New().
			WithConfig(testConfig()).
			WithRedis(rdb).
			WithMailer(mailer).
			WithUploader(up).
			Build()
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		t.Cleanup(engine.Close)
		return engine
	}

	rival := buildEngine(&fakeUploader{})
	uploader := &fakeUploader{}
	uploader.onUpload = func() {
		// The rival claims the email on the shared store while our
		// upload is still in flight.
		if _, err := rival.Register(context.Background(), RegisterInput{
			Firstname:         "amina",
			Email:             "amina@example.com",
			Phone:             "+22177009999",
			Password:          "strong-password",
			Avatar:            strings.NewReader("x"),
			AvatarContentType: "image/png",
		}); err != nil {
			t.Errorf("rival Register: %v", err)
		}
	}
	engine := buildEngine(uploader)

	_, err := engine.Register(context.Background(), RegisterInput{
		Firstname:         "amina",
		Email:             "amina@example.com",
		Phone:             "+22177001122",
		Password:          "strong-password",
		Avatar:            strings.NewReader("x"),
		AvatarContentType: "image/png",
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if uploader.uploads != 1 {
		t.Fatalf("uploads = %d, want 1", uploader.uploads)
	}
	if len(uploader.deleted) != 1 || uploader.deleted[0] != "avatars/test/1" {
		t.Fatalf("compensation delete = %v, want [avatars/test/1]", uploader.deleted)
	}
}

func TestRegisterUploadFailure(t *testing.T) {
	mailer := &fakeMailer{}
	uploader := &fakeUploader{fail: true}
	engine := newTestEngine(t, testConfig(), mailer, uploader)

	_, err := engine.Register(context.Background(), RegisterInput{
		Firstname:         "amina",
		Email:             "amina@example.com",
		Password:          "strong-password",
		Avatar:            strings.NewReader("x"),
		AvatarContentType: "image/png",
	})
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
	// No account may exist after a failed upload.
	if _, err := engine.Login(context.Background(), "amina@example.com", "strong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("account must not exist, got %v", err)
	}
}

func TestRegisterRejectsAvatarType(t *testing.T) {
	mailer := &fakeMailer{}
	uploader := &fakeUploader{}
	engine := newTestEngine(t, testConfig(), mailer, uploader)

	_, err := engine.Register(context.Background(), RegisterInput{
		Firstname:         "amina",
		Email:             "amina@example.com",
		Password:          "strong-password",
		Avatar:            strings.NewReader("#!/bin/sh"),
		AvatarContentType: "application/x-sh",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if uploader.uploads != 0 {
		t.Error("rejected type must not reach the uploader")
	}
}

func TestRegisterMailFailureKeepsAccount(t *testing.T) {
	mailer := &fakeMailer{fail: true}
	engine := newTestEngine(t, testConfig(), mailer, nil)

	acc, err := engine.Register(context.Background(), RegisterInput{
		Firstname:         "amina",
		Email:             "amina@example.com",
		Password:          "strong-password",
		Avatar:            strings.NewReader("x"),
		AvatarContentType: "image/png",
	})
	if !errors.Is(err, ErrVerificationDispatch) {
		t.Fatalf("expected ErrVerificationDispatch, got %v", err)
	}
	if acc == nil || acc.ID == "" {
		t.Fatal("account must survive a failed verification dispatch")
	}

	// The user can log in and later request a resend.
	if _, err := engine.Login(context.Background(), "amina@example.com", "strong-password"); err != nil {
		t.Fatalf("Login after dispatch failure: %v", err)
	}
	mailer.fail = false
	if err := engine.ResendVerification(context.Background(), "amina@example.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
}
