package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/tripwire24/tw-experiment-engine/internal/blob"
	"github.com/tripwire24/tw-experiment-engine/internal/gateway"
	"github.com/tripwire24/tw-experiment-engine/internal/model"
)

// fakeGateway is an in-memory ProfileGateway.
type fakeGateway struct {
	profiles   map[string]model.UserProfile
	accounts   map[string]struct{ id, hash string } // keyed by email
	upsertErr  error
	upsertLog  []gateway.ProfileUpsert
	profileErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		profiles: make(map[string]model.UserProfile),
		accounts: make(map[string]struct{ id, hash string }),
	}
}

func (g *fakeGateway) GetProfile(ctx context.Context, id string) (model.UserProfile, error) {
	if g.profileErr != nil {
		return model.UserProfile{}, g.profileErr
	}
	p, ok := g.profiles[id]
	if !ok {
		return model.UserProfile{}, gateway.ErrNotFound
	}
	return p, nil
}

func (g *fakeGateway) UpsertProfile(ctx context.Context, p gateway.ProfileUpsert) error {
	if g.upsertErr != nil {
		return g.upsertErr
	}
	g.upsertLog = append(g.upsertLog, p)
	g.profiles[p.ID] = model.UserProfile{
		ID:           p.ID,
		FullName:     p.FullName,
		AvatarURL:    p.AvatarURL,
		Bio:          p.Bio,
		LinkedInURL:  p.LinkedInURL,
		ContactEmail: p.ContactEmail,
	}
	return nil
}

func (g *fakeGateway) CreateAccount(ctx context.Context, id, email, passwordHash string) error {
	g.accounts[email] = struct{ id, hash string }{id, passwordHash}
	return nil
}

func (g *fakeGateway) AccountByEmail(ctx context.Context, email string) (string, string, error) {
	acct, ok := g.accounts[email]
	if !ok {
		return "", "", gateway.ErrNotFound
	}
	return acct.id, acct.hash, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var ctx = context.Background()

func TestGuestPreSignedIn(t *testing.T) {
	p := NewGuest(discardLogger())

	if !p.Guest() {
		t.Error("Guest() = false")
	}
	ident := p.Current()
	if ident == nil || ident.ID != "guest" {
		t.Fatalf("Current() = %+v, want guest identity", ident)
	}
	prof := p.Profile()
	if prof == nil || prof.FullName != "Guest User" {
		t.Fatalf("Profile() = %+v, want guest profile", prof)
	}
	if got := p.DisplayName(); got != "Guest User" {
		t.Errorf("DisplayName() = %q, want Guest User", got)
	}
}

func TestGuestSignOutKeepsIdentity(t *testing.T) {
	p := NewGuest(discardLogger())
	p.SignOut()

	if p.Current() == nil {
		t.Error("guest lost identity after SignOut")
	}
}

func TestGuestUpdateProfileLocal(t *testing.T) {
	p := NewGuest(discardLogger())

	name := "Sarah Chen"
	bio := "Growth lead"
	if err := p.UpdateProfile(ctx, ProfileUpdate{FullName: &name, Bio: &bio}, nil); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	prof := p.Profile()
	if prof.FullName != "Sarah Chen" || prof.Bio != "Growth lead" {
		t.Errorf("profile = %+v", prof)
	}
	// Untouched fields keep their values.
	if prof.Email != "guest@demo.com" {
		t.Errorf("email = %q, want guest@demo.com", prof.Email)
	}
}

func TestGuestAvatarInlinedAsDataURL(t *testing.T) {
	p := NewGuest(discardLogger())

	avatar := &Avatar{
		Reader:      strings.NewReader("png-bytes"),
		Ext:         "png",
		ContentType: "image/png",
	}
	if err := p.UpdateProfile(ctx, ProfileUpdate{}, avatar); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	prof := p.Profile()
	if !strings.HasPrefix(prof.AvatarURL, "data:image/png;base64,") {
		t.Errorf("AvatarURL = %q, want a data URL", prof.AvatarURL)
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	gw := newFakeGateway()
	p := NewConnected(gw, nil, discardLogger())

	if err := p.SignUp(ctx, "sarah@example.com", "hunter2"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	ident := p.Current()
	if ident == nil || ident.Email != "sarah@example.com" {
		t.Fatalf("Current() = %+v", ident)
	}

	p.SignOut()
	if p.Current() != nil {
		t.Fatal("identity survives SignOut in connected mode")
	}

	if err := p.SignInWithPassword(ctx, "sarah@example.com", "hunter2"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if p.Current() == nil {
		t.Fatal("sign-in did not establish a session")
	}

	if err := p.SignInWithPassword(ctx, "sarah@example.com", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if err := p.SignInWithPassword(ctx, "nobody@example.com", "hunter2"); err == nil {
		t.Error("unknown account accepted")
	}
}

func TestSignInSynthesizesDefaultProfile(t *testing.T) {
	gw := newFakeGateway()
	p := NewConnected(gw, nil, discardLogger())

	if err := p.SignUp(ctx, "new@example.com", "pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	p.SignOut()
	if err := p.SignInWithPassword(ctx, "new@example.com", "pw"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}

	// No profile row exists yet; the provider synthesizes id + email.
	prof := p.Profile()
	if prof == nil || prof.Email != "new@example.com" || prof.FullName != "" {
		t.Errorf("profile = %+v, want synthesized default", prof)
	}
	if got := p.DisplayName(); got != "new@example.com" {
		t.Errorf("DisplayName() = %q, want email fallback", got)
	}
}

func TestMagicLinkRoundTrip(t *testing.T) {
	gw := newFakeGateway()
	p := NewConnected(gw, nil, discardLogger())

	if err := p.SignUp(ctx, "link@example.com", "pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	p.SignOut()

	token, err := p.SignInWithMagicLink(ctx, "link@example.com")
	if err != nil {
		t.Fatalf("SignInWithMagicLink: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	if err := p.RedeemMagicLink(ctx, token); err != nil {
		t.Fatalf("RedeemMagicLink: %v", err)
	}
	if p.Current() == nil {
		t.Fatal("magic link redemption did not sign in")
	}

	// Tokens are single-use.
	if err := p.RedeemMagicLink(ctx, token); err == nil {
		t.Error("token redeemable twice")
	}

	if _, err := p.SignInWithMagicLink(ctx, "nobody@example.com"); err == nil {
		t.Error("magic link issued for unknown account")
	}
}

func TestConnectedUpdateProfilePersistsBeforeLocalMutation(t *testing.T) {
	gw := newFakeGateway()
	p := NewConnected(gw, nil, discardLogger())

	if err := p.SignUp(ctx, "sarah@example.com", "pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	name := "Sarah Chen"
	if err := p.UpdateProfile(ctx, ProfileUpdate{FullName: &name}, nil); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if len(gw.upsertLog) != 1 {
		t.Fatalf("upsert calls = %d, want 1", len(gw.upsertLog))
	}
	if p.Profile().FullName != "Sarah Chen" {
		t.Errorf("local profile not updated: %+v", p.Profile())
	}

	// A failing upsert leaves the local profile untouched.
	gw.upsertErr = gateway.ErrSchemaMissing
	other := "Someone Else"
	err := p.UpdateProfile(ctx, ProfileUpdate{FullName: &other}, nil)
	if err == nil {
		t.Fatal("expected error from failing upsert")
	}
	if p.Profile().FullName != "Sarah Chen" {
		t.Errorf("local profile mutated despite upsert failure: %+v", p.Profile())
	}
}

func TestConnectedAvatarUpload(t *testing.T) {
	gw := newFakeGateway()
	avatars := blob.NewMemory()
	p := NewConnected(gw, avatars, discardLogger())

	if err := p.SignUp(ctx, "sarah@example.com", "pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	avatar := &Avatar{
		Reader:      strings.NewReader("png-bytes"),
		Ext:         "png",
		ContentType: "image/png",
	}
	if err := p.UpdateProfile(ctx, ProfileUpdate{}, avatar); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	prof := p.Profile()
	if !strings.HasPrefix(prof.AvatarURL, "memory://") {
		t.Errorf("AvatarURL = %q, want memory:// URL", prof.AvatarURL)
	}
	if !strings.HasSuffix(prof.AvatarURL, ".png") {
		t.Errorf("AvatarURL = %q, want .png suffix", prof.AvatarURL)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash := hashPassword("hunter2")

	if !strings.Contains(hash, "$") {
		t.Fatalf("hash %q missing salt separator", hash)
	}
	if !verifyPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if verifyPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
	if verifyPassword("garbage", "hunter2") {
		t.Error("malformed stored hash accepted")
	}

	// Salted: two hashes of the same password differ.
	if hash == hashPassword("hunter2") {
		t.Error("hashes are not salted")
	}
}

func TestGuestAuthUnavailable(t *testing.T) {
	p := NewGuest(discardLogger())

	if err := p.SignUp(ctx, "a@b.c", "pw"); err == nil {
		t.Error("SignUp allowed in guest mode")
	}
	if err := p.SignInWithPassword(ctx, "a@b.c", "pw"); err == nil {
		t.Error("SignInWithPassword allowed in guest mode")
	}
	if _, err := p.SignInWithMagicLink(ctx, "a@b.c"); err == nil {
		t.Error("SignInWithMagicLink allowed in guest mode")
	}
}
