// Package session resolves the active identity and profile. In connected
// mode it authenticates against the gateway's profiles table; in guest mode
// it substitutes a synthetic profile and keeps every update purely local.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripwire24/tw-experiment-engine/internal/blob"
	"github.com/tripwire24/tw-experiment-engine/internal/gateway"
	"github.com/tripwire24/tw-experiment-engine/internal/model"
)

// Identity is the signed-in account.
type Identity struct {
	ID    string
	Email string
}

// ProfileGateway defines the gateway operations the provider needs.
// Implemented by gateway.SQLite.
type ProfileGateway interface {
	GetProfile(ctx context.Context, id string) (model.UserProfile, error)
	UpsertProfile(ctx context.Context, p gateway.ProfileUpsert) error
	CreateAccount(ctx context.Context, id, email, passwordHash string) error
	AccountByEmail(ctx context.Context, email string) (id, passwordHash string, err error)
}

// ProfileUpdate carries the editable profile fields for a partial update.
// Nil pointers leave the current value untouched.
type ProfileUpdate struct {
	FullName     *string
	AvatarURL    *string
	Bio          *string
	LinkedInURL  *string
	ContactEmail *string
}

// Avatar is an uploaded avatar image.
type Avatar struct {
	Reader      io.Reader
	Ext         string // file extension without the dot, e.g. "png"
	ContentType string
}

// Provider owns the current identity and profile.
type Provider struct {
	gw      ProfileGateway // nil in guest mode
	avatars blob.Store     // optional; nil disables avatar upload
	logger  *slog.Logger

	mu        sync.RWMutex
	identity  *Identity
	profile   *model.UserProfile
	guest     bool
	magicToks map[string]Identity
}

// NewGuest returns a provider pre-signed-in as the synthetic guest.
func NewGuest(logger *slog.Logger) *Provider {
	guest := model.GuestProfile()
	return &Provider{
		logger:    logger,
		guest:     true,
		identity:  &Identity{ID: guest.ID, Email: guest.Email},
		profile:   &guest,
		magicToks: make(map[string]Identity),
	}
}

// NewConnected returns a signed-out provider backed by the gateway.
func NewConnected(gw ProfileGateway, avatars blob.Store, logger *slog.Logger) *Provider {
	return &Provider{
		gw:        gw,
		avatars:   avatars,
		logger:    logger,
		magicToks: make(map[string]Identity),
	}
}

// Guest reports whether this provider runs in guest mode.
func (p *Provider) Guest() bool { return p.guest }

// Current returns the active identity, or nil when signed out.
func (p *Provider) Current() *Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.identity == nil {
		return nil
	}
	id := *p.identity
	return &id
}

// Profile returns the active profile, or nil while signed out.
func (p *Provider) Profile() *model.UserProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.profile == nil {
		return nil
	}
	prof := *p.profile
	return &prof
}

// DisplayName resolves the attribution name for new experiments and
// comments: profile full name, else account email, else "Me".
func (p *Provider) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.profile != nil && p.profile.FullName != "" {
		return p.profile.FullName
	}
	if p.identity != nil && p.identity.Email != "" {
		return p.identity.Email
	}
	return "Me"
}

// SignUp registers a new account and signs it in with a default profile.
func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	if p.guest {
		return fmt.Errorf("sign-up unavailable in guest mode")
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	id := uuid.NewString()
	if err := p.gw.CreateAccount(ctx, id, email, hashPassword(password)); err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	p.setSession(Identity{ID: id, Email: email}, model.UserProfile{ID: id, Email: email})
	return nil
}

// SignInWithPassword authenticates an existing account.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) error {
	if p.guest {
		return fmt.Errorf("sign-in unavailable in guest mode")
	}

	id, hash, err := p.gw.AccountByEmail(ctx, email)
	if err != nil {
		if err == gateway.ErrNotFound {
			return fmt.Errorf("invalid email or password")
		}
		return fmt.Errorf("looking up account: %w", err)
	}
	if !verifyPassword(hash, password) {
		return fmt.Errorf("invalid email or password")
	}

	p.setSession(Identity{ID: id, Email: email}, p.fetchProfile(ctx, id, email))
	return nil
}

// SignInWithMagicLink issues a single-use sign-in token for a registered
// email. There is no mail transport in this scope; the token is returned to
// the caller and logged, and RedeemMagicLink completes the sign-in.
func (p *Provider) SignInWithMagicLink(ctx context.Context, email string) (string, error) {
	if p.guest {
		return "", fmt.Errorf("sign-in unavailable in guest mode")
	}

	id, _, err := p.gw.AccountByEmail(ctx, email)
	if err != nil {
		if err == gateway.ErrNotFound {
			return "", fmt.Errorf("no account for %s", email)
		}
		return "", fmt.Errorf("looking up account: %w", err)
	}

	token := uuid.NewString()
	p.mu.Lock()
	p.magicToks[token] = Identity{ID: id, Email: email}
	p.mu.Unlock()

	p.logger.Info("magic link issued", "email", email)
	return token, nil
}

// RedeemMagicLink consumes a token issued by SignInWithMagicLink.
func (p *Provider) RedeemMagicLink(ctx context.Context, token string) error {
	p.mu.Lock()
	ident, ok := p.magicToks[token]
	if ok {
		delete(p.magicToks, token)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("invalid or expired token")
	}

	p.setSession(ident, p.fetchProfile(ctx, ident.ID, ident.Email))
	return nil
}

// SignOut clears the session. Guest providers keep their synthetic identity.
func (p *Provider) SignOut() {
	if p.guest {
		return
	}
	p.mu.Lock()
	p.identity = nil
	p.profile = nil
	p.mu.Unlock()
}

// UpdateProfile applies a partial profile update, uploading a new avatar
// first when one is supplied. In guest mode the update is purely local and
// the avatar is inlined as a data URL. In connected mode the local profile
// mutates only after the upsert succeeds; upsert failures propagate with the
// schema-missing classification intact. Avatar upload failure is logged and
// the update proceeds without the new URL.
func (p *Provider) UpdateProfile(ctx context.Context, updates ProfileUpdate, avatar *Avatar) error {
	p.mu.RLock()
	ident := p.identity
	p.mu.RUnlock()
	if ident == nil {
		return fmt.Errorf("not signed in")
	}

	if p.guest {
		if avatar != nil {
			data, err := io.ReadAll(avatar.Reader)
			if err != nil {
				return fmt.Errorf("reading avatar: %w", err)
			}
			url := "data:" + avatar.ContentType + ";base64," + base64.StdEncoding.EncodeToString(data)
			updates.AvatarURL = &url
		}
		p.mu.Lock()
		applyUpdate(p.profile, updates)
		p.mu.Unlock()
		return nil
	}

	if avatar != nil {
		if url := p.uploadAvatar(ctx, ident.ID, avatar); url != "" {
			updates.AvatarURL = &url
		}
	}

	next := *p.Profile()
	applyUpdate(&next, updates)

	err := p.gw.UpsertProfile(ctx, gateway.ProfileUpsert{
		ID:           ident.ID,
		FullName:     next.FullName,
		AvatarURL:    next.AvatarURL,
		Bio:          next.Bio,
		LinkedInURL:  next.LinkedInURL,
		ContactEmail: next.ContactEmail,
		UpdatedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	p.mu.Lock()
	p.profile = &next
	p.mu.Unlock()
	return nil
}

// uploadAvatar stores the avatar blob and returns its public URL, or ""
// when upload is unavailable or fails (logged only).
func (p *Provider) uploadAvatar(ctx context.Context, identityID string, avatar *Avatar) string {
	if p.avatars == nil {
		p.logger.Warn("avatar upload skipped: no blob store configured")
		return ""
	}

	ext := strings.TrimPrefix(avatar.Ext, ".")
	if ext == "" {
		ext = "png"
	}
	key := fmt.Sprintf("%s-%s.%s", identityID, uuid.NewString(), ext)

	url, err := p.avatars.Put(ctx, key, avatar.Reader, avatar.ContentType)
	if err != nil {
		p.logger.Warn("avatar upload failed", "key", key, "error", err)
		return ""
	}
	return url
}

// fetchProfile loads the profile row for an identity, synthesizing the
// default (id + email only) when no row exists yet. The default is persisted
// on the first explicit profile save.
func (p *Provider) fetchProfile(ctx context.Context, id, email string) model.UserProfile {
	prof, err := p.gw.GetProfile(ctx, id)
	if err != nil {
		if err != gateway.ErrNotFound {
			p.logger.Error("fetching profile", "id", id, "error", err)
		}
		return model.UserProfile{ID: id, Email: email}
	}
	prof.Email = email
	return prof
}

func (p *Provider) setSession(ident Identity, prof model.UserProfile) {
	p.mu.Lock()
	p.identity = &ident
	p.profile = &prof
	p.mu.Unlock()
}

func applyUpdate(prof *model.UserProfile, u ProfileUpdate) {
	if u.FullName != nil {
		prof.FullName = *u.FullName
	}
	if u.AvatarURL != nil {
		prof.AvatarURL = *u.AvatarURL
	}
	if u.Bio != nil {
		prof.Bio = *u.Bio
	}
	if u.LinkedInURL != nil {
		prof.LinkedInURL = *u.LinkedInURL
	}
	if u.ContactEmail != nil {
		prof.ContactEmail = *u.ContactEmail
	}
}

// hashPassword derives a salted SHA-256 digest in "salt$digest" hex form.
func hashPassword(password string) string {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		panic(fmt.Sprintf("reading random salt: %v", err))
	}
	sum := sha256.Sum256(append(salt, []byte(password)...))
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(sum[:])
}

func verifyPassword(stored, password string) bool {
	saltHex, digestHex, ok := strings.Cut(stored, "$")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(append(salt, []byte(password)...))
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(digestHex)) == 1
}
