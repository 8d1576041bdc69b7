package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/identity_service/internal/autherr"
	"github.com/Skotchmaster/identity_service/internal/config"
	"github.com/Skotchmaster/identity_service/internal/models"
	"github.com/Skotchmaster/identity_service/internal/repo"
	"github.com/Skotchmaster/identity_service/internal/tokens"
)

type TokenService struct {
	Repo   *repo.GormRepo
	Secret []byte
	Cfg    *config.Config
}

type TokenDetail struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type TokenPair struct {
	Access  TokenDetail `json:"access"`
	Refresh TokenDetail `json:"refresh"`
}

// Issue signs a token of the given type. No side effects; persistence is a
// separate step because access tokens are never stored.
func (s *TokenService) Issue(userID uint, typ tokens.Type, expires time.Time) (string, error) {
	return tokens.Sign(userID, typ, expires, s.Secret)
}

// Persist stores the digest of a signed refresh/reset/verify token for later
// revocation and lookup.
func (s *TokenService) Persist(ctx context.Context, signed string, userID uint, typ tokens.Type, expires time.Time) (*models.Token, error) {
	claims, err := tokens.Parse(signed, s.Secret)
	if err != nil {
		return nil, autherr.ErrTokenInvalid
	}

	row := &models.Token{
		Token:     tokens.Sha256Hex(signed),
		UserID:    userID,
		Type:      string(typ),
		JTI:       claims.ID,
		ExpiresAt: expires.UTC().Unix(),
	}
	if err := s.Repo.CreateToken(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// Verify validates signature, expiry and type. Access tokens are stateless:
// signature plus expiry suffice and no store lookup happens, trading
// revocability for a saved round-trip. Every other type must also resolve to
// a non-blacklisted persisted row.
func (s *TokenService) Verify(ctx context.Context, signed string, want tokens.Type) (*models.Token, error) {
	claims, err := tokens.Parse(signed, s.Secret)
	if err != nil {
		return nil, autherr.ErrTokenInvalid
	}
	if claims.Type != string(want) {
		return nil, autherr.WithMessage(autherr.ErrTokenInvalid, "unexpected token type")
	}
	userID, err := claims.UserID()
	if err != nil || claims.ExpiresAt == nil {
		return nil, autherr.ErrTokenInvalid
	}

	if want == tokens.TypeAccess {
		return &models.Token{
			UserID:    userID,
			Type:      string(tokens.TypeAccess),
			JTI:       claims.ID,
			ExpiresAt: claims.ExpiresAt.Unix(),
		}, nil
	}

	stored, err := s.Repo.TokenByDigest(ctx, tokens.Sha256Hex(signed), string(want))
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// IssuePair mints the access+refresh pair for a login or rotation. Only the
// refresh half is persisted.
func (s *TokenService) IssuePair(ctx context.Context, userID uint) (*TokenPair, error) {
	now := time.Now().UTC()
	accessExp := now.Add(s.Cfg.AccessTTL())
	refreshExp := now.Add(s.Cfg.RefreshTTL())

	access, err := s.Issue(userID, tokens.TypeAccess, accessExp)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Issue(userID, tokens.TypeRefresh, refreshExp)
	if err != nil {
		return nil, err
	}
	if _, err := s.Persist(ctx, refresh, userID, tokens.TypeRefresh, refreshExp); err != nil {
		return nil, err
	}

	return &TokenPair{
		Access:  TokenDetail{Token: access, Expires: accessExp},
		Refresh: TokenDetail{Token: refresh, Expires: refreshExp},
	}, nil
}

// PurgeExpired deletes a user's expired refresh tokens and returns the
// remaining active set so the caller can count live sessions. "Expired" is
// strict: expires < now.
func (s *TokenService) PurgeExpired(ctx context.Context, userID uint) (active, expired []models.Token, err error) {
	all, err := s.Repo.TokensByUserAndType(ctx, userID, string(tokens.TypeRefresh))
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	for _, t := range all {
		if t.Expired(now) {
			expired = append(expired, t)
		} else {
			active = append(active, t)
		}
	}

	if len(expired) > 0 {
		ids := make([]uint, 0, len(expired))
		for _, t := range expired {
			ids = append(ids, t.ID)
		}
		if err := s.Repo.DeleteTokensByIDs(ctx, ids); err != nil {
			return nil, nil, err
		}
	}
	return active, expired, nil
}
