package utils // package utils provides signed action tokens, links and key hashing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/court-booking/internal/model"
)

// Action names carried by a token.
const (
	ActionCancel = "cancel"
	ActionLeave  = "leave"
	ActionInvite = "invite"
)

// ErrBadToken is returned for tokens that fail signature, expiry or shape checks.
var ErrBadToken = fmt.Errorf("%w: invalid or expired link", model.ErrValidation)

// ActionClaims is the payload of a reservation action link. Seat is only
// set for links addressed to one player.
type ActionClaims struct {
	Action  string `json:"act"`
	EventID string `json:"eid"`
	CourtID string `json:"cid"`
	Seat    int    `json:"seat,omitempty"`
	jwt.RegisteredClaims
}

// Ref returns the reservation the token points at.
func (c ActionClaims) Ref() model.ReservationRef {
	return model.ReservationRef{CourtID: c.CourtID, EventID: c.EventID}
}

// NewActionToken signs an HS256 token that expires at exp.
func NewActionToken(secret string, action string, ref model.ReservationRef, seat int, exp time.Time) (string, error) {
	claims := ActionClaims{
		Action:  action,
		EventID: ref.EventID,
		CourtID: ref.CourtID,
		Seat:    seat,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseActionToken verifies raw and returns its claims.
func ParseActionToken(secret, raw string) (*ActionClaims, error) {
	var claims ActionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrBadToken
	}
	switch claims.Action {
	case ActionCancel, ActionLeave, ActionInvite:
	default:
		return nil, ErrBadToken
	}
	if claims.EventID == "" || claims.CourtID == "" {
		return nil, ErrBadToken
	}
	return &claims, nil
}

// Shortener stores a target URL under a short code.
type Shortener interface {
	Shorten(ctx context.Context, target string, ttl time.Duration) (string, error)
}

// LinkMaker builds the three action URLs of a reservation. Tokens expire
// when the reservation ends. With a Shortener the URLs point at /s/<code>.
type LinkMaker struct {
	secret  string
	baseURL string
	short   Shortener
	now     func() time.Time
}

func NewLinkMaker(secret, baseURL string, short Shortener) *LinkMaker {
	return &LinkMaker{secret: secret, baseURL: strings.TrimRight(baseURL, "/"), short: short, now: time.Now}
}

func (m *LinkMaker) Make(ctx context.Context, res model.Reservation) (model.Links, error) {
	var out model.Links
	for _, l := range []struct {
		action string
		dst    *string
	}{
		{ActionCancel, &out.Cancel},
		{ActionLeave, &out.Leave},
		{ActionInvite, &out.Invite},
	} {
		tok, err := NewActionToken(m.secret, l.action, res.Ref, 0, res.End)
		if err != nil {
			return model.Links{}, fmt.Errorf("sign %s link: %w", l.action, err)
		}
		url := m.baseURL + "/a/" + tok
		if m.short != nil {
			ttl := res.End.Sub(m.now())
			if ttl <= 0 {
				ttl = time.Hour
			}
			code, err := m.short.Shorten(ctx, url, ttl)
			if err != nil {
				return model.Links{}, err
			}
			url = m.baseURL + "/s/" + code
		}
		*l.dst = url
	}
	return out, nil
}
