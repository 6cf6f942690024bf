package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
)

const CookieName = "clytar_session"

// CookieCodec signs (and, with a block key, encrypts) the session token
// carried in the clytar_session cookie.
type CookieCodec struct {
	sc     *securecookie.SecureCookie
	maxAge time.Duration
	secure bool
}

// NewCookieCodec builds a codec from configured keys. An empty hash key
// yields a random one, so cookies do not survive a restart.
func NewCookieCodec(hashKey, blockKey string, maxAge time.Duration, secure bool) (*CookieCodec, error) {
	hk := []byte(hashKey)
	if len(hk) == 0 {
		hk = securecookie.GenerateRandomKey(64)
		if hk == nil {
			return nil, errors.New("generate cookie hash key")
		}
	}
	var bk []byte
	if blockKey != "" {
		bk = []byte(blockKey)
		switch len(bk) {
		case 16, 24, 32:
		default:
			return nil, errors.New("AUTH_COOKIE_BLOCK_KEY must be 16, 24 or 32 bytes")
		}
	}

	sc := securecookie.New(hk, bk)
	sc.MaxAge(int(maxAge.Seconds()))
	return &CookieCodec{sc: sc, maxAge: maxAge, secure: secure}, nil
}

func (cc *CookieCodec) Set(c *gin.Context, token string) error {
	encoded, err := cc.sc.Encode(CookieName, token)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, encoded, int(cc.maxAge.Seconds()), "/", "", cc.secure, true)
	return nil
}

// Token returns the token from a valid cookie. Tampered or expired cookies
// read as absent.
func (cc *CookieCodec) Token(c *gin.Context) string {
	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		return ""
	}
	var token string
	if err := cc.sc.Decode(CookieName, raw, &token); err != nil {
		return ""
	}
	return token
}

func (cc *CookieCodec) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", cc.secure, true)
}
