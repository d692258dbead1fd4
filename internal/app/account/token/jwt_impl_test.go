package token

import (
	"testing"
	"time"

	"github.com/clipstream/account-service/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		Issuer:             "test",
		Audience:           "test",
	}
}

func TestJWTUtil_GenerateValidate(t *testing.T) {
	util, err := NewJWTUtil(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	uid := uuid.New()
	tok, exp, err := util.GenerateAccessToken(uid)
	if err != nil || exp.IsZero() {
		t.Fatalf("bad generate: %v", err)
	}
	claims, err := util.ValidateAccessToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != uid.String() {
		t.Fatalf("want %s got %s", uid, claims.Subject)
	}
}

func TestJWTUtil_RefreshCycle(t *testing.T) {
	util, _ := NewJWTUtil(testConfig())
	uid := uuid.New()
	rTok, exp, err := util.GenerateRefreshToken(uid)
	if err != nil || exp.IsZero() {
		t.Fatalf("bad generate: %v", err)
	}
	cl, err := util.ValidateRefreshToken(rTok)
	if err != nil || cl.Subject != uid.String() {
		t.Fatalf("validate error: %v", err)
	}
}

func TestJWTUtil_ClassesAreNotInterchangeable(t *testing.T) {
	util, _ := NewJWTUtil(testConfig())
	uid := uuid.New()

	aTok, _, _ := util.GenerateAccessToken(uid)
	if _, err := util.ValidateRefreshToken(aTok); err == nil {
		t.Fatal("access token accepted as refresh token")
	}

	rTok, _, _ := util.GenerateRefreshToken(uid)
	if _, err := util.ValidateAccessToken(rTok); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
}

func TestJWTUtil_WrongSecret(t *testing.T) {
	util, _ := NewJWTUtil(testConfig())

	otherCfg := testConfig()
	otherCfg.AccessTokenSecret = "some-other-secret"
	other, _ := NewJWTUtil(otherCfg)

	tok, _, _ := other.GenerateAccessToken(uuid.New())
	if _, err := util.ValidateAccessToken(tok); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestJWTUtil_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTokenTTL = -time.Minute
	util, _ := NewJWTUtil(cfg)

	tok, _, _ := util.GenerateAccessToken(uuid.New())
	if _, err := util.ValidateAccessToken(tok); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestJWTUtil_InvalidAlg(t *testing.T) {
	util, _ := NewJWTUtil(testConfig())
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{"sub": "1"}).
		SignedString([]byte("access-secret"))
	if _, err := util.ValidateAccessToken(tok); err == nil {
		t.Fatal("expected invalid alg")
	}
}

func TestJWTUtil_InvalidAudience(t *testing.T) {
	util, _ := NewJWTUtil(testConfig())

	otherCfg := testConfig()
	otherCfg.Audience = "other"
	other, _ := NewJWTUtil(otherCfg)

	tok, _, _ := other.GenerateAccessToken(uuid.New())
	if _, err := util.ValidateAccessToken(tok); err == nil {
		t.Fatal("expected audience error")
	}
}

func TestJWTUtil_BadString(t *testing.T) {
	util, _ := NewJWTUtil(testConfig())
	if _, err := util.ValidateAccessToken("bad"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewJWTUtil_SecretChecks(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshTokenSecret = cfg.AccessTokenSecret
	if _, err := NewJWTUtil(cfg); err == nil {
		t.Fatal("expected error for equal secrets")
	}

	cfg = testConfig()
	cfg.AccessTokenSecret = ""
	if _, err := NewJWTUtil(cfg); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
