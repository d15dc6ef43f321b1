package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func rsaPublicKeyToJWK(privateKey *rsa.PrivateKey, kid string) JWKSKey {
	pub := &privateKey.PublicKey
	return JWKSKey{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// jwksServer serves whatever keys() returns and counts fetches.
func jwksServer(t *testing.T, keys func(call int32) []JWKSKey) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(JWKSResponse{Keys: keys(n)})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestJWKSCache_FetchAndCache(t *testing.T) {
	key := generateKey(t)
	srv, calls := jwksServer(t, func(int32) []JWKSKey {
		return []JWKSKey{rsaPublicKeyToJWK(key, "k1")}
	})

	cache := NewJWKSCache(srv.URL, 5*time.Minute)
	got, err := cache.GetKey("k1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.N.Cmp(key.PublicKey.N))
	assert.Equal(t, key.PublicKey.E, got.E)

	_, err = cache.GetKey("k1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// fakeClock lets tests step past the cache TTL and the refetch interval.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(url string, ttl time.Duration) (*JWKSCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewJWKSCache(url, ttl)
	cache.now = clock.now
	return cache, clock
}

func TestJWKSCache_UnknownKidRefetches(t *testing.T) {
	k1, k2 := generateKey(t), generateKey(t)
	srv, calls := jwksServer(t, func(n int32) []JWKSKey {
		if n == 1 {
			return []JWKSKey{rsaPublicKeyToJWK(k1, "old")}
		}
		return []JWKSKey{rsaPublicKeyToJWK(k1, "old"), rsaPublicKeyToJWK(k2, "new")}
	})

	cache, clock := newTestCache(srv.URL, time.Hour)
	_, err := cache.GetKey("old")
	require.NoError(t, err)

	clock.advance(defaultJWKSMinRefetch)
	got, err := cache.GetKey("new")
	require.NoError(t, err)
	assert.Equal(t, 0, got.N.Cmp(k2.PublicKey.N))
	assert.Equal(t, int32(2), calls.Load())
}

func TestJWKSCache_UnknownKidsAreThrottled(t *testing.T) {
	key := generateKey(t)
	srv, calls := jwksServer(t, func(int32) []JWKSKey {
		return []JWKSKey{rsaPublicKeyToJWK(key, "k1")}
	})

	cache, clock := newTestCache(srv.URL, time.Hour)
	_, err := cache.GetKey("k1")
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := cache.GetKey("forged-" + strconv.Itoa(i))
		assert.ErrorContains(t, err, "not found")
	}
	assert.Equal(t, int32(1), calls.Load())

	// Known keys keep working while unknown kids are throttled.
	_, err = cache.GetKey("k1")
	require.NoError(t, err)

	clock.advance(defaultJWKSMinRefetch + time.Second)
	_, err = cache.GetKey("forged-again")
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestJWKSCache_TTLExpiry(t *testing.T) {
	key := generateKey(t)
	srv, calls := jwksServer(t, func(int32) []JWKSKey {
		return []JWKSKey{rsaPublicKeyToJWK(key, "k1")}
	})

	cache, clock := newTestCache(srv.URL, time.Minute)
	_, err := cache.GetKey("k1")
	require.NoError(t, err)
	clock.advance(2 * time.Minute)
	_, err = cache.GetKey("k1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestJWKSCache_SkipsNonRSAKeys(t *testing.T) {
	key := generateKey(t)
	srv, _ := jwksServer(t, func(int32) []JWKSKey {
		return []JWKSKey{{Kty: "EC", Kid: "ec"}, rsaPublicKeyToJWK(key, "rsa")}
	})

	cache := NewJWKSCache(srv.URL, time.Minute)
	_, err := cache.GetKey("ec")
	assert.Error(t, err)
	_, err = cache.GetKey("rsa")
	assert.NoError(t, err)
}

func TestJWKSCache_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewJWKSCache(srv.URL, time.Minute).GetKey("any")
	assert.ErrorContains(t, err, "status 502")
}

func TestParseRSAPublicKey_Invalid(t *testing.T) {
	_, err := parseRSAPublicKey(JWKSKey{N: "!!!", E: "AQAB"})
	assert.ErrorContains(t, err, "modulus")

	_, err = parseRSAPublicKey(JWKSKey{N: "AQAB", E: "!!!"})
	assert.ErrorContains(t, err, "exponent")
}

func TestJWKSKeyFunc_NoKid(t *testing.T) {
	keyFunc := jwksKeyFunc(NewJWKSCache("http://127.0.0.1:0", time.Minute))
	_, err := keyFunc(&jwt.Token{Header: map[string]interface{}{}})
	assert.EqualError(t, err, "token has no kid header")
}
