/**
 * @description
 * This file contains the authentication middleware for the HTTP router. The
 * identity provider issues RS256 JWTs; the middleware validates them against
 * the provider's JWKS endpoint and places the verified subject — the user id
 * every onboarding operation is keyed by — on the request context. The
 * service performs no authentication of its own beyond this verification.
 *
 * @dependencies
 * - context, crypto/rsa, encoding/*, fmt, math/big, net/http, os, strings, sync, time: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// userIDContextKey is a custom type for the context key to avoid collisions.
type userIDContextKey string

const authenticatedUserIDKey userIDContextKey = "authenticatedUserID"

// GetUserID extracts the verified user id from the request context.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(authenticatedUserIDKey).(string)
	return userID, ok
}

// AuthMiddleware creates a middleware that validates bearer JWTs against the
// identity provider's JWKS endpoint.
func AuthMiddleware(jwksURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				kid, ok := token.Header["kid"].(string)
				if !ok {
					return nil, fmt.Errorf("kid not found in token header")
				}
				publicKey, err := getPublicKeyFromJWKS(jwksURL, kid)
				if err != nil {
					return nil, fmt.Errorf("failed to get public key: %w", err)
				}
				return publicKey, nil
			})
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
				return
			}
			if !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			// Optional audience / issuer enforcement via env
			if expectedAud := os.Getenv("AUTH_AUDIENCE"); expectedAud != "" {
				if aud, ok := claims["aud"].(string); !ok || aud != expectedAud {
					http.Error(w, "Invalid audience", http.StatusUnauthorized)
					return
				}
			}
			if expectedIss := os.Getenv("AUTH_ISSUER"); expectedIss != "" {
				if iss, ok := claims["iss"].(string); !ok || iss != expectedIss {
					http.Error(w, "Invalid issuer", http.StatusUnauthorized)
					return
				}
			}

			sub, ok := claims["sub"].(string)
			if !ok || sub == "" {
				http.Error(w, "Token missing subject", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authenticatedUserIDKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// jwks mirrors the JSON Web Key Set document shape.
type jwks struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

var (
	jwksCacheMu      sync.Mutex
	jwksCachedKeys   map[string]*rsa.PublicKey
	jwksCacheExpires time.Time
)

// getPublicKeyFromJWKS resolves the RSA public key for a key id, caching the
// key set for five minutes to keep token validation off the network.
func getPublicKeyFromJWKS(jwksURL, kid string) (*rsa.PublicKey, error) {
	jwksCacheMu.Lock()
	defer jwksCacheMu.Unlock()

	if time.Now().Before(jwksCacheExpires) {
		if key, ok := jwksCachedKeys[kid]; ok {
			return key, nil
		}
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var keySet jwks
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(keySet.Keys))
	for _, k := range keySet.Keys {
		if k.Kty != "RSA" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}
	}
	jwksCachedKeys = keys
	jwksCacheExpires = time.Now().Add(5 * time.Minute)

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not found in JWKS", kid)
	}
	return key, nil
}
