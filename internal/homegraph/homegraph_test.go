package homegraph

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

type fakePlatform struct {
	t          *testing.T
	key        *rsa.PrivateKey
	server     *httptest.Server
	tokenCalls atomic.Int32

	mu        sync.Mutex
	requests  map[string]map[string]any
	failWith  int
	denyToken bool
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	p := &fakePlatform{t: t, key: key, requests: make(map[string]map[string]any)}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", p.handleToken)
	mux.HandleFunc("/v1/", p.handleAPI)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePlatform) serviceAccountJSON() []byte {
	der, err := x509.MarshalPKCS8PrivateKey(p.key)
	if err != nil {
		p.t.Fatalf("marshal key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	doc, _ := json.Marshal(ServiceAccount{
		Type:         "service_account",
		ProjectID:    "graylogic-home",
		PrivateKeyID: "kid-1",
		PrivateKey:   string(pemKey),
		ClientEmail:  "bridge@graylogic-home.iam.example",
		TokenURI:     p.server.URL + "/token",
	})
	return doc
}

func (p *fakePlatform) handleToken(w http.ResponseWriter, r *http.Request) {
	p.tokenCalls.Add(1)
	p.mu.Lock()
	deny := p.denyToken
	p.mu.Unlock()
	if deny {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("grant_type") != jwtBearerGrant {
		http.Error(w, "bad grant", http.StatusBadRequest)
		return
	}

	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(r.PostForm.Get("assertion"), claims, func(*jwt.Token) (any, error) {
		return &p.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience(p.server.URL+"/token"))
	if err != nil || !tok.Valid {
		http.Error(w, "bad assertion: "+err.Error(), http.StatusUnauthorized)
		return
	}
	if claims["iss"] != "bridge@graylogic-home.iam.example" || claims["scope"] != Scope || tok.Header["kid"] != "kid-1" {
		http.Error(w, "wrong claims", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"access_token":"platform-token","token_type":"Bearer","expires_in":3600}`)) //nolint:errcheck
}

func (p *fakePlatform) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer platform-token" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	p.mu.Lock()
	fail := p.failWith
	p.mu.Unlock()
	if fail != 0 {
		http.Error(w, `{"error":"nope"}`, fail)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.requests[strings.TrimPrefix(r.URL.Path, "/v1")] = body
	p.mu.Unlock()
	w.Write([]byte(`{}`)) //nolint:errcheck
}

func (p *fakePlatform) request(path string) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[path]
}

func (p *fakePlatform) client(t *testing.T) *Client {
	t.Helper()
	sa, err := ParseServiceAccount(p.serviceAccountJSON())
	if err != nil {
		t.Fatalf("ParseServiceAccount() error = %v", err)
	}
	src, err := sa.TokenSource(context.Background(), p.server.Client())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}
	return NewClient(context.Background(), p.server.URL+"/v1", src, p.server.Client())
}

func TestParseServiceAccount_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{"},
		{"missing email", `{"private_key":"x"}`},
		{"bad key", `{"client_email":"a@b","private_key":"not pem"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseServiceAccount([]byte(tt.doc)); !errors.Is(err, ErrInvalidServiceAccount) {
				t.Errorf("error = %v, want ErrInvalidServiceAccount", err)
			}
		})
	}
}

func TestParseServiceAccount_DefaultTokenURI(t *testing.T) {
	p := newFakePlatform(t)
	var doc map[string]any
	json.Unmarshal(p.serviceAccountJSON(), &doc) //nolint:errcheck
	delete(doc, "token_uri")
	raw, _ := json.Marshal(doc)

	sa, err := ParseServiceAccount(raw)
	if err != nil {
		t.Fatalf("ParseServiceAccount() error = %v", err)
	}
	if sa.TokenURI != defaultTokenURI {
		t.Errorf("TokenURI = %q, want %q", sa.TokenURI, defaultTokenURI)
	}
}

func TestClient_RequestSync(t *testing.T) {
	p := newFakePlatform(t)
	c := p.client(t)

	if err := c.RequestSync(context.Background(), "alice"); err != nil {
		t.Fatalf("RequestSync() error = %v", err)
	}

	body := p.request("/devices:requestSync")
	if body["agentUserId"] != "alice" || body["async"] != true {
		t.Errorf("request body = %v", body)
	}
}

func TestClient_ReportState(t *testing.T) {
	p := newFakePlatform(t)
	c := p.client(t)

	states := map[string]map[string]any{"light-1": {"on": true, "online": true}}
	if err := c.ReportState(context.Background(), "alice", states, nil); err != nil {
		t.Fatalf("ReportState() error = %v", err)
	}

	body := p.request("/devices:reportStateAndNotification")
	if body["agentUserId"] != "alice" {
		t.Errorf("agentUserId = %v", body["agentUserId"])
	}
	if id, _ := body["requestId"].(string); id == "" {
		t.Error("requestId should be set")
	}
	devices := body["payload"].(map[string]any)["devices"].(map[string]any)
	light := devices["states"].(map[string]any)["light-1"].(map[string]any)
	if light["on"] != true {
		t.Errorf("reported state = %v", light)
	}
	if _, ok := devices["notifications"]; ok {
		t.Error("empty notifications should be omitted")
	}
}

func TestClient_ReusesToken(t *testing.T) {
	p := newFakePlatform(t)
	c := p.client(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.RequestSync(ctx, "alice"); err != nil {
			t.Fatalf("RequestSync() error = %v", err)
		}
	}
	if n := p.tokenCalls.Load(); n != 1 {
		t.Errorf("token exchanges = %d, want 1", n)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	p := newFakePlatform(t)
	c := p.client(t)
	p.mu.Lock()
	p.failWith = http.StatusNotFound
	p.mu.Unlock()

	err := c.RequestSync(context.Background(), "alice")
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("error = %v, want ErrRequestFailed", err)
	}
}

func TestClient_TokenExchangeFailure(t *testing.T) {
	p := newFakePlatform(t)
	c := p.client(t)
	p.mu.Lock()
	p.denyToken = true
	p.mu.Unlock()

	err := c.RequestSync(context.Background(), "alice")
	if !errors.Is(err, ErrTokenExchange) {
		t.Errorf("error = %v, want ErrTokenExchange", err)
	}
	if p.request("/devices:requestSync") != nil {
		t.Error("no API call should be made without a token")
	}
}
